package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m), string(line))
		out = append(out, m)
	}
	return out
}

func TestForTagsCategory(t *testing.T) {
	var buf bytes.Buffer
	l := For(New(&buf, logiface.LevelDebug), Packet)
	l.Warning().Str("nick", "alice").Int("conn", 7).Log("duplicate nickname")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "packet", lines[0][CategoryKey])
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "duplicate nickname", lines[0]["message"])
	assert.Equal(t, "alice", lines[0]["nick"])
	assert.EqualValues(t, 7, lines[0]["conn"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelWarning)
	l.Info().Log("hidden")
	l.Debug().Log("hidden")
	l.Err().Err(errors.New("boom")).Log("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "boom", lines[0]["error"])
}

func TestNoticeMapsToWarn(t *testing.T) {
	var buf bytes.Buffer
	For(New(&buf, logiface.LevelInformational), System).Notice().Dur("took", 0).Log("noted")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "system", lines[0][CategoryKey])
	assert.Contains(t, lines[0], "time")
}

func TestDiscardAndNil(t *testing.T) {
	Discard().Info().Str("k", "v").Log("nothing")
	var l *Logger
	For(l, System).Err().Log("nothing")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]logiface.Level{
		"":        logiface.LevelInformational,
		"DEBUG":   logiface.LevelDebug,
		"warn":    logiface.LevelWarning,
		"error":   logiface.LevelError,
		"trace":   logiface.LevelTrace,
		"off":     logiface.LevelDisabled,
		" info ":  logiface.LevelInformational,
		"notice":  logiface.LevelNotice,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
