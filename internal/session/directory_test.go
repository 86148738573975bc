package session_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/internal/session"
)

func TestDirectory_TryAdd(t *testing.T) {
	d := session.NewDirectory()
	require.True(t, d.TryAdd(1, "alice"))
	assert.False(t, d.TryAdd(2, "alice"), "nickname taken")
	assert.False(t, d.TryAdd(1, "alice2"), "id already named")
	assert.False(t, d.TryAdd(1, "alice"), "same pair again")
	require.True(t, d.TryAdd(2, "bob"))

	nick, ok := d.TryGetNickname(2)
	assert.True(t, ok)
	assert.Equal(t, "bob", nick)
	id, ok := d.TryGetConnectionID("alice")
	assert.True(t, ok)
	assert.EqualValues(t, 1, id)
	_, ok = d.TryGetConnectionID("carol")
	assert.False(t, ok)
	assert.Equal(t, 2, d.Len())
}

func TestDirectory_RemoveFreesBothDirections(t *testing.T) {
	d := session.NewDirectory()
	require.True(t, d.TryAdd(1, "alice"))
	nick, ok := d.Remove(1)
	assert.True(t, ok)
	assert.Equal(t, "alice", nick)
	_, ok = d.Remove(1)
	assert.False(t, ok)

	_, ok = d.TryGetNickname(1)
	assert.False(t, ok)
	_, ok = d.TryGetConnectionID("alice")
	assert.False(t, ok)

	assert.True(t, d.TryAdd(2, "alice"), "released nickname is reusable")
	assert.True(t, d.TryAdd(1, "again"), "released id can claim again")
	assert.Equal(t, []session.Session{{ConnID: 1, Nickname: "again"}, {ConnID: 2, Nickname: "alice"}}, d.Sessions())
}

func checkInverse(t *testing.T, d *session.Directory) {
	t.Helper()
	seen := map[string]api.ConnectionID{}
	for _, s := range d.Sessions() {
		prev, dup := seen[s.Nickname]
		require.False(t, dup, "nickname %q held by %d and %d", s.Nickname, prev, s.ConnID)
		seen[s.Nickname] = s.ConnID
		id, ok := d.TryGetConnectionID(s.Nickname)
		require.True(t, ok)
		require.Equal(t, s.ConnID, id)
	}
}

// Random TryAdd/Remove sequences never break uniqueness in either direction.
func TestDirectory_UniquenessProperty(t *testing.T) {
	d := session.NewDirectory()
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 3000; i++ {
		id := api.ConnectionID(rng.Intn(20) + 1)
		if rng.Intn(3) == 0 {
			d.Remove(id)
		} else {
			d.TryAdd(id, fmt.Sprintf("nick-%d", rng.Intn(10)))
		}
		if i%100 == 0 {
			checkInverse(t, d)
		}
	}
	checkInverse(t, d)
}

func TestDirectory_ConcurrentClaims(t *testing.T) {
	d := session.NewDirectory()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []api.ConnectionID
	)
	for id := 1; id <= 32; id++ {
		wg.Add(1)
		go func(id api.ConnectionID) {
			defer wg.Done()
			if d.TryAdd(id, "alice") {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
			}
			d.TryAdd(id, fmt.Sprintf("user-%d", id))
		}(api.ConnectionID(id))
	}
	wg.Wait()
	require.Len(t, winners, 1)
	assert.Equal(t, 32, d.Len())
	checkInverse(t, d)
}
