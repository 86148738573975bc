// File: internal/concurrency/spinlock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Busy-wait mutual exclusion for very short critical sections.

package concurrency

import (
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// ContentionThreshold is the number of failed attempts after which a waiting
// Lock call reports contention. Reporting is telemetry only, Lock keeps spinning.
const ContentionThreshold = 1_000_000

// contentionThreshold is lowered by tests.
var contentionThreshold = ContentionThreshold

// ContentionReporter receives the attempt count, the file:line of the waiting
// Lock call and the file:line where the current holder acquired the lock.
type ContentionReporter func(attempts int, site, holder string)

var reporter atomic.Pointer[ContentionReporter]

// SetContentionReporter installs fn as the process-wide contention reporter.
// A nil fn disables reporting.
func SetContentionReporter(fn ContentionReporter) {
	if fn == nil {
		reporter.Store(nil)
		return
	}
	reporter.Store(&fn)
}

// SpinLock is a non-reentrant CAS lock that yields the processor between attempts.
// There is no ownership tracking: any caller may Unlock. The zero value is unlocked.
//
// While a contention reporter is installed every acquisition records its call
// site so a report can name who holds the lock.
type SpinLock struct {
	_      cpu.CacheLinePad
	flag   atomic.Int32
	holder atomic.Uintptr // pc of the holder's Lock call, 0 if unknown
	_      cpu.CacheLinePad
}

var _ sync.Locker = (*SpinLock)(nil)

// Lock acquires the lock, spinning until it succeeds.
func (l *SpinLock) Lock() {
	attempts := 0
	for !l.flag.CompareAndSwap(0, 1) {
		attempts++
		if attempts > contentionThreshold {
			reportContention(attempts, l.holder.Load())
			attempts = 0
		}
		runtime.Gosched()
	}
	l.markHolder()
}

// TryLock makes a single acquisition attempt.
func (l *SpinLock) TryLock() bool {
	if !l.flag.CompareAndSwap(0, 1) {
		return false
	}
	l.markHolder()
	return true
}

// Unlock releases the lock.
func (l *SpinLock) Unlock() {
	l.holder.Store(0)
	l.flag.Store(0)
}

func (l *SpinLock) markHolder() {
	if reporter.Load() == nil {
		return
	}
	var pc [1]uintptr
	// 0 = runtime.Callers, 1 = markHolder, 2 = Lock or TryLock, 3 = their caller
	if runtime.Callers(3, pc[:]) == 1 {
		l.holder.Store(pc[0])
	}
}

// Locked reports whether the lock is currently held.
func (l *SpinLock) Locked() bool {
	return l.flag.Load() == 1
}

func reportContention(attempts int, holderPC uintptr) {
	fn := reporter.Load()
	if fn == nil {
		return
	}
	site := "unknown"
	// 0 = reportContention, 1 = Lock, 2 = the caller of Lock
	if _, file, line, ok := runtime.Caller(2); ok {
		site = fileLine(file, line)
	}
	holder := "unknown"
	if holderPC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{holderPC}).Next()
		if frame.File != "" {
			holder = fileLine(frame.File, frame.Line)
		}
	}
	(*fn)(attempts, site, holder)
}

func fileLine(file string, line int) string {
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
