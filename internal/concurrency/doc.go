// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-chat: a spin-lock for short critical
// sections, an unbounded completion-queue style event loop, and the fixed
// worker pool that drains it.
//
// The event loop is the only place where packet processing is scheduled.
// Receive goroutines post ProcessPacket and RemoveConnection events, a timer
// posts Update events, and the workers pop and handle them one at a time.
package concurrency
