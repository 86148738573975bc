// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrLoopClosed indicates the event loop no longer accepts events
	ErrLoopClosed = errors.New("event loop is closed")

	// ErrPoolStopped indicates the worker pool has been stopped
	ErrPoolStopped = errors.New("worker pool is stopped")

	// ErrPoolRunning indicates Start was called twice
	ErrPoolRunning = errors.New("worker pool already running")

	// ErrInvalidWorkerCount indicates invalid worker count configuration
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)
