// Package pool
// Author: momentics <momentics@gmail.com>
//
// Allocation amortization for the packet hot path.
// ObjectPool is a bounded, non-synchronized pool with a reset contract;
// Guarded adds locking, PooledBuffer is the per-packet byte buffer.
package pool
