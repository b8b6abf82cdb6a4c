// Package lock defines the distributed locking contract used to serialize
// the single-active-dispatcher role across redundant instances, adapted
// from the teacher's internal/lock.DistributedLockManager.
package lock

import "context"

// DistributedLockManager guards a critical section identified by an integer
// key shared by every instance racing for it.
type DistributedLockManager interface {
	// Acquire blocks until the lock identified by lockID is held.
	Acquire(ctx context.Context, lockID int64) error

	// TryAcquire attempts to acquire the lock without blocking. ok is false
	// if another holder currently has it.
	TryAcquire(ctx context.Context, lockID int64) (ok bool, err error)

	Release(ctx context.Context, lockID int64) error
}

// PlannerLockID is the advisory-lock key the single active dispatcher
// contends for: worker.Pool.Run claims it before sweeping/popping the Ready
// Queue, so every process uses the same constant and only one instance is
// ever dispatching at a time (spec §1's "no leader election across
// schedulers" Non-goal).
const PlannerLockID int64 = 0x4a4f42434f5245 // "JOBCORE" in hex, arbitrary but stable
