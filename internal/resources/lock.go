package resources

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds the number of concurrent readers
const maxReaders int64 = 1 << 30

// rwLock is a read/write lock whose acquisition honors a context.
// Waiters are served in order, so a queued writer holds back later readers.
type rwLock struct {
	sem *semaphore.Weighted
}

func newRWLock() *rwLock {
	return &rwLock{sem: semaphore.NewWeighted(maxReaders)}
}

// RLock acquires a shared hold
func (l *rwLock) RLock(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// RUnlock releases a shared hold
func (l *rwLock) RUnlock() {
	l.sem.Release(1)
}

// Lock acquires the exclusive hold
func (l *rwLock) Lock(ctx context.Context) error {
	return l.sem.Acquire(ctx, maxReaders)
}

// Unlock releases the exclusive hold
func (l *rwLock) Unlock() {
	l.sem.Release(maxReaders)
}
