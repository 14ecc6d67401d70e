package writer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// datasetLocks serializes writes to the same dataset location within the
// process. Writes to different locations proceed in parallel.
var datasetLocks = newKeyLocks()

type keyLocks struct {
	mu    sync.RWMutex
	locks map[string]*semaphore.Weighted
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*semaphore.Weighted)}
}

// get returns the lock for key, creating one if needed.
func (k *keyLocks) get(key string) *semaphore.Weighted {
	k.mu.RLock()
	if l, ok := k.locks[key]; ok {
		k.mu.RUnlock()
		return l
	}
	k.mu.RUnlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	// Double-check after acquiring write lock
	if l, ok := k.locks[key]; ok {
		return l
	}
	l := semaphore.NewWeighted(1)
	k.locks[key] = l
	return l
}

// acquire blocks until key is free or ctx is done. The returned func releases it.
func (k *keyLocks) acquire(ctx context.Context, key string) (func(), error) {
	l := k.get(key)
	if err := l.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.Release(1) }, nil
}
