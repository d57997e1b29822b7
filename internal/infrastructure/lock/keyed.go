package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pigeon-auction/internal/domain"

	"golang.org/x/sync/semaphore"
)

// KeyedLocker serializes work per auction id inside one process. Entries are
// reference counted and dropped once nobody holds or waits for them, so the
// map does not grow with the number of auctions ever touched.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*entry)}
}

func (k *KeyedLocker) Acquire(ctx context.Context, auctionID string) (func(), error) {
	e := k.ref(auctionID)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.unref(auctionID)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, auctionID)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.unref(auctionID)
		})
	}, nil
}

// Len reports how many auction ids currently have a holder or waiter.
func (k *KeyedLocker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *KeyedLocker) ref(id string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.locks[id]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.locks[id] = e
	}
	e.refs++
	return e
}

func (k *KeyedLocker) unref(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.locks[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.locks, id)
	}
}
