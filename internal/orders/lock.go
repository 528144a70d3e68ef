package orders

import (
	"sync"

	"github.com/google/uuid"
)

// orderLocks serializes mutations per order id. Concurrent terminals hitting
// the same order are applied one at a time, in arrival order; different
// orders proceed independently.
type orderLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

func (l *orderLocks) acquire(orderID uuid.UUID) *lockEntry {
	l.mu.Lock()
	entry, ok := l.locks[orderID]
	if !ok {
		entry = &lockEntry{}
		l.locks[orderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (l *orderLocks) release(orderID uuid.UUID, entry *lockEntry) {
	entry.mu.Unlock()

	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, orderID)
	}
	l.mu.Unlock()
}
