package sync

import (
	"encoding/json"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/outbox"
)

// Replica is a terminal's in-memory mirror of the order store. Deltas carry
// full order snapshots; applying one replaces the whole order. The server
// revision is the only conflict tiebreaker, so out-of-order and duplicate
// deliveries converge without clocks.
type Replica struct {
	mu     stdsync.RWMutex
	orders map[uuid.UUID]*models.Order
}

func NewReplica() *Replica {
	return &Replica{orders: make(map[uuid.UUID]*models.Order)}
}

// Apply replaces the mirrored order when the envelope's revision is newer.
// Returns false for stale or duplicate deltas, which are dropped.
func (r *Replica) Apply(envelope *outbox.Envelope) (bool, error) {
	var order models.Order
	if err := json.Unmarshal(envelope.Data, &order); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.orders[envelope.OrderID]
	if ok && existing.Revision >= envelope.Revision {
		return false, nil
	}
	r.orders[envelope.OrderID] = &order
	return true, nil
}

// Get returns the mirrored order, if present.
func (r *Replica) Get(orderID uuid.UUID) (*models.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	return order, ok
}

// Len reports how many orders are mirrored.
func (r *Replica) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// ReplaceAll swaps the full mirror for a fresh authoritative load. Used on
// reconnect and on the periodic reload tick.
func (r *Replica) ReplaceAll(orders []models.Order) {
	fresh := make(map[uuid.UUID]*models.Order, len(orders))
	for i := range orders {
		order := orders[i]
		fresh[order.ID] = &order
	}

	r.mu.Lock()
	r.orders = fresh
	r.mu.Unlock()
}
