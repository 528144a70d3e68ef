package catalog

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/money"
	"github.com/tablewire/pos-engine/pkg/types"
)

// ResolvedItem is a point-in-time catalog answer. Callers snapshot the price
// onto the selection; it is never re-read after insertion.
type ResolvedItem struct {
	ItemID     uuid.UUID
	Name       string
	PriceCents money.Cents
	Modifiers  types.Modifiers
	Available  bool
}

// PickModifiers resolves requested modifier names against the item's
// configured modifiers, snapshotting their current price deltas.
func (r *ResolvedItem) PickModifiers(names []string) (types.Modifiers, error) {
	if len(names) == 0 {
		return nil, nil
	}
	picked := make(types.Modifiers, 0, len(names))
	for _, name := range names {
		found := false
		for _, mod := range r.Modifiers {
			if mod.Name == name {
				picked = append(picked, mod)
				found = true
				break
			}
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown modifier").
				WithDetails(map[string]any{"modifier": name, "menu_item_id": r.ItemID})
		}
	}
	return picked, nil
}

// Gateway resolves item price and availability at add time. The engine
// treats the catalog as an external, read-only collaborator.
type Gateway interface {
	ResolveItem(ctx context.Context, itemID uuid.UUID) (*ResolvedItem, error)
}
