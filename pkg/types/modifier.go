package types

import "github.com/tablewire/pos-engine/pkg/money"

// Modifier is an applied item modifier with its price delta, snapshotted at
// the time the selection was added.
type Modifier struct {
	Name       string      `json:"name"`
	DeltaCents money.Cents `json:"delta_cents"`
}

// Modifiers is stored as a JSON column on the selection row.
type Modifiers []Modifier

// DeltaTotal sums the per-unit price deltas.
func (m Modifiers) DeltaTotal() money.Cents {
	var total money.Cents
	for _, mod := range m {
		total += mod.DeltaCents
	}
	return total
}

// Capabilities is the staff capability set, stored as a JSON column.
type Capabilities []string

// Has reports whether the set contains the capability.
func (c Capabilities) Has(capability string) bool {
	for _, candidate := range c {
		if candidate == capability {
			return true
		}
	}
	return false
}
