package orders

import (
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	"github.com/tablewire/pos-engine/pkg/money"
)

// recomputeCheck derives every money column on the check from its
// selections. Tax is rounded per selection line, not per check, so any
// partition of the selections taxes to the same sum; splits preserve totals
// to the cent without stored adjustments.
func recomputeCheck(check *models.Check, taxRateBPS int) {
	subtotal := check.ActiveSubtotal()
	discount := check.DiscountAmount(subtotal)

	var tax money.Cents
	if taxRateBPS > 0 {
		for i := range check.Selections {
			sel := &check.Selections[i]
			if sel.Status.CountsTowardTotal() && sel.Taxable {
				tax += money.PercentBPS(sel.ExtendedPrice(), taxRateBPS)
			}
		}
	}

	check.SubtotalCents = subtotal
	check.DiscountCents = discount
	check.TaxCents = tax
	check.TotalCents = subtotal - discount + tax
}

// recomputeOrder rolls check totals up to the order. Voided checks and split
// sources contribute nothing; a split source's value lives on in the checks
// it produced.
func recomputeOrder(order *models.Order, taxRateBPS int) {
	var total money.Cents
	for i := range order.Checks {
		check := &order.Checks[i]
		recomputeCheck(check, taxRateBPS)
		if check.Status == enums.CheckStatusVoided || check.Status == enums.CheckStatusSplit {
			continue
		}
		total += check.TotalCents
	}
	order.TotalCents = total
}
