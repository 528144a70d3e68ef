package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/enums"
	"github.com/tablewire/pos-engine/pkg/money"
)

// Check is a billable sub-ledger of an order. All money columns are derived
// from the selections and recomputed on every committed mutation; they are
// never edited directly.
type Check struct {
	ID      uuid.UUID         `gorm:"column:id;primaryKey" json:"id"`
	OrderID uuid.UUID         `gorm:"column:order_id;not null;index" json:"order_id"`
	Number  int               `gorm:"column:number;not null" json:"number"`
	Status  enums.CheckStatus `gorm:"column:status;not null;default:'open'" json:"status"`

	SubtotalCents money.Cents `gorm:"column:subtotal_cents;not null;default:0" json:"subtotal_cents"`
	DiscountCents money.Cents `gorm:"column:discount_cents;not null;default:0" json:"discount_cents"`
	TaxCents      money.Cents `gorm:"column:tax_cents;not null;default:0" json:"tax_cents"`
	TotalCents    money.Cents `gorm:"column:total_cents;not null;default:0" json:"total_cents"`

	DiscountType   *enums.DiscountType `gorm:"column:discount_type" json:"discount_type,omitempty"`
	DiscountValue  *string             `gorm:"column:discount_value" json:"discount_value,omitempty"`
	DiscountReason *string             `gorm:"column:discount_reason" json:"discount_reason,omitempty"`

	TabStatus    enums.TabStatus `gorm:"column:tab_status;not null;default:'none'" json:"tab_status"`
	TabName      *string         `gorm:"column:tab_name" json:"tab_name,omitempty"`
	TabOpenedAt  *time.Time      `gorm:"column:tab_opened_at" json:"tab_opened_at,omitempty"`
	TabClosedAt  *time.Time      `gorm:"column:tab_closed_at" json:"tab_closed_at,omitempty"`
	PreauthID    *string         `gorm:"column:preauth_id" json:"preauth_id,omitempty"`
	PreauthCents *money.Cents    `gorm:"column:preauth_cents" json:"preauth_cents,omitempty"`

	SettledAt  *time.Time `gorm:"column:settled_at" json:"settled_at,omitempty"`
	PaymentRef *string    `gorm:"column:payment_ref" json:"payment_ref,omitempty"`

	Selections []Selection `gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE" json:"selections"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Check) TableName() string { return "checks" }

func (c *Check) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = enums.CheckStatusOpen
	}
	if c.TabStatus == "" {
		c.TabStatus = enums.TabStatusNone
	}
	return nil
}

// ActiveSubtotal sums the extended price of active selections.
func (c *Check) ActiveSubtotal() money.Cents {
	var subtotal money.Cents
	for i := range c.Selections {
		if c.Selections[i].Status.CountsTowardTotal() {
			subtotal += c.Selections[i].ExtendedPrice()
		}
	}
	return subtotal
}

// TaxableSubtotal sums the extended price of active, taxable selections.
// Split-share lines carry their slice of an already-taxed total and are
// excluded.
func (c *Check) TaxableSubtotal() money.Cents {
	var subtotal money.Cents
	for i := range c.Selections {
		if c.Selections[i].Status.CountsTowardTotal() && c.Selections[i].Taxable {
			subtotal += c.Selections[i].ExtendedPrice()
		}
	}
	return subtotal
}

// DiscountAmount derives the discount from the stored type/value against the
// given subtotal. Fixed discounts are clamped so the result never goes
// negative.
func (c *Check) DiscountAmount(subtotal money.Cents) money.Cents {
	if c.DiscountType == nil || c.DiscountValue == nil {
		return 0
	}
	value, err := decimal.NewFromString(*c.DiscountValue)
	if err != nil {
		return 0
	}
	switch *c.DiscountType {
	case enums.DiscountTypePercent:
		return money.Percent(subtotal, value)
	case enums.DiscountTypeFixed:
		return money.ClampFixedDiscount(subtotal, money.FromDecimal(value))
	default:
		return 0
	}
}

// BalanceDue is the unpaid amount on the check.
func (c *Check) BalanceDue() money.Cents {
	if c.Status.IsSettled() {
		return 0
	}
	return c.TotalCents
}

// SelectionByID returns the loaded selection with the given id, if present.
func (c *Check) SelectionByID(selectionID uuid.UUID) *Selection {
	for i := range c.Selections {
		if c.Selections[i].ID == selectionID {
			return &c.Selections[i]
		}
	}
	return nil
}
