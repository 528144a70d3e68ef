package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/enums"
	"github.com/tablewire/pos-engine/pkg/money"
	"github.com/tablewire/pos-engine/pkg/types"
)

// Selection is a single ordered line item. The unit price is snapshotted at
// the time of add and never re-read from the catalog, so a mid-order price
// change cannot alter an open check. Voided and comped selections keep their
// original price for audit and loss reporting; only the total derivation
// zeroes them.
type Selection struct {
	ID         uuid.UUID  `gorm:"column:id;primaryKey" json:"id"`
	CheckID    uuid.UUID  `gorm:"column:check_id;not null;index" json:"check_id"`
	MenuItemID *uuid.UUID `gorm:"column:menu_item_id" json:"menu_item_id,omitempty"`
	Name       string     `gorm:"column:name;not null" json:"name"`

	UnitPriceCents money.Cents     `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Quantity       int             `gorm:"column:quantity;not null" json:"quantity"`
	Modifiers      types.Modifiers `gorm:"column:modifiers;serializer:json" json:"modifiers,omitempty"`
	// No column default: gorm drops zero values from INSERTs, and a split
	// share written as taxable would be taxed twice.
	Taxable bool `gorm:"column:taxable;not null" json:"taxable"`

	Seat        *int    `gorm:"column:seat" json:"seat,omitempty"`
	CourseIndex *int    `gorm:"column:course_index" json:"course_index,omitempty"`
	Notes       *string `gorm:"column:notes" json:"notes,omitempty"`

	Status         enums.SelectionStatus `gorm:"column:status;not null;default:'active'" json:"status"`
	StatusReason   *string               `gorm:"column:status_reason" json:"status_reason,omitempty"`
	AuthorizedByID *uuid.UUID            `gorm:"column:authorized_by_id" json:"authorized_by_id,omitempty"`
	StatusAt       *time.Time            `gorm:"column:status_at" json:"status_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Selection) TableName() string { return "selections" }

func (s *Selection) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = enums.SelectionStatusActive
	}
	return nil
}

// ExtendedPrice is (unit price + per-unit modifier deltas) * quantity,
// regardless of status.
func (s *Selection) ExtendedPrice() money.Cents {
	perUnit := s.UnitPriceCents + s.Modifiers.DeltaTotal()
	return perUnit * money.Cents(s.Quantity)
}
