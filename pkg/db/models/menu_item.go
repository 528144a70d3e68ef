package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/money"
	"github.com/tablewire/pos-engine/pkg/types"
)

// MenuItem backs the default catalog gateway implementation. The engine
// treats the catalog as read-only.
type MenuItem struct {
	ID         uuid.UUID       `gorm:"column:id;primaryKey" json:"id"`
	Name       string          `gorm:"column:name;not null" json:"name"`
	PriceCents money.Cents     `gorm:"column:price_cents;not null" json:"price_cents"`
	Active     bool            `gorm:"column:active;not null;default:true" json:"active"`
	OutOfStock bool            `gorm:"column:out_of_stock;not null;default:false" json:"out_of_stock"`
	Modifiers  types.Modifiers `gorm:"column:modifiers;serializer:json" json:"modifiers,omitempty"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (MenuItem) TableName() string { return "menu_items" }

func (m *MenuItem) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
