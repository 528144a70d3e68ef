package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/types"
)

// Staff backs the default authorizer implementation. PinHash is an argon2id
// encoded string; capabilities gate void/comp/discount/override operations.
type Staff struct {
	ID           uuid.UUID          `gorm:"column:id;primaryKey" json:"id"`
	Name         string             `gorm:"column:name;not null" json:"name"`
	Role         string             `gorm:"column:role;not null" json:"role"`
	Capabilities types.Capabilities `gorm:"column:capabilities;serializer:json" json:"capabilities"`
	PinHash      string             `gorm:"column:pin_hash" json:"-"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Staff) TableName() string { return "staff" }

func (s *Staff) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
