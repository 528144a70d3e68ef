package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/enums"
)

// Table is a physical table on the floor plan.
type Table struct {
	ID        uuid.UUID         `gorm:"column:id;primaryKey" json:"id"`
	Number    int               `gorm:"column:number;not null" json:"number"`
	Capacity  int               `gorm:"column:capacity;not null" json:"capacity"`
	Section   string            `gorm:"column:section" json:"section"`
	Status    enums.TableStatus `gorm:"column:status;not null;default:'available'" json:"status"`
	FloorX    *float64          `gorm:"column:floor_x" json:"floor_x,omitempty"`
	FloorY    *float64          `gorm:"column:floor_y" json:"floor_y,omitempty"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Table) TableName() string { return "tables" }

func (t *Table) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = enums.TableStatusAvailable
	}
	return nil
}
