package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/enums"
)

// Course groups selections by course index within an order and records when
// it was fired to the kitchen.
type Course struct {
	ID       uuid.UUID          `gorm:"column:id;primaryKey" json:"id"`
	OrderID  uuid.UUID          `gorm:"column:order_id;not null;index" json:"order_id"`
	Index    int                `gorm:"column:idx;not null" json:"index"`
	Status   enums.CourseStatus `gorm:"column:status;not null;default:'held'" json:"status"`
	FiredAt  *time.Time         `gorm:"column:fired_at" json:"fired_at,omitempty"`
	ServedAt *time.Time         `gorm:"column:served_at" json:"served_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Course) TableName() string { return "courses" }

func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = enums.CourseStatusHeld
	}
	return nil
}
