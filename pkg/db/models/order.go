package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/enums"
	"github.com/tablewire/pos-engine/pkg/money"
)

// Order is the root aggregate. Its total always equals the sum of its
// checks' totals; once closed or voided it is immutable.
type Order struct {
	ID         uuid.UUID         `gorm:"column:id;primaryKey" json:"id"`
	Type       enums.OrderType   `gorm:"column:type;not null" json:"type"`
	TableID    *uuid.UUID        `gorm:"column:table_id;index" json:"table_id,omitempty"`
	Status     enums.OrderStatus `gorm:"column:status;not null;default:'open'" json:"status"`
	ServerID   uuid.UUID         `gorm:"column:server_id;not null" json:"server_id"`
	DeviceID   string            `gorm:"column:device_id" json:"device_id"`
	Revision   int64             `gorm:"column:revision;not null;default:0" json:"revision"`
	TotalCents money.Cents       `gorm:"column:total_cents;not null;default:0" json:"total_cents"`
	Checks     []Check           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"checks"`
	Courses    []Course          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"courses,omitempty"`
	ClosedAt   *time.Time        `gorm:"column:closed_at" json:"closed_at,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = enums.OrderStatusOpen
	}
	return nil
}

// CheckByID returns the loaded check with the given id, if present.
func (o *Order) CheckByID(checkID uuid.UUID) *Check {
	for i := range o.Checks {
		if o.Checks[i].ID == checkID {
			return &o.Checks[i]
		}
	}
	return nil
}

// CourseByID returns the loaded course with the given id, if present.
func (o *Order) CourseByID(courseID uuid.UUID) *Course {
	for i := range o.Courses {
		if o.Courses[i].ID == courseID {
			return &o.Courses[i]
		}
	}
	return nil
}
