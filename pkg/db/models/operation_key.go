package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperationKey deduplicates client-generated operation ids per check. A
// retried mutation whose key already exists is a no-op replay; offline
// queues reuse the same key on reconnect.
type OperationKey struct {
	ID          uuid.UUID `gorm:"column:id;primaryKey" json:"id"`
	CheckID     uuid.UUID `gorm:"column:check_id;not null;uniqueIndex:ux_operation_keys_check_op" json:"check_id"`
	OperationID string    `gorm:"column:operation_id;not null;uniqueIndex:ux_operation_keys_check_op" json:"operation_id"`
	Kind        string    `gorm:"column:kind;not null" json:"kind"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OperationKey) TableName() string { return "operation_keys" }

func (o *OperationKey) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
