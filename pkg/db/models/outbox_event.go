package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/enums"
)

// OutboxEvent is a committed order delta written in the same transaction as
// the mutation it describes. A publisher drains unpublished rows to the
// terminal sync channel.
type OutboxEvent struct {
	ID            uuid.UUID           `gorm:"column:id;primaryKey" json:"id"`
	EventType     enums.EventType     `gorm:"column:event_type;not null" json:"event_type"`
	AggregateType enums.AggregateType `gorm:"column:aggregate_type;not null" json:"aggregate_type"`
	AggregateID   uuid.UUID           `gorm:"column:aggregate_id;not null;index" json:"aggregate_id"`
	Revision      int64               `gorm:"column:revision;not null" json:"revision"`
	Payload       json.RawMessage     `gorm:"column:payload;serializer:json" json:"payload"`
	PublishedAt   *time.Time          `gorm:"column:published_at;index" json:"published_at,omitempty"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

func (o *OutboxEvent) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
