package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	"github.com/tablewire/pos-engine/pkg/logger"
)

// DomainEvent is a committed order delta queued in the same transaction as
// the mutation that produced it.
type DomainEvent struct {
	EventType  enums.EventType
	OrderID    uuid.UUID
	Revision   int64
	Data       any
	OccurredAt time.Time
}

// Envelope is the wire form published to the sync channel. Revision is the
// server-assigned conflict tiebreaker; terminal clocks never participate.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  enums.EventType `json:"event_type"`
	OrderID    uuid.UUID       `json:"order_id"`
	Revision   int64           `json:"revision"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Service writes domain events into the transactional outbox.
type Service struct {
	logg *logger.Logger
}

func NewService(logg *logger.Logger) *Service {
	return &Service{logg: logg}
}

// Emit queues an event inside tx. The row only becomes visible to the
// publisher when the surrounding mutation commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   event.OrderID,
		Revision:      event.Revision,
		Payload:       payload,
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"event_type": event.EventType,
			"order_id":   event.OrderID.String(),
			"revision":   event.Revision,
		}
		s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox event queued")
	}
	return nil
}
