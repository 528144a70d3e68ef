package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/logger"
)

// Transport delivers a serialized envelope to subscribed terminals.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Publisher drains unpublished outbox rows to the sync channel in commit
// order.
type Publisher struct {
	db        *gorm.DB
	transport Transport
	channel   string
	batchSize int
	logg      *logger.Logger
}

func NewPublisher(db *gorm.DB, transport Transport, channel string, logg *logger.Logger) *Publisher {
	return &Publisher{
		db:        db,
		transport: transport,
		channel:   channel,
		batchSize: 100,
		logg:      logg,
	}
}

// PublishPending sends every unpublished event and marks it published.
// Returns the number of events delivered.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	var rows []models.OutboxEvent
	err := p.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC").
		Limit(p.batchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range rows {
		envelope := Envelope{
			EventID:    uuid.NewString(),
			EventType:  rows[i].EventType,
			OrderID:    rows[i].AggregateID,
			Revision:   rows[i].Revision,
			OccurredAt: rows[i].CreatedAt,
			Data:       rows[i].Payload,
		}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return published, err
		}
		if err := p.transport.Publish(ctx, p.channel, payload); err != nil {
			// Leave the row unpublished; the next pass retries from here so
			// delivery stays in commit order.
			return published, err
		}
		now := time.Now().UTC()
		if err := p.db.WithContext(ctx).
			Model(&models.OutboxEvent{}).
			Where("id = ?", rows[i].ID).
			Update("published_at", now).Error; err != nil {
			return published, err
		}
		published++
	}

	if published > 0 && p.logg != nil {
		p.logg.Debug(p.logg.WithField(ctx, "count", published), "outbox events published")
	}
	return published, nil
}

// Run drains the outbox on the given interval until ctx is done.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishPending(ctx); err != nil && p.logg != nil {
				p.logg.Error(ctx, "outbox publish pass failed", err)
			}
		}
	}
}
