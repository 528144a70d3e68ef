package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tablewire/pos-engine/pkg/config"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/outbox"
	"github.com/tablewire/pos-engine/pkg/redis"
)

// Loader fetches the authoritative order set for a full replica reload.
type Loader func(ctx context.Context) ([]models.Order, error)

// Listener keeps a Replica converged: it applies pub/sub deltas as they
// arrive and swaps in a full reload on a timer, which also repairs any
// deltas lost while disconnected.
type Listener struct {
	subscriber redis.Subscriber
	replica    *Replica
	loader     Loader
	cfg        config.SyncConfig
	logg       *logger.Logger
}

func NewListener(subscriber redis.Subscriber, replica *Replica, loader Loader, cfg config.SyncConfig, logg *logger.Logger) *Listener {
	return &Listener{
		subscriber: subscriber,
		replica:    replica,
		loader:     loader,
		cfg:        cfg,
		logg:       logg,
	}
}

// Run blocks until ctx is done. The initial reload happens before any delta
// is applied, so the replica never serves from an empty mirror.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.reload(ctx); err != nil {
		return err
	}

	deltas, err := l.subscriber.Subscribe(ctx, l.cfg.Channel)
	if err != nil {
		return err
	}

	interval := l.cfg.ReloadInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.reload(ctx); err != nil && l.logg != nil {
				l.logg.Error(ctx, "replica reload failed", err)
			}
		case payload, ok := <-deltas:
			if !ok {
				return nil
			}
			l.apply(ctx, payload)
		}
	}
}

func (l *Listener) apply(ctx context.Context, payload []byte) {
	var envelope outbox.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		if l.logg != nil {
			l.logg.Error(ctx, "malformed sync delta dropped", err)
		}
		return
	}
	applied, err := l.replica.Apply(&envelope)
	if err != nil {
		if l.logg != nil {
			l.logg.Error(ctx, "sync delta apply failed", err)
		}
		return
	}
	if !applied && l.logg != nil {
		fields := map[string]any{
			"order_id": envelope.OrderID.String(),
			"revision": envelope.Revision,
		}
		l.logg.Debug(l.logg.WithFields(ctx, fields), "stale sync delta dropped")
	}
}

func (l *Listener) reload(ctx context.Context) error {
	orders, err := l.loader(ctx)
	if err != nil {
		return err
	}
	l.replica.ReplaceAll(orders)
	if l.logg != nil {
		fields := map[string]any{"orders": len(orders)}
		l.logg.Debug(l.logg.WithFields(ctx, fields), "replica reloaded")
	}
	return nil
}
