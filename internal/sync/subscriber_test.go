package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewire/pos-engine/pkg/config"
	"github.com/tablewire/pos-engine/pkg/db/models"
)

// stubSubscriber hands the listener a channel it controls directly. The
// subscribed channel name is reported through channels so the tests can
// synchronize on the subscription without sharing memory.
type stubSubscriber struct {
	deltas     chan []byte
	subscribed chan string
}

func newStubSubscriber() *stubSubscriber {
	return &stubSubscriber{
		deltas:     make(chan []byte, 8),
		subscribed: make(chan string, 1),
	}
}

func (s *stubSubscriber) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	s.subscribed <- channel
	return s.deltas, nil
}

func startListener(t *testing.T, sub *stubSubscriber, replica *Replica, loader Loader, cfg config.SyncConfig) (context.CancelFunc, chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	listener := NewListener(sub, replica, loader, cfg, nil)
	go func() { done <- listener.Run(ctx) }()

	select {
	case channel := <-sub.subscribed:
		assert.Equal(t, cfg.Channel, channel)
	case <-time.After(time.Second):
		t.Fatal("listener never subscribed")
	}
	return cancel, done
}

func TestListenerReloadsBeforeSubscribing(t *testing.T) {
	sub := newStubSubscriber()
	replica := NewReplica()
	seeded := models.Order{ID: uuid.New(), Revision: 2, TotalCents: 1800}
	loader := func(ctx context.Context) ([]models.Order, error) {
		return []models.Order{seeded}, nil
	}

	cancel, done := startListener(t, sub, replica, loader,
		config.SyncConfig{Channel: "pos.orders.delta", ReloadInterval: time.Hour})

	// The subscription only exists once the initial load finished, so a
	// terminal reading through this replica never sees an empty mirror.
	assert.Equal(t, 1, replica.Len())
	mirrored, ok := replica.Get(seeded.ID)
	require.True(t, ok)
	assert.EqualValues(t, 1800, mirrored.TotalCents)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestListenerAppliesStreamedDeltas(t *testing.T) {
	sub := newStubSubscriber()
	replica := NewReplica()
	loader := func(ctx context.Context) ([]models.Order, error) { return nil, nil }

	cancel, done := startListener(t, sub, replica, loader,
		config.SyncConfig{Channel: "pos.orders.delta", ReloadInterval: time.Hour})

	order := &models.Order{ID: uuid.New(), Revision: 1, TotalCents: 2400}
	payload, err := json.Marshal(envelopeFor(t, order))
	require.NoError(t, err)

	// A malformed frame must be dropped without killing the loop.
	sub.deltas <- []byte(`{"order_id":`)
	sub.deltas <- payload

	require.Eventually(t, func() bool {
		mirrored, ok := replica.Get(order.ID)
		return ok && mirrored.TotalCents == 2400
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, replica.Len())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestListenerPeriodicReloadRepairsMirror(t *testing.T) {
	sub := newStubSubscriber()
	replica := NewReplica()
	first := models.Order{ID: uuid.New(), Revision: 1}
	second := models.Order{ID: uuid.New(), Revision: 1}

	// The second order only shows up on reload, standing in for a delta the
	// terminal missed while disconnected.
	var calls atomic.Int32
	loader := func(ctx context.Context) ([]models.Order, error) {
		if calls.Add(1) == 1 {
			return []models.Order{first}, nil
		}
		return []models.Order{first, second}, nil
	}

	cancel, done := startListener(t, sub, replica, loader,
		config.SyncConfig{Channel: "pos.orders.delta", ReloadInterval: 10 * time.Millisecond})

	require.Eventually(t, func() bool { return replica.Len() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestListenerStopsWhenStreamCloses(t *testing.T) {
	sub := newStubSubscriber()
	loader := func(ctx context.Context) ([]models.Order, error) { return nil, nil }

	cancel, done := startListener(t, sub, NewReplica(), loader,
		config.SyncConfig{Channel: "pos.orders.delta", ReloadInterval: time.Hour})
	defer cancel()

	close(sub.deltas)
	require.NoError(t, <-done)
}

func TestListenerFailsWhenInitialReloadFails(t *testing.T) {
	boom := errors.New("store unavailable")
	loader := func(ctx context.Context) ([]models.Order, error) { return nil, boom }

	listener := NewListener(newStubSubscriber(), NewReplica(), loader, config.SyncConfig{}, nil)
	require.ErrorIs(t, listener.Run(context.Background()), boom)
}
