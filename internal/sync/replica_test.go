package sync

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	"github.com/tablewire/pos-engine/pkg/outbox"
)

func envelopeFor(t *testing.T, order *models.Order) *outbox.Envelope {
	t.Helper()
	data, err := json.Marshal(order)
	require.NoError(t, err)
	return &outbox.Envelope{
		EventID:   uuid.NewString(),
		EventType: enums.EventOrderUpdated,
		OrderID:   order.ID,
		Revision:  order.Revision,
		Data:      data,
	}
}

func TestReplicaAppliesNewerRevision(t *testing.T) {
	replica := NewReplica()
	orderID := uuid.New()

	applied, err := replica.Apply(envelopeFor(t, &models.Order{ID: orderID, Revision: 1, TotalCents: 1000}))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = replica.Apply(envelopeFor(t, &models.Order{ID: orderID, Revision: 3, TotalCents: 2500}))
	require.NoError(t, err)
	assert.True(t, applied)

	mirrored, ok := replica.Get(orderID)
	require.True(t, ok)
	assert.EqualValues(t, 3, mirrored.Revision)
	assert.EqualValues(t, 2500, mirrored.TotalCents)
}

func TestReplicaDropsStaleAndDuplicateDeltas(t *testing.T) {
	replica := NewReplica()
	orderID := uuid.New()

	_, err := replica.Apply(envelopeFor(t, &models.Order{ID: orderID, Revision: 5, TotalCents: 5000}))
	require.NoError(t, err)

	// A late delivery of an older revision must not win.
	applied, err := replica.Apply(envelopeFor(t, &models.Order{ID: orderID, Revision: 4, TotalCents: 4000}))
	require.NoError(t, err)
	assert.False(t, applied)

	// Redelivery of the current revision is a no-op.
	applied, err = replica.Apply(envelopeFor(t, &models.Order{ID: orderID, Revision: 5, TotalCents: 9999}))
	require.NoError(t, err)
	assert.False(t, applied)

	mirrored, _ := replica.Get(orderID)
	assert.EqualValues(t, 5000, mirrored.TotalCents)
}

func TestReplicaApplyRejectsMalformedPayload(t *testing.T) {
	replica := NewReplica()

	_, err := replica.Apply(&outbox.Envelope{
		OrderID:  uuid.New(),
		Revision: 1,
		Data:     json.RawMessage(`{"revision": "not a number"`),
	})
	require.Error(t, err)
	assert.Equal(t, 0, replica.Len())
}

func TestReplicaReplaceAllSwapsMirror(t *testing.T) {
	replica := NewReplica()
	stale := uuid.New()
	_, err := replica.Apply(envelopeFor(t, &models.Order{ID: stale, Revision: 1}))
	require.NoError(t, err)

	fresh := []models.Order{
		{ID: uuid.New(), Revision: 2},
		{ID: uuid.New(), Revision: 7},
	}
	replica.ReplaceAll(fresh)

	assert.Equal(t, 2, replica.Len())
	_, ok := replica.Get(stale)
	assert.False(t, ok)
	mirrored, ok := replica.Get(fresh[1].ID)
	require.True(t, ok)
	assert.EqualValues(t, 7, mirrored.Revision)
}
