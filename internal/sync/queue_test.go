package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
)

func pendingOp(id string) PendingOperation {
	return PendingOperation{
		Kind:        "selection.add",
		CheckID:     uuid.New(),
		OperationID: id,
		Payload:     []byte(`{}`),
	}
}

func TestQueueEnqueueRequiresOperationID(t *testing.T) {
	q := NewQueue(4)

	err := q.Enqueue(PendingOperation{Kind: "selection.add", CheckID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestQueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Enqueue(pendingOp("op-1")))
	require.NoError(t, q.Enqueue(pendingOp("op-2")))

	err := q.Enqueue(pendingOp("op-3"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, 2, q.Len())
}

func TestQueueReplayPreservesOrder(t *testing.T) {
	q := NewQueue(8)
	for _, id := range []string{"op-1", "op-2", "op-3"} {
		require.NoError(t, q.Enqueue(pendingOp(id)))
	}

	var seen []string
	replayed, err := q.Replay(context.Background(), func(_ context.Context, op PendingOperation) error {
		seen = append(seen, op.OperationID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, replayed)
	assert.Equal(t, []string{"op-1", "op-2", "op-3"}, seen)
	assert.Equal(t, 0, q.Len())
}

func TestQueueReplayStopsAtFirstFailure(t *testing.T) {
	q := NewQueue(8)
	for _, id := range []string{"op-1", "op-2", "op-3"} {
		require.NoError(t, q.Enqueue(pendingOp(id)))
	}

	boom := errors.New("server unreachable")
	replayed, err := q.Replay(context.Background(), func(_ context.Context, op PendingOperation) error {
		if op.OperationID == "op-2" {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, replayed)

	// The failed operation and its tail stay queued for the next attempt.
	assert.Equal(t, 2, q.Len())
	var remaining []string
	_, err = q.Replay(context.Background(), func(_ context.Context, op PendingOperation) error {
		remaining = append(remaining, op.OperationID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"op-2", "op-3"}, remaining)
}

func TestQueueReplayHonorsContextCancel(t *testing.T) {
	q := NewQueue(8)
	require.NoError(t, q.Enqueue(pendingOp("op-1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	replayed, err := q.Replay(ctx, func(context.Context, PendingOperation) error {
		t.Fatal("apply should not run after cancellation")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, replayed)
	assert.Equal(t, 1, q.Len())
}
