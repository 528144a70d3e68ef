package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
)

// PendingOperation is a mutation captured while the terminal was offline.
// It keeps its original operation id, so replaying after reconnect dedupes
// against anything that did reach the server.
type PendingOperation struct {
	Kind        string
	CheckID     uuid.UUID
	OperationID string
	Payload     []byte
	EnqueuedAt  time.Time
}

// Applier submits one queued operation to the server.
type Applier func(ctx context.Context, op PendingOperation) error

// Queue is a bounded FIFO of operations awaiting reconnection. Replay
// preserves submission order and stops at the first failure, leaving the
// unreplayed tail intact.
type Queue struct {
	mu       stdsync.Mutex
	ops      []PendingOperation
	capacity int
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{capacity: capacity}
}

// Enqueue appends an operation. A full queue rejects the operation; the
// terminal must surface that to the operator rather than drop silently.
func (q *Queue) Enqueue(op PendingOperation) error {
	if op.OperationID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "queued operations require an operation id")
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) >= q.capacity {
		return pkgerrors.New(pkgerrors.CodeConflict, "offline queue is full")
	}
	q.ops = append(q.ops, op)
	return nil
}

// Len reports the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Replay submits queued operations in order. On the first failure the failed
// operation and everything after it stay queued; replayed operations are
// removed. Returns the number successfully replayed.
func (q *Queue) Replay(ctx context.Context, apply Applier) (int, error) {
	q.mu.Lock()
	pending := make([]PendingOperation, len(q.ops))
	copy(pending, q.ops)
	q.mu.Unlock()

	replayed := 0
	for _, op := range pending {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := apply(ctx, op); err != nil {
			q.drop(replayed)
			return replayed, err
		}
		replayed++
	}
	q.drop(replayed)
	return replayed, nil
}

func (q *Queue) drop(n int) {
	if n == 0 {
		return
	}
	q.mu.Lock()
	if n >= len(q.ops) {
		q.ops = q.ops[:0]
	} else {
		q.ops = append(q.ops[:0], q.ops[n:]...)
	}
	q.mu.Unlock()
}
