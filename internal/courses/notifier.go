package courses

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tablewire/pos-engine/pkg/redis"
)

// KitchenChannel carries fire notifications to kitchen display terminals.
const KitchenChannel = "pos.kitchen.fire"

// RedisNotifier publishes course fires on the kitchen pub/sub channel.
type RedisNotifier struct {
	publisher redis.Publisher
}

func NewRedisNotifier(publisher redis.Publisher) *RedisNotifier {
	return &RedisNotifier{publisher: publisher}
}

type fireMessage struct {
	OrderID     uuid.UUID `json:"order_id"`
	CourseIndex int       `json:"course_index"`
	FiredAt     time.Time `json:"fired_at"`
}

func (n *RedisNotifier) CourseFired(ctx context.Context, orderID uuid.UUID, index int) error {
	payload, err := json.Marshal(fireMessage{
		OrderID:     orderID,
		CourseIndex: index,
		FiredAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, KitchenChannel, payload)
}
