package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobsKey = "renewos:crm:jobs"

// RedisQueue is a Redis list used as a durable job queue for CRM updates.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, update Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal crm update: %w", err)
	}

	err = q.client.RPush(ctx, jobsKey, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue crm update: %w", err)
	}

	return nil
}

// Dequeue blocks until a job is available or the context is cancelled.
func (q *RedisQueue) Dequeue(ctx context.Context) (Update, error) {
	result, err := q.client.BLPop(ctx, 5*time.Second, jobsKey).Result()
	if err != nil {
		return Update{}, err
	}

	var update Update

	err = json.Unmarshal([]byte(result[1]), &update)
	if err != nil {
		return Update{}, fmt.Errorf("failed to unmarshal crm update: %w", err)
	}

	return update, nil
}
