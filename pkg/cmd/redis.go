package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/renewos/renewos/pkg/crm"
	"github.com/renewos/renewos/pkg/lock"
)

// NewRedisClient parses the Redis URL. A nil client (empty URL) means
// single-replica mode: locks become process-local and CRM jobs stay in
// memory.
func NewRedisClient(redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis url: %w", err))
	}

	return redis.NewClient(opts)
}

func NewLocker(client *redis.Client, logger *slog.Logger) lock.Locker {
	if client == nil {
		logger.Warn("no redis configured, using process-local locks")

		return lock.NewLocalLocker()
	}

	return lock.NewRedisLocker(client)
}

func NewCRMQueue(client *redis.Client, logger *slog.Logger) crm.Queue {
	if client == nil {
		logger.Warn("no redis configured, using in-memory crm queue")

		return crm.NewMemoryQueue(1024)
	}

	return crm.NewRedisQueue(client)
}
