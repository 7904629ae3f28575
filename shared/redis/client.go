// Package redis provides the connection helper for the listing cache.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string, logger *slog.Logger) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Successfully connected to Redis",
		slog.String("addr", opts.Addr),
		slog.Int("db", opts.DB),
	)

	return client, nil
}
