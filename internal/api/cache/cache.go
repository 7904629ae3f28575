// Package cache keeps the company directory in Redis between ingestions.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alfa546/pak-job-portal/internal/api/model"
)

const keyPrefix = "pakjobs:companies:"

// CompanyCache stores ListCompanies results per limit.
type CompanyCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewCompanyCache(client *goredis.Client, ttl time.Duration) *CompanyCache {
	return &CompanyCache{client: client, ttl: ttl}
}

func key(limit int) string {
	return fmt.Sprintf("%s%d", keyPrefix, limit)
}

// Get returns the cached directory; ok is false on a miss.
func (c *CompanyCache) Get(ctx context.Context, limit int) ([]model.Company, bool, error) {
	raw, err := c.client.Get(ctx, key(limit)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var companies []model.Company
	if err := json.Unmarshal(raw, &companies); err != nil {
		return nil, false, fmt.Errorf("decode cached companies: %w", err)
	}
	return companies, true, nil
}

func (c *CompanyCache) Set(ctx context.Context, limit int, companies []model.Company) error {
	raw, err := json.Marshal(companies)
	if err != nil {
		return fmt.Errorf("encode companies: %w", err)
	}
	if err := c.client.Set(ctx, key(limit), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops every cached page. Called after jobs are written.
func (c *CompanyCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
