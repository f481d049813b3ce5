// Package redis keeps report dedup records in Redis so that several
// orchestrator replicas share one view of what was already processed.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kilianp07/mtrr/core/dedup"
)

const (
	// dedupKeyPattern is mtrr:dedup:<mission>:<key>.
	dedupKeyPattern = "mtrr:dedup:%d:%s"
	defaultTTL      = 24 * time.Hour
)

// Config addresses the Redis server.
type Config struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	TTL      time.Duration `json:"ttl"`
}

// Deduplicator implements dedup.Store with one key per report.
type Deduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

var _ dedup.Store = (*Deduplicator)(nil)

// NewClient connects and pings the server.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewDeduplicator wraps client. Keys expire after ttl so that abandoned
// missions do not accumulate; zero selects one day.
func NewDeduplicator(client *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Deduplicator{client: client, ttl: ttl}
}

func redisKey(k dedup.Key) string {
	return fmt.Sprintf(dedupKeyPattern, k.MissionID, k.String())
}

// Record uses SETNX so concurrent replicas agree on the first delivery.
func (d *Deduplicator) Record(ctx context.Context, k dedup.Key) (bool, error) {
	ok, err := d.client.SetNX(ctx, redisKey(k), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (d *Deduplicator) Seen(ctx context.Context, k dedup.Key) (bool, error) {
	n, err := d.client.Exists(ctx, redisKey(k)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Reset deletes every key of the mission.
func (d *Deduplicator) Reset(ctx context.Context, missionID int) error {
	iter := d.client.Scan(ctx, 0, fmt.Sprintf(dedupKeyPattern, missionID, "*"), 100).Iterator()
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
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (d *Deduplicator) Close() error { return d.client.Close() }
