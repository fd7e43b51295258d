package signalbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSinkConfig configures a RedisSink. Empty fields fall back to a
// local Redis instance and a "couchkit:signals:" key prefix.
type RedisSinkConfig struct {
	RedisURL  string
	KeyPrefix string
}

// RedisSink publishes drained signals onto a Redis list, letting a
// separate process aggregate signals across many dispatcher instances
// the way a distributed job queue fans work out across workers.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink connects to Redis and verifies the connection with a
// Ping before returning, so a misconfigured URL fails at construction
// rather than on the first published batch.
func NewRedisSink(ctx context.Context, cfg RedisSinkConfig) (*RedisSink, error) {
	url := cfg.RedisURL
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "couchkit:signals:"
	}
	return &RedisSink{client: client, prefix: prefix}, nil
}

// Close closes the underlying Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// PublishBatch RPushes one JSON-encoded entry per signal onto the
// list named by queueName.
func (s *RedisSink) PublishBatch(ctx context.Context, queueName string, signals []Signal, at time.Time) error {
	if len(signals) == 0 {
		return nil
	}

	key := s.prefix + queueName
	entries := make([]interface{}, 0, len(signals))
	for _, sig := range signals {
		rec := fileSinkRecord{
			OperationID: sig.OperationID,
			Operation:   sig.Operation,
			Outcome:     sig.Outcome,
			DurationMS:  sig.DurationMS,
		}
		if sig.Ctx != nil {
			rec.Category = string(sig.Ctx.Category)
			rec.Code = string(sig.Ctx.Code)
			rec.RetryCount = sig.Ctx.RetryAttempts
		}
		rec.Timestamp = at.UTC().Format(time.RFC3339Nano)

		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling signal for redis: %w", err)
		}
		entries = append(entries, string(encoded))
	}

	return s.client.RPush(ctx, key, entries...).Err()
}

// Depth returns the number of entries currently queued for queueName.
func (s *RedisSink) Depth(ctx context.Context, queueName string) (int, error) {
	depth, err := s.client.LLen(ctx, s.prefix+queueName).Result()
	if err != nil {
		return 0, err
	}
	return int(depth), nil
}
