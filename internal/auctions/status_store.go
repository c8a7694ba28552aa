package auctions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const closerStatusKey = "souqna:auction-closer:status"

// Stale status is worse than none: if the worker dies, the key ages out and
// the endpoint reports the closer as unobserved instead of healthy.
const closerStatusTTL = 24 * time.Hour

type statusRedis interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// StatusStore shares the closer's run snapshot across processes. The cron
// worker runs the closer and writes here; the api process only reads.
type StatusStore interface {
	Save(ctx context.Context, status Status) error
	Load(ctx context.Context) (*Status, error)
}

type redisStatusStore struct {
	client statusRedis
}

// NewRedisStatusStore returns a status store backed by the shared redis.
func NewRedisStatusStore(client statusRedis) (StatusStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisStatusStore{client: client}, nil
}

func (s *redisStatusStore) Save(ctx context.Context, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal closer status: %w", err)
	}
	return s.client.Set(ctx, closerStatusKey, string(payload), closerStatusTTL)
}

// Load returns the last reported status, or nil when no run has reported yet.
func (s *redisStatusStore) Load(ctx context.Context) (*Status, error) {
	raw, err := s.client.Get(ctx, closerStatusKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("decode closer status: %w", err)
	}
	return &status, nil
}
