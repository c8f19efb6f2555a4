package concepts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const progressKeyPrefix = "publish:progress:"

// ProgressStore keeps progress snapshots of in-flight publishes in Redis so
// clients can poll while the multipart request is still running. Snapshots
// expire after the configured TTL.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressStore creates a progress store. ttl <= 0 falls back to 30 minutes.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ProgressStore{client: client, ttl: ttl}
}

// Set stores the snapshot under the publish id.
func (s *ProgressStore) Set(ctx context.Context, publishID string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, progressKeyPrefix+publishID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

// Get returns the snapshot for a publish id, or nil when none exists.
func (s *ProgressStore) Get(ctx context.Context, publishID string) (*Snapshot, error) {
	raw, err := s.client.Get(ctx, progressKeyPrefix+publishID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
