// Package cache keeps volunteer summaries in redis so dashboards do not hit
// the volunteers table on every refresh.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"volunteerledger/internal/query"
)

const keyPrefix = "ledger:summary:"

// Summaries is a redis-backed query.SummaryCache. Writers invalidate entries
// after commit; readers repopulate on miss.
type Summaries struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaries returns nil when client is nil. A nil *Summaries is a cache
// that always misses.
func NewSummaries(client *redis.Client, ttl time.Duration) *Summaries {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Summaries{client: client, ttl: ttl}
}

// Key is the redis key holding one volunteer's summary.
func Key(volunteerID string) string { return keyPrefix + volunteerID }

// Get returns the cached summary. A miss is (zero, false, nil).
func (s *Summaries) Get(ctx context.Context, volunteerID string) (query.Summary, bool, error) {
	if s == nil {
		return query.Summary{}, false, nil
	}
	raw, err := s.client.Get(ctx, Key(volunteerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return query.Summary{}, false, nil
	}
	if err != nil {
		return query.Summary{}, false, err
	}
	var sum query.Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		// corrupt entry; drop it and report a miss
		_ = s.client.Del(ctx, Key(volunteerID)).Err()
		return query.Summary{}, false, nil
	}
	return sum, true, nil
}

// Set stores a summary with the configured TTL.
func (s *Summaries) Set(ctx context.Context, sum query.Summary) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, Key(sum.VolunteerID), b, s.ttl).Err()
}

// Invalidate removes the summaries of the given volunteers.
func (s *Summaries) Invalidate(ctx context.Context, volunteerIDs ...string) error {
	if s == nil || len(volunteerIDs) == 0 {
		return nil
	}
	keys := make([]string, len(volunteerIDs))
	for i, id := range volunteerIDs {
		keys[i] = Key(id)
	}
	return s.client.Del(ctx, keys...).Err()
}
