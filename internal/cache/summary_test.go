package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"volunteerledger/internal/cache"
	"volunteerledger/internal/query"
)

func TestNewSummaries_NilClient(t *testing.T) {
	if s := cache.NewSummaries(nil, time.Minute); s != nil {
		t.Errorf("NewSummaries(nil) = %v, want nil", s)
	}
}

func TestKey(t *testing.T) {
	if got := cache.Key("abc"); got != "ledger:summary:abc" {
		t.Errorf("Key = %q", got)
	}
}

func TestSummaries_UnreachableRedisReturnsError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	s := cache.NewSummaries(client, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, ok, err := s.Get(ctx, "v1"); err == nil || ok {
		t.Errorf("Get = ok %v, err %v; want error", ok, err)
	}
	if err := s.Invalidate(ctx); err != nil {
		t.Errorf("Invalidate with no ids should be a no-op, got %v", err)
	}
	if err := s.Invalidate(ctx, "v1"); err == nil {
		t.Error("expected Invalidate to fail against unreachable redis")
	}
}

func TestSummaries_NilAlwaysMisses(t *testing.T) {
	var s *cache.Summaries
	ctx := context.Background()
	if _, ok, err := s.Get(ctx, "v1"); ok || err != nil {
		t.Errorf("Get on nil cache = ok %v, err %v", ok, err)
	}
	if err := s.Set(ctx, query.Summary{VolunteerID: "v1"}); err != nil {
		t.Errorf("Set on nil cache = %v", err)
	}
	if err := s.Invalidate(ctx, "v1"); err != nil {
		t.Errorf("Invalidate on nil cache = %v", err)
	}
}

func newSummaries(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *cache.Summaries) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cache.NewSummaries(client, ttl)
}

func TestSummaries_SetThenGet(t *testing.T) {
	mr, s := newSummaries(t, 5*time.Minute)
	ctx := context.Background()

	want := query.Summary{VolunteerID: "v1", EventsAttended: 4, TotalHours: 10.5}
	if err := s.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "v1")
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
	if ttl := mr.TTL(cache.Key("v1")); ttl != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", ttl)
	}

	mr.FastForward(6 * time.Minute)
	if _, ok, err := s.Get(ctx, "v1"); ok || err != nil {
		t.Errorf("Get after expiry = ok %v, err %v; want miss", ok, err)
	}
}

func TestSummaries_GetMisses(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		wantGone  bool
		wantStore bool
	}{
		{name: "absent"},
		{name: "corrupt entry is dropped", stored: "{not json", wantStore: true, wantGone: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, s := newSummaries(t, time.Minute)
			key := cache.Key("v1")
			if tt.wantStore {
				if err := mr.Set(key, tt.stored); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}

			got, ok, err := s.Get(context.Background(), "v1")
			if ok || err != nil || got != (query.Summary{}) {
				t.Fatalf("Get = (%+v, %v, %v), want a clean miss", got, ok, err)
			}
			if tt.wantGone && mr.Exists(key) {
				t.Error("corrupt entry still cached")
			}
		})
	}
}

func TestSummaries_InvalidateDeletesOnlyNamedKeys(t *testing.T) {
	mr, s := newSummaries(t, time.Minute)
	ctx := context.Background()
	for _, id := range []string{"v1", "v2", "v3"} {
		if err := s.Set(ctx, query.Summary{VolunteerID: id, EventsAttended: 1}); err != nil {
			t.Fatalf("Set(%s): %v", id, err)
		}
	}

	if err := s.Invalidate(ctx, "v1", "v3", "never-cached"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	for id, want := range map[string]bool{"v1": false, "v2": true, "v3": false} {
		if got := mr.Exists(cache.Key(id)); got != want {
			t.Errorf("%s cached = %v, want %v", id, got, want)
		}
	}
}
