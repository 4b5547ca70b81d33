package infra

import (
	"context"
	"testing"
	"time"

	"query-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMemoryStatsStore_CountsByRouteAndKey(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Key: "a", Allowed: true, Method: "POST", Path: "/ask"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "a", Allowed: false, Method: "POST", Path: "/ask"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "b", Allowed: true, Method: "POST", Path: "/ask"})

	snap := s.Snapshot()
	if snap.Total.Allowed != 2 || snap.Total.Denied != 1 {
		t.Fatalf("unexpected total %+v", snap.Total)
	}
	if got := snap.ByRoute["POST /ask"]; got.Allowed != 2 || got.Denied != 1 {
		t.Fatalf("unexpected route counters %+v", got)
	}
	if got := snap.ByKey["a"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected key counters %+v", got)
	}
}

func TestRedisStatsStore_WritesHashes(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("st:"), WithStatsTrackKeys(true), WithStatsTTL(time.Hour))
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	err := s.Record(context.Background(), domain.StatsEvent{Key: "c1", Allowed: false, Method: "POST", Path: "/ask", At: at})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mr.HGet("st:total", "denied"); got != "1" {
		t.Fatalf("expected total denied=1, got %q", got)
	}
	if got := mr.HGet("st:minute:202405011230", "denied"); got != "1" {
		t.Fatalf("expected minute bucket denied=1, got %q", got)
	}
	if got := mr.HGet("st:route", "POST /ask:denied"); got != "1" {
		t.Fatalf("expected route counter, got %q", got)
	}
	if ttl := mr.TTL("st:key:c1"); ttl != time.Hour {
		t.Fatalf("expected key ttl 1h, got %s", ttl)
	}
}

func TestPrometheusStatsStore_CountsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusStatsStore(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = s.Record(context.Background(), domain.StatsEvent{Allowed: false, Method: "POST", Path: "/ask"})

	if got := testutil.ToFloat64(s.decisions.WithLabelValues("POST /ask", "denied")); got != 1 {
		t.Fatalf("expected 1 denied decision, got %v", got)
	}
}

func TestMultiStats_FansOut(t *testing.T) {
	a, b := NewMemoryStatsStore(), NewMemoryStatsStore()
	_ = domain.MultiStats{a, nil, b}.Record(context.Background(), domain.StatsEvent{Allowed: true})
	if a.Snapshot().Total.Allowed != 1 || b.Snapshot().Total.Allowed != 1 {
		t.Fatalf("expected both stores to record")
	}
}
