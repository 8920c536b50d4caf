package pool

import (
	"context"
	"testing"
	"time"
)

func TestHealthAggregatorEmptyIsHealthy(t *testing.T) {
	h := NewHealthAggregator()
	resp := h.GetAggregatedHealth()
	if !resp.OverallHealthy {
		t.Fatal("aggregator with no components should report healthy")
	}
	if len(resp.Components) != 0 {
		t.Fatalf("expected no components, got %d", len(resp.Components))
	}
}

func TestHealthAggregatorTracksUpdates(t *testing.T) {
	broker := NewBroker()
	h := NewHealthAggregator()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Listen(ctx, broker)

	broker.Publish(PoolHealthUpdate{PoolType: "database", Status: HealthHealthy, Message: "ok"})
	broker.Publish(PoolHealthUpdate{PoolType: "redis", Status: HealthUnhealthy, Message: "down"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		resp := h.GetAggregatedHealth()
		if len(resp.Components) == 2 {
			if resp.OverallHealthy {
				t.Fatal("expected overall unhealthy with one unhealthy component")
			}
			if resp.Components[0].Name != "database" || resp.Components[1].Name != "redis" {
				t.Fatalf("components not sorted by name: %+v", resp.Components)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for both components to register")
}

func TestHealthAggregatorOptionalFailureDoesNotFlipOverall(t *testing.T) {
	broker := NewBroker()
	h := NewHealthAggregator()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Listen(ctx, broker)

	broker.Publish(PoolHealthUpdate{PoolType: "database", Status: HealthHealthy})
	broker.Publish(PoolHealthUpdate{PoolType: "nats", Status: HealthUnhealthy, Optional: true})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		resp := h.GetAggregatedHealth()
		if len(resp.Components) == 2 {
			if !resp.OverallHealthy {
				t.Fatal("expected overall healthy: the unhealthy component is optional")
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for both components to register")
}

func TestHealthAggregatorAllHealthy(t *testing.T) {
	broker := NewBroker()
	h := NewHealthAggregator()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Listen(ctx, broker)

	broker.Publish(PoolHealthUpdate{PoolType: "database", Status: HealthHealthy})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		resp := h.GetAggregatedHealth()
		if len(resp.Components) == 1 {
			if !resp.OverallHealthy {
				t.Fatal("expected overall healthy")
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for component to register")
}
