package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/oidcrp/component"
)

type record struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client, err := New(Config{Enabled: true, Addr: mini.Addr()}, nil)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mini
}

func TestTypedStore_SaveNew(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[record](client, "state")
	ctx := context.Background()

	ok, err := store.SaveNew(ctx, "k", &record{Value: "first", Count: 2}, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first SaveNew to succeed, got %v, %v", ok, err)
	}
	if !mini.Exists("oidcrp:state:k") {
		t.Fatalf("expected prefixed key, have %v", mini.Keys())
	}
	if ttl := mini.TTL("oidcrp:state:k"); ttl != time.Minute {
		t.Errorf("expected 1m TTL, got %v", ttl)
	}
	ok, err = store.SaveNew(ctx, "k", &record{Value: "second"}, time.Minute)
	if err != nil || ok {
		t.Fatalf("expected collision, got %v, %v", ok, err)
	}
	got, err := store.Take(ctx, "k")
	if err != nil || got == nil || got.Value != "first" || got.Count != 2 {
		t.Errorf("expected original value kept, got %+v, %v", got, err)
	}
	if mini.Exists("oidcrp:state:k") {
		t.Error("expected Take to remove the key")
	}
}

func TestTypedStore_TakeIsSingleUse(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[record](client, "state")
	ctx := context.Background()
	if _, err := store.SaveNew(ctx, "once", &record{Value: "v"}, time.Minute); err != nil {
		t.Fatal(err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Take(ctx, "once")
			if err != nil {
				t.Errorf("Take failed: %v", err)
				return
			}
			if got != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestTypedStore_ExpiredKey(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[record](client, "state")
	ctx := context.Background()
	if _, err := store.SaveNew(ctx, "k", &record{}, time.Second); err != nil {
		t.Fatal(err)
	}

	mini.FastForward(2 * time.Second)
	if got, err := store.Take(ctx, "k"); err != nil || got != nil {
		t.Errorf("expected nil for expired key, got %+v, %v", got, err)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	c := NewComponent(Config{Enabled: true, Addr: mini.Addr()}, nil)
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s (%s)", h.Status, h.Message)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestComponent_StartFailsWhenUnreachable(t *testing.T) {
	mini := miniredis.RunT(t)
	addr := mini.Addr()
	mini.Close()

	c := NewComponent(Config{Enabled: true, Addr: addr, DialTimeout: 100 * time.Millisecond, MaxRetries: 1}, nil)
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail")
	}
}
