package cache

import (
	"errors"
	"testing"
	"time"
)

func TestGetMissThenHit(t *testing.T) {
	m := New(time.Minute)
	if _, ok := m.Get("k"); ok {
		t.Fatalf("expected miss on empty memo")
	}
	m.Set("k", 42)
	v, ok := m.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("expected hit with 42, got %v %v", v, ok)
	}
}

func TestExpiry(t *testing.T) {
	m := New(time.Minute)
	current := time.Unix(1000, 0)
	m.now = func() time.Time { return current }

	m.Set("k", "v")
	current = current.Add(59 * time.Second)
	if _, ok := m.Get("k"); !ok {
		t.Fatalf("entry expired too early")
	}
	current = current.Add(2 * time.Second)
	if _, ok := m.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestGetOrFill(t *testing.T) {
	m := New(time.Minute)
	calls := 0
	fill := func() (interface{}, error) {
		calls++
		return "fresh", nil
	}

	v, err := m.GetOrFill("k", fill)
	if err != nil || v.(string) != "fresh" {
		t.Fatalf("unexpected fill result: %v %v", v, err)
	}
	if _, err := m.GetOrFill("k", fill); err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fill called %d times, want 1", calls)
	}
}

func TestGetOrFillErrorNotCached(t *testing.T) {
	m := New(time.Minute)
	wantErr := errors.New("upstream down")
	if _, err := m.GetOrFill("k", func() (interface{}, error) { return nil, wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("expected fill error, got %v", err)
	}
	if _, ok := m.Get("k"); ok {
		t.Fatalf("failed fill must not populate the cache")
	}
}

func TestOverwriteRefreshesTTL(t *testing.T) {
	m := New(time.Minute)
	current := time.Unix(1000, 0)
	m.now = func() time.Time { return current }

	m.Set("k", 1)
	current = current.Add(50 * time.Second)
	m.Set("k", 2)
	current = current.Add(30 * time.Second)

	v, ok := m.Get("k")
	if !ok || v.(int) != 2 {
		t.Fatalf("overwrite should refresh the TTL, got %v %v", v, ok)
	}
}
