package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/riskprobe/internal/model"
)

func TestQueryKey_Normalization(t *testing.T) {
	a := QueryKey("searchapi", `"Acme Ltd"   Scam`, 10)
	b := QueryKey("searchapi", `"acme ltd" scam`, 10)

	if a != b {
		t.Errorf("Expected equivalent queries to share a key, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "riskprobe:v1:") {
		t.Errorf("Expected riskprobe prefix, got %s", a)
	}
}

func TestQueryKey_DistinguishesSourceAndLimit(t *testing.T) {
	base := QueryKey("searchapi", "acme", 10)

	if base == QueryKey("direct", "acme", 10) {
		t.Error("Expected different sources to produce different keys")
	}
	if base == QueryKey("searchapi", "acme", 5) {
		t.Error("Expected different result limits to produce different keys")
	}
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	val, ok := c.Get(ctx, "k")
	if !ok || string(val) != "v" {
		t.Errorf("Expected hit with value v, got %q %v", val, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}

	_ = c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	_ = c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Expected entry to expire")
	}
}

func TestDiskCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewDiskCache(t.TempDir(), time.Hour)
	key := QueryKey("searchapi", "acme", 10)

	if err := c.Set(ctx, key, []byte(`{"results":[]}`), 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	val, ok := c.Get(ctx, key)
	if !ok || string(val) != `{"results":[]}` {
		t.Errorf("Expected stored value, got %q %v", val, ok)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Expected no error on delete, got %v", err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}
}

func TestDiskCache_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewDiskCache(t.TempDir(), time.Hour)

	_ = c.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestDiskCache_ClearKeepsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := c.Set(ctx, QueryKey("searchapi", "acme", 10), []byte("x"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	foreign := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(foreign, []byte("keep"), 0o600); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, ok := c.Get(ctx, QueryKey("searchapi", "acme", 10)); ok {
		t.Error("Expected entry removed")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("Expected foreign file kept, got %v", err)
	}
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := NewLayeredCache(time.Hour, dir, time.Hour)
	if err := first.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// A fresh process only has the disk layer populated
	second := NewLayeredCache(time.Hour, dir, time.Hour)
	val, ok := second.Get(ctx, "k")
	if !ok || string(val) != "v" {
		t.Fatalf("Expected disk hit, got %q %v", val, ok)
	}

	if _, ok := second.memory.Get(ctx, "k"); !ok {
		t.Error("Expected value promoted to memory")
	}

	if err := second.Clear(ctx); err != nil {
		t.Errorf("Expected no error on clear, got %v", err)
	}
	if _, ok := second.Get(ctx, "k"); ok {
		t.Error("Expected miss after clear")
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, model.CacheConfig{Enabled: false}, nil)
	if err != nil || c != nil {
		t.Errorf("Expected nil cache when disabled, got %v %v", c, err)
	}

	c, err = New(ctx, model.CacheConfig{Enabled: true, TTLHours: 24}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := c.(*MemoryCache); !ok {
		t.Errorf("Expected memory cache, got %T", c)
	}

	c, err = New(ctx, model.CacheConfig{Enabled: true, TTLHours: 24, Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := c.(*LayeredCache); !ok {
		t.Errorf("Expected layered cache, got %T", c)
	}
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-redis-url", time.Hour)
	if err == nil {
		t.Error("Expected error for invalid redis URL")
	}
}
