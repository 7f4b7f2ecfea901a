package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/riskprobe/internal/model"
)

// Cache defines the interface for the read-through query cache
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// NormalizeQuery lowercases a query and collapses whitespace so equivalent queries share a key
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// QueryKey generates a cache key for a source query
func QueryKey(source, query string, maxResults int) string {
	raw := source + "\x00" + NormalizeQuery(query) + "\x00" + strconv.Itoa(maxResults)
	hash := sha256.Sum256([]byte(raw))
	return "riskprobe:v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache selected by configuration: Redis when a URL is set,
// memory plus disk when a directory is set, memory otherwise. Returns nil when disabled.
func New(ctx context.Context, cfg model.CacheConfig, logger *slog.Logger) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	ttl := cfg.TTL()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if cfg.RedisURL != "" {
		c, err := NewRedisCache(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		logger.Info("query cache backend", "backend", "redis", "ttl", ttl)
		return c, nil
	}

	if cfg.Dir != "" {
		logger.Info("query cache backend", "backend", "layered", "dir", cfg.Dir, "ttl", ttl)
		return NewLayeredCache(ttl, filepath.Clean(cfg.Dir), ttl), nil
	}

	logger.Info("query cache backend", "backend", "memory", "ttl", ttl)
	return NewMemoryCache(ttl, 10*time.Minute), nil
}
