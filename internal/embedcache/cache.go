// Package embedcache provides a content-addressed two-tier cache for
// embedding vectors.
//
// Lookup order is memory, then disk, then the supplied compute function.
// A disk hit is promoted into memory. Concurrent requests for the same
// fingerprint collapse into a single computation; unrelated fingerprints
// proceed fully in parallel. Failed computations are never stored.
package embedcache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// ComputeFunc produces the vector for a fingerprint on a full miss.
// It ultimately calls the embedding backend and owns its own timeout.
type ComputeFunc func(ctx context.Context) ([]float32, error)

// Config holds cache settings.
type Config struct {
	// Dir is the directory for the persistent tier.
	Dir string

	// MaxMemoryEntries bounds the in-memory tier.
	MaxMemoryEntries int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("cache dir is required")
	}
	if c.MaxMemoryEntries <= 0 {
		return fmt.Errorf("max memory entries must be positive, got %d", c.MaxMemoryEntries)
	}
	return nil
}

// Stats reports entry counts per tier.
type Stats struct {
	MemoryEntries int `json:"memory_entries"`
	DiskEntries   int `json:"disk_entries"`
}

// Cache is the two-tier embedding cache.
type Cache struct {
	mem     *memoryTier
	disk    *diskTier
	group   singleflight.Group
	metrics *Metrics
	logger  *logging.Logger
}

// New creates a cache with the given configuration.
func New(config Config, logger *logging.Logger) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("embedcache")

	disk, err := newDiskTier(config.Dir, logger)
	if err != nil {
		return nil, err
	}

	return &Cache{
		mem:     newMemoryTier(config.MaxMemoryEntries),
		disk:    disk,
		metrics: NewMetrics(logger.Underlying()),
		logger:  logger,
	}, nil
}

// GetOrCompute returns the vector for fingerprint, computing it at most once
// per process no matter how many callers ask concurrently.
//
// Compute failures propagate to every waiting caller untouched and leave the
// cache clean: the next call with the same fingerprint retries.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint Fingerprint, compute ComputeFunc) ([]float32, error) {
	if vector, ok := c.mem.Get(fingerprint); ok {
		c.metrics.RecordHit(ctx, "memory")
		return vector, nil
	}

	result, err, _ := c.group.Do(string(fingerprint), func() (interface{}, error) {
		// A concurrent caller may have filled the memory tier while we
		// waited for the flight slot.
		if vector, ok := c.mem.Get(fingerprint); ok {
			c.metrics.RecordHit(ctx, "memory")
			return vector, nil
		}

		vector, diskErr := c.disk.Get(ctx, fingerprint)
		if diskErr == nil {
			c.metrics.RecordHit(ctx, "disk")
			c.metrics.RecordEvictions(ctx, c.mem.Put(fingerprint, vector))
			return vector, nil
		}
		if diskErr != ErrCacheMiss {
			return nil, diskErr
		}

		c.metrics.RecordMiss(ctx)
		start := time.Now()
		vector, computeErr := compute(ctx)
		c.metrics.RecordCompute(ctx, time.Since(start), computeErr)
		if computeErr != nil {
			return nil, computeErr
		}

		// A disk write failure degrades persistence, not the call.
		if putErr := c.disk.Put(fingerprint, vector); putErr != nil {
			c.logger.Warn(ctx, "failed to persist cache entry", zap.Error(putErr))
		}
		c.metrics.RecordEvictions(ctx, c.mem.Put(fingerprint, vector))
		return vector, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]float32), nil
}

// Stats returns entry counts for both tiers.
func (c *Cache) Stats() Stats {
	return Stats{
		MemoryEntries: c.mem.Len(),
		DiskEntries:   c.disk.Count(),
	}
}

// Clear drops all entries from both tiers.
func (c *Cache) Clear() error {
	c.mem.Clear()
	return c.disk.Clear()
}
