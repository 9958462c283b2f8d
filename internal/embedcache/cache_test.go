package embedcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

func newTestCache(t *testing.T, dir string, maxMem int) *Cache {
	t.Helper()
	c, err := New(Config{Dir: dir, MaxMemoryEntries: maxMem}, nil)
	require.NoError(t, err)
	return c
}

func constVector(v []float32) ComputeFunc {
	return func(context.Context) ([]float32, error) {
		return v, nil
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Dir: "", MaxMemoryEntries: 10}, nil)
	assert.Error(t, err)

	_, err = New(Config{Dir: t.TempDir(), MaxMemoryEntries: 0}, nil)
	assert.Error(t, err)
}

func TestGetOrCompute_ComputesOnceAndCachesResult(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 10)
	fp := Compute("package main", "model-a")

	var calls atomic.Int32
	compute := func(context.Context) ([]float32, error) {
		calls.Add(1)
		return []float32{0.1, 0.2, 0.3}, nil
	}

	first, err := c.GetOrCompute(context.Background(), fp, compute)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, first)

	second, err := c.GetOrCompute(context.Background(), fp, compute)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "second call should be a cache hit")
}

func TestGetOrCompute_ConcurrentCallersSingleCompute(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 10)
	fp := Compute("shared content", "model-a")

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) ([]float32, error) {
		calls.Add(1)
		<-release
		return []float32{1, 2}, nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([][]float32, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), fp, compute)
		}(i)
	}
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []float32{1, 2}, results[i])
	}
	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one computation")
}

func TestGetOrCompute_DistinctFingerprintsComputeIndependently(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 10)

	var calls atomic.Int32
	compute := func(context.Context) ([]float32, error) {
		calls.Add(1)
		return []float32{1}, nil
	}

	_, err := c.GetOrCompute(context.Background(), Compute("a", "m"), compute)
	require.NoError(t, err)
	_, err = c.GetOrCompute(context.Background(), Compute("b", "m"), compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrCompute_FailedComputeNotCached(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 10)
	fp := Compute("flaky content", "model-a")

	computeErr := errors.New("backend unavailable")
	_, err := c.GetOrCompute(context.Background(), fp, func(context.Context) ([]float32, error) {
		return nil, computeErr
	})
	assert.ErrorIs(t, err, computeErr)

	stats := c.Stats()
	assert.Zero(t, stats.MemoryEntries)
	assert.Zero(t, stats.DiskEntries)

	// The next call retries and succeeds.
	vector, err := c.GetOrCompute(context.Background(), fp, constVector([]float32{7}))
	require.NoError(t, err)
	assert.Equal(t, []float32{7}, vector)
}

func TestGetOrCompute_DiskTierSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	fp := Compute("durable content", "model-a")

	c1 := newTestCache(t, dir, 10)
	_, err := c1.GetOrCompute(context.Background(), fp, constVector([]float32{0.5, 0.6}))
	require.NoError(t, err)

	// Fresh cache over the same directory: memory is empty, disk is not.
	c2 := newTestCache(t, dir, 10)
	vector, err := c2.GetOrCompute(context.Background(), fp, func(context.Context) ([]float32, error) {
		t.Fatal("compute called despite persisted entry")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6}, vector)

	// The disk hit is promoted into memory.
	assert.Equal(t, 1, c2.Stats().MemoryEntries)
}

func TestGetOrCompute_CorruptDiskEntrySelfHeals(t *testing.T) {
	dir := t.TempDir()
	fp := Compute("corruptible", "model-a")

	c := newTestCache(t, dir, 10)
	_, err := c.GetOrCompute(context.Background(), fp, constVector([]float32{1, 2, 3}))
	require.NoError(t, err)

	// Corrupt the persisted entry in place.
	entryPath := filepath.Join(dir, string(fp)[:2], string(fp)+".vec")
	require.NoError(t, os.WriteFile(entryPath, []byte("garbage"), 0o600))

	// A fresh cache sees the corruption, deletes the entry, and recomputes.
	c2 := newTestCache(t, dir, 10)
	var calls atomic.Int32
	vector, err := c2.GetOrCompute(context.Background(), fp, func(context.Context) ([]float32, error) {
		calls.Add(1)
		return []float32{9}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{9}, vector)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoryTier_EvictsLeastRecentlyUsed(t *testing.T) {
	m := newTestCacheMem()

	m.Put("a", []float32{1})
	m.Put("b", []float32{2})
	// Touch "a" so "b" is now the oldest.
	_, ok := m.Get("a")
	require.True(t, ok)

	evicted := m.Put("c", []float32{3})
	assert.Equal(t, 1, evicted)

	_, ok = m.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = m.Get("a")
	assert.True(t, ok)
	_, ok = m.Get("c")
	assert.True(t, ok)
}

func newTestCacheMem() *memoryTier {
	return newMemoryTier(2)
}

func TestCache_StatsAndClear(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 10)

	for _, content := range []string{"one", "two", "three"} {
		_, err := c.GetOrCompute(context.Background(), Compute(content, "m"), constVector([]float32{1}))
		require.NoError(t, err)
	}

	stats := c.Stats()
	assert.Equal(t, 3, stats.MemoryEntries)
	assert.Equal(t, 3, stats.DiskEntries)

	require.NoError(t, c.Clear())
	stats = c.Stats()
	assert.Zero(t, stats.MemoryEntries)
	assert.Zero(t, stats.DiskEntries)
}

func TestDiskTier_RoundTrip(t *testing.T) {
	d, err := newDiskTier(t.TempDir(), logging.NewNop())
	require.NoError(t, err)

	key := Fingerprint("aabbccdd")
	want := []float32{0.25, -1.5, 3.75}
	require.NoError(t, d.Put(key, want))

	got, err := d.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = d.Get(context.Background(), Fingerprint("unknown"))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestFingerprint_Normalization(t *testing.T) {
	base := Compute("line one\nline two", "model-a")

	// Line-ending and trailing-whitespace differences do not change the key.
	assert.Equal(t, base, Compute("line one\r\nline two", "model-a"))
	assert.Equal(t, base, Compute("line one  \nline two\t\n", "model-a"))

	// Content and backend changes do.
	assert.NotEqual(t, base, Compute("line one\nline 2", "model-a"))
	assert.NotEqual(t, base, Compute("line one\nline two", "model-b"))
	assert.NotEqual(t, base, Compute("line one\nline two", "model-a@v2"))
}
