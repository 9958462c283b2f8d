package embedcache

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

const (
	// diskMagic marks a complete vector file ("PVE1").
	diskMagic = 0x50564531

	// diskFormatVersion is bumped on incompatible layout changes.
	diskFormatVersion = 1
)

// ErrCacheMiss indicates the key is not present in a tier.
var ErrCacheMiss = errors.New("cache miss")

// diskTier stores one binary vector file per fingerprint.
//
// Writes go to a temporary file first and are published with a rename, so a
// crash mid-write leaves a stray temp file, never a readable half-entry.
// Corrupt entries found on read are deleted and reported as misses.
type diskTier struct {
	dir    string
	logger *logging.Logger
}

func newDiskTier(dir string, logger *logging.Logger) (*diskTier, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &diskTier{dir: dir, logger: logger}, nil
}

// Get reads the vector for key, or ErrCacheMiss.
func (d *diskTier) Get(ctx context.Context, key Fingerprint) ([]float32, error) {
	path := d.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	vector, err := decodeVector(data)
	if err != nil {
		// Self-healing: a corrupt entry is a miss, not an error.
		d.logger.Warn(ctx, "deleting corrupt cache entry",
			zap.String("fingerprint", string(key)),
			zap.Error(err),
		)
		_ = os.Remove(path)
		return nil, ErrCacheMiss
	}

	return vector, nil
}

// Put writes the vector for key. Existing entries are left untouched.
func (d *diskTier) Put(key Fingerprint, vector []float32) error {
	path := d.path(key)

	// Entries are immutable: the first write wins.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create cache shard: %w", err)
	}

	data, err := encodeVector(vector)
	if err != nil {
		return err
	}

	// Write-then-publish: the entry becomes visible only via rename.
	tmp, err := os.CreateTemp(filepath.Dir(path), "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp entry: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close cache entry: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish cache entry: %w", err)
	}

	return nil
}

// Count returns the number of persisted entries.
func (d *diskTier) Count() int {
	count := 0
	_ = filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() && strings.HasSuffix(path, ".vec") {
			count++
		}
		return nil
	})
	return count
}

// Clear removes all persisted entries.
func (d *diskTier) Clear() error {
	if err := os.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return os.MkdirAll(d.dir, 0700)
}

// path returns the entry path for key, sharded by fingerprint prefix to keep
// directories small.
func (d *diskTier) path(key Fingerprint) string {
	k := string(key)
	shard := "xx"
	if len(k) >= 2 {
		shard = k[:2]
	}
	return filepath.Join(d.dir, shard, k+".vec")
}

// encodeVector serializes a vector into the binary entry format.
func encodeVector(vector []float32) ([]byte, error) {
	var buf bytes.Buffer
	header := struct {
		Magic      uint32
		Version    uint16
		Dimensions uint32
	}{
		Magic:      diskMagic,
		Version:    diskFormatVersion,
		Dimensions: uint32(len(vector)),
	}
	if err := binary.Write(&buf, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("failed to encode vector: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeVector parses the binary entry format.
func decodeVector(data []byte) ([]float32, error) {
	r := bytes.NewReader(data)
	var header struct {
		Magic      uint32
		Version    uint16
		Dimensions uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	if header.Magic != diskMagic {
		return nil, fmt.Errorf("invalid cache entry magic %#x", header.Magic)
	}
	if header.Version != diskFormatVersion {
		return nil, fmt.Errorf("unsupported cache entry version %d", header.Version)
	}
	if int64(header.Dimensions)*4 != int64(r.Len()) {
		return nil, fmt.Errorf("truncated cache entry: want %d dims, have %d bytes", header.Dimensions, r.Len())
	}

	vector := make([]float32, header.Dimensions)
	if err := binary.Read(r, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return vector, nil
}
