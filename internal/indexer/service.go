// Package indexer builds a project's vector index from its source tree.
//
// The pipeline is: discovery scan, line-window chunking of recognized source
// files, embedding through the two-tier cache, upsert into the active
// project's vector store. Re-indexing an unchanged tree performs no backend
// computations: every chunk fingerprint hits the cache.
package indexer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/discovery"
	"github.com/fyrsmithlabs/projectd/internal/embedcache"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/registry"
	"github.com/fyrsmithlabs/projectd/internal/vectorstore"
)

// Embedder produces vectors for chunk text and identifies the backend for
// fingerprinting.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Identity() string
}

// VectorSink receives the produced documents.
type VectorSink interface {
	Upsert(ctx context.Context, docs []vectorstore.Document) error
}

// Config holds indexing settings.
type Config struct {
	// ChunkLines is the number of lines per chunk.
	ChunkLines int

	// ChunkOverlap is the number of lines shared between adjacent chunks.
	ChunkOverlap int

	// MaxFileSize is the largest file read for indexing.
	MaxFileSize int64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkLines <= 0 {
		c.ChunkLines = 40
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkLines {
		c.ChunkOverlap = 8
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 1024 * 1024
	}
}

// Result holds statistics for one indexing run.
type Result struct {
	ProjectID    string        `json:"project_id"`
	FilesScanned int           `json:"files_scanned"`
	FilesIndexed int           `json:"files_indexed"`
	Chunks       int           `json:"chunks"`
	Duration     time.Duration `json:"duration"`
}

// Service runs the scan-embed-upsert pipeline.
type Service struct {
	config   Config
	scanner  *discovery.Scanner
	cache    *embedcache.Cache
	embedder Embedder
	sink     VectorSink
	logger   *logging.Logger
}

// NewService creates an indexing service.
func NewService(config Config, scanner *discovery.Scanner, cache *embedcache.Cache, embedder Embedder, sink VectorSink, logger *logging.Logger) *Service {
	config.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		config:   config,
		scanner:  scanner,
		cache:    cache,
		embedder: embedder,
		sink:     sink,
		logger:   logger.Named("indexer"),
	}
}

// IndexProject scans the project's source tree and upserts one vector per
// chunk into the sink. The caller must have switched the vector store to
// this project first.
func (s *Service) IndexProject(ctx context.Context, record *registry.ProjectRecord, sink discovery.ProgressSink) (*Result, error) {
	start := time.Now()
	ctx = logging.WithProjectID(ctx, record.ID)

	files, err := s.scanner.Scan(ctx, record.SourcePath, sink)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", record.SourcePath, err)
	}

	result := &Result{
		ProjectID:    record.ID,
		FilesScanned: len(files),
	}

	for _, file := range files {
		if !file.IsSource {
			continue
		}

		chunks, err := s.chunkFile(file.Path)
		if err != nil {
			s.logger.Debug(ctx, "skipping unreadable file",
				zap.String("path", file.Path),
				zap.Error(err),
			)
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		docs := make([]vectorstore.Document, 0, len(chunks))
		for i, chunk := range chunks {
			fingerprint := embedcache.Compute(chunk, s.embedder.Identity())
			vector, err := s.cache.GetOrCompute(ctx, fingerprint, func(ctx context.Context) ([]float32, error) {
				return s.embedder.EmbedQuery(ctx, chunk)
			})
			if err != nil {
				return nil, fmt.Errorf("embedding chunk %d of %s: %w", i, file.Path, err)
			}

			docs = append(docs, vectorstore.Document{
				ID:      fmt.Sprintf("%s#%d", file.Path, i),
				Content: chunk,
				Vector:  vector,
				Metadata: map[string]string{
					"path":        file.Path,
					"type":        string(file.Type),
					"chunk":       fmt.Sprintf("%d", i),
					"fingerprint": string(fingerprint),
				},
			})
		}

		if err := s.sink.Upsert(ctx, docs); err != nil {
			return nil, fmt.Errorf("upserting %s: %w", file.Path, err)
		}
		result.FilesIndexed++
		result.Chunks += len(docs)
	}

	result.Duration = time.Since(start)
	s.logger.Info(ctx, "indexing complete",
		zap.Int("files_scanned", result.FilesScanned),
		zap.Int("files_indexed", result.FilesIndexed),
		zap.Int("chunks", result.Chunks),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// chunkFile reads a file and splits it into overlapping line windows.
// Binary files (invalid UTF-8) and oversized files yield no chunks.
func (s *Service) chunkFile(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > s.config.MaxFileSize {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, nil
	}

	text := strings.TrimRight(string(content), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")

	step := s.config.ChunkLines - s.config.ChunkOverlap
	var chunks []string
	for offset := 0; offset < len(lines); offset += step {
		end := offset + s.config.ChunkLines
		if end > len(lines) {
			end = len(lines)
		}
		chunk := strings.TrimSpace(strings.Join(lines[offset:end], "\n"))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(lines) {
			break
		}
	}
	return chunks, nil
}
