// Package vectorstore manages per-project embedded vector indexes.
//
// Each project owns one chromem-go persistent database under
// {base}/{project-id}. The manager holds at most one open database: a switch
// drops the previous project's handle as soon as the new one is acquired, so
// write traffic can never land in two projects at once.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// chunksCollection is the per-project collection holding code chunks.
const chunksCollection = "code_chunks"

// Errors for vector store operations.
var (
	// ErrNoActiveProject indicates no project index is currently open.
	ErrNoActiveProject = errors.New("no active project index")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")
)

// Document is one vector with its source content and metadata.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult is one similarity search hit.
type SearchResult struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Config holds vector store settings.
type Config struct {
	// BasePath holds per-project indexes, one subdirectory per project id.
	BasePath string

	// VectorSize is the expected embedding dimension.
	VectorSize int

	// Compress enables gzip compression for persisted data.
	Compress bool
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("base path is required")
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", c.VectorSize)
	}
	return nil
}

// Manager opens and switches per-project index connections.
type Manager struct {
	mu         sync.Mutex
	config     Config
	logger     *logging.Logger
	current    string
	db         *chromem.DB
	collection *chromem.Collection
}

// NewManager creates a manager storing indexes under config.BasePath.
func NewManager(config Config, logger *logging.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		config: config,
		logger: logger.Named("vectorstore"),
	}, nil
}

// Name identifies this manager in switch results and health reports.
func (m *Manager) Name() string { return "vectorstore" }

// SwitchProject opens the index for projectID, releasing the previous one.
//
// Returns true without reopening when projectID is already current. Returns
// false when the index location cannot be opened.
func (m *Manager) SwitchProject(ctx context.Context, projectID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == projectID && m.db != nil {
		return true, nil
	}

	path := filepath.Join(m.config.BasePath, projectID)
	db, err := chromem.NewPersistentDB(path, m.config.Compress)
	if err != nil {
		m.logger.Warn(ctx, "failed to open project index",
			zap.String("project_id", projectID),
			zap.String("path", path),
			zap.Error(err),
		)
		return false, nil
	}

	collection, err := db.GetOrCreateCollection(chunksCollection, nil, rejectingEmbeddingFunc())
	if err != nil {
		m.logger.Warn(ctx, "failed to open chunks collection",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		return false, nil
	}

	// Release the previous project's handle immediately after acquiring
	// the new one. chromem needs no explicit close; dropping the
	// reference retires it.
	m.db = db
	m.collection = collection
	m.current = projectID

	m.logger.Info(ctx, "project index opened",
		zap.String("project_id", projectID),
		zap.Int("documents", collection.Count()),
	)
	return true, nil
}

// Current returns the project whose index is open, or "".
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Unload closes the current project's index.
func (m *Manager) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db = nil
	m.collection = nil
	m.current = ""
}

// Upsert adds documents with precomputed vectors to the active index.
func (m *Manager) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	m.mu.Lock()
	collection := m.collection
	m.mu.Unlock()
	if collection == nil {
		return ErrNoActiveProject
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if len(doc.Vector) != m.config.VectorSize {
			return fmt.Errorf("document %s: vector size %d, want %d", doc.ID, len(doc.Vector), m.config.VectorSize)
		}
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Vector,
			Metadata:  doc.Metadata,
		}
	}

	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Query searches the active index for the k nearest documents.
func (m *Manager) Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	m.mu.Lock()
	collection := m.collection
	m.mu.Unlock()
	if collection == nil {
		return nil, ErrNoActiveProject
	}

	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, res := range results {
		out[i] = SearchResult{
			ID:         res.ID,
			Content:    res.Content,
			Similarity: res.Similarity,
			Metadata:   res.Metadata,
		}
	}
	return out, nil
}

// Count returns the number of documents in the active index, or 0.
func (m *Manager) Count() int {
	m.mu.Lock()
	collection := m.collection
	m.mu.Unlock()
	if collection == nil {
		return 0
	}
	return collection.Count()
}

// rejectingEmbeddingFunc returns an embedding func that always fails.
// Vectors are computed upstream through the embedding cache; nothing in this
// package may silently embed on its own.
func rejectingEmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("vectors must be precomputed by the embedding pipeline")
	}
}
