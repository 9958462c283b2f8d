// Package embeddings provides embedding generation via a TEI-compatible API.
//
// The embedding backend is an external collaborator: this package only wraps
// its HTTP surface. Failures propagate to callers untouched so the embedding
// cache never stores a failed computation.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the base URL for the embedding API.
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// Revision identifies the backend configuration. It participates in
	// cache fingerprints, so bumping it invalidates cached vectors.
	Revision string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service provides embedding generation functionality.
type Service struct {
	config Config
	client *http.Client
}

// NewService creates a new embedding service with the given configuration.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &Service{
		config: config,
		client: &http.Client{},
	}, nil
}

// Identity returns the backend identity string used in cache fingerprints.
func (s *Service) Identity() string {
	if s.config.Revision == "" {
		return s.config.Model
	}
	return s.config.Model + "@" + s.config.Revision
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err := s.embed(ctx, teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single text.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vectors, err := s.embed(ctx, teiRequest{Inputs: text, Truncate: true})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// embed performs one call against the TEI embed endpoint.
func (s *Service) embed(ctx context.Context, req teiRequest) ([][]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return vectors, nil
}
