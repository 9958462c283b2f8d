// Package registry maintains the durable catalog of known projects.
//
// State lives in a single registry.json persisted with an atomic
// write-then-rename. Every operation reads the file back in before acting,
// so listings always reflect the durable store rather than a diverging
// in-memory copy.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Errors for registry operations.
var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrInvalidName       = errors.New("invalid name: must be alphanumeric with hyphens/underscores")
	ErrInvalidSourcePath = errors.New("invalid source path")
	ErrInvalidTransition = errors.New("invalid training status transition")
	ErrRegistryCorrupted = errors.New("registry file corrupted")
)

// namePattern validates project names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ProjectRecord is one registered project.
//
// The ID is assigned at registration and immutable. Duplicate source paths
// are allowed: distinct projects may point at snapshots of the same tree.
type ProjectRecord struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	SourcePath     string         `json:"source_path"`
	CreatedAt      time.Time      `json:"created_at"`
	TrainingStatus TrainingStatus `json:"training_status"`
}

// registryData is the persisted registry structure.
type registryData struct {
	Version  int                       `json:"version"`
	Projects map[string]*ProjectRecord `json:"projects"` // key: project id
}

// Registry manages project registration and status tracking.
type Registry struct {
	mu       sync.Mutex
	basePath string
	filePath string
}

// NewRegistry creates a registry rooted at basePath.
func NewRegistry(basePath string) (*Registry, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		basePath = filepath.Join(home, ".config", "projectd", "registry")
	}

	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	r := &Registry{
		basePath: basePath,
		filePath: filepath.Join(basePath, "registry.json"),
	}

	// Fail fast on a corrupted file rather than at first use.
	if _, err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

// ValidateName checks if a project name is acceptable.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: name too long (max 255)", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// Register adds a new project and returns its record.
//
// Every registration gets a fresh unique id, even for a source path that is
// already registered. New projects start in StatusPending.
func (r *Registry) Register(name, sourcePath string) (*ProjectRecord, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if sourcePath == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidSourcePath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return nil, err
	}

	record := &ProjectRecord{
		ID:             uuid.New().String(),
		Name:           name,
		SourcePath:     filepath.Clean(sourcePath),
		CreatedAt:      time.Now().UTC(),
		TrainingStatus: StatusPending,
	}
	data.Projects[record.ID] = record

	if err := r.save(data); err != nil {
		return nil, err
	}

	return cloneRecord(record), nil
}

// Get returns the project with the given id.
func (r *Registry) Get(id string) (*ProjectRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return nil, err
	}

	record, ok := data.Projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return cloneRecord(record), nil
}

// List returns all registered projects, oldest first.
func (r *Registry) List() ([]*ProjectRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return nil, err
	}

	records := make([]*ProjectRecord, 0, len(data.Projects))
	for _, record := range data.Projects {
		records = append(records, cloneRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// UpdateStatus advances a project's training status.
//
// Only forward transitions are allowed; terminal statuses accept nothing
// further. A rejected transition leaves the registry unchanged.
func (r *Registry) UpdateStatus(id string, status TrainingStatus) (*ProjectRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return nil, err
	}

	record, ok := data.Projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}

	if !canTransition(record.TrainingStatus, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.TrainingStatus, status)
	}

	record.TrainingStatus = status
	if err := r.save(data); err != nil {
		return nil, err
	}

	return cloneRecord(record), nil
}

// Ping reports whether the durable store is reachable.
func (r *Registry) Ping() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.load()
	return err
}

// BasePath returns the registry directory.
func (r *Registry) BasePath() string {
	return r.basePath
}

// load reads the registry from disk. A missing file is an empty registry.
func (r *Registry) load() (*registryData, error) {
	data := &registryData{
		Version:  1,
		Projects: make(map[string]*ProjectRecord),
	}

	raw, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryCorrupted, err)
	}
	if data.Projects == nil {
		data.Projects = make(map[string]*ProjectRecord)
	}
	return data, nil
}

// save writes the registry to disk atomically.
func (r *Registry) save(data *registryData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	tmpPath := r.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename registry: %w", err)
	}
	return nil
}

func cloneRecord(record *ProjectRecord) *ProjectRecord {
	clone := *record
	return &clone
}
