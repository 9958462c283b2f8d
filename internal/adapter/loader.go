// Package adapter resolves and activates fine-tuned adapter artifacts.
//
// Adapters are produced by an external training pipeline and laid out as
// {dir}/{project-id}/adapter.json plus the weights file the manifest names.
// The loader treats a missing or unreadable artifact as a resolvable failure
// (switch returns false), not an error: errors are reserved for conditions a
// caller cannot anticipate.
package adapter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// Manifest describes one adapter artifact.
type Manifest struct {
	ProjectID   string    `json:"project_id"`
	BaseModel   string    `json:"base_model"`
	WeightsFile string    `json:"weights_file"`
	TrainedAt   time.Time `json:"trained_at"`
}

// Config holds loader settings.
type Config struct {
	// Dir holds adapter artifacts, one subdirectory per project id.
	Dir string
}

// Loader activates the adapter artifact for the current project.
type Loader struct {
	mu       sync.Mutex
	config   Config
	logger   *logging.Logger
	current  string
	manifest *Manifest
}

// NewLoader creates a loader reading artifacts under config.Dir.
func NewLoader(config Config, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		config: config,
		logger: logger.Named("adapter"),
	}
}

// Name identifies this manager in switch results and health reports.
func (l *Loader) Name() string { return "adapter" }

// SwitchProject activates the adapter for projectID.
//
// Returns true without reloading when projectID is already current. Returns
// false when the artifact is missing or malformed.
func (l *Loader) SwitchProject(ctx context.Context, projectID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == projectID {
		return true, nil
	}

	manifestPath := filepath.Join(l.config.Dir, projectID, "adapter.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		l.logger.Warn(ctx, "adapter artifact not found",
			zap.String("project_id", projectID),
			zap.String("path", manifestPath),
			zap.Error(err),
		)
		return false, nil
	}

	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		l.logger.Warn(ctx, "adapter manifest malformed",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		return false, nil
	}

	if manifest.WeightsFile != "" {
		weightsPath := filepath.Join(l.config.Dir, projectID, manifest.WeightsFile)
		if _, err := os.Stat(weightsPath); err != nil {
			l.logger.Warn(ctx, "adapter weights missing",
				zap.String("project_id", projectID),
				zap.String("path", weightsPath),
			)
			return false, nil
		}
	}

	l.current = projectID
	l.manifest = &manifest
	l.logger.Info(ctx, "adapter activated",
		zap.String("project_id", projectID),
		zap.String("base_model", manifest.BaseModel),
	)
	return true, nil
}

// Current returns the project whose adapter is active, or "".
func (l *Loader) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Manifest returns the active adapter manifest, or nil.
func (l *Loader) Manifest() *Manifest {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.manifest == nil {
		return nil
	}
	clone := *l.manifest
	return &clone
}

// Unload deactivates the current adapter.
func (l *Loader) Unload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = ""
	l.manifest = nil
}
