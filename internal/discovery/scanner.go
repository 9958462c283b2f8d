package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// defaultSkipDirs are directories that should always be skipped during a scan.
// These typically contain generated code, dependencies, or version control data.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true, // Rust/Java build output
}

// Scanner performs deadline-bounded file discovery.
type Scanner struct {
	config Config
	logger *logging.Logger
}

// NewScanner creates a scanner with the given configuration.
func NewScanner(config Config, logger *logging.Logger) *Scanner {
	config.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		config: config,
		logger: logger.Named("discovery"),
	}
}

// Scan traverses root and returns descriptors for every reachable regular
// file, in lexicographic path order.
//
// The scan never runs longer than the configured timeout; on expiry it
// returns ErrTimeout and discards whatever it found, so callers can tell a
// timed-out scan apart from an empty tree. Unreadable entries (permission
// errors, broken symlinks) are skipped, not fatal. The sink, when non-nil,
// receives progress at most every ProgressInterval.
func (s *Scanner) Scan(ctx context.Context, root string, sink ProgressSink) ([]FileDescriptor, error) {
	cleanRoot, err := validateRoot(root)
	if err != nil {
		return nil, err
	}

	if s.config.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout %s", ErrTimeout, s.config.Timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var (
		found        []FileDescriptor
		visited      int
		lastProgress = time.Now()
	)

	err = filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, walkErr error) error {
		// Check the deadline before touching the entry. WalkDir is
		// synchronous, so returning here abandons the traversal without
		// leaking any background work.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			// Unreadable entry: skip it and keep walking.
			s.logger.Debug(ctx, "skipping unreadable entry",
				zap.String("path", path),
				zap.Error(walkErr),
			)
			return nil
		}

		if d.IsDir() {
			if path != cleanRoot && defaultSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		detected, isSource := Classify(path)
		found = append(found, FileDescriptor{
			Path:     path,
			Type:     detected,
			IsSource: isSource,
		})
		visited++

		if sink != nil && time.Since(lastProgress) >= s.config.ProgressInterval {
			s.notify(ctx, sink, fmt.Sprintf("scanning %s: %d files found", cleanRoot, visited))
			lastProgress = time.Now()
		}

		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: after %d files", ErrTimeout, visited)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	if sink != nil {
		s.notify(ctx, sink, fmt.Sprintf("scan complete: %d files found", visited))
	}

	return found, nil
}

// notify delivers one progress message, isolating the scan from sink panics.
func (s *Scanner) notify(ctx context.Context, sink ProgressSink, message string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn(ctx, "progress sink panicked", zap.Any("panic", r))
		}
	}()
	sink.OnProgress(message)
}

// validateRoot validates and cleans the scan root.
func validateRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}

	cleanRoot := filepath.Clean(root)

	info, err := os.Stat(cleanRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s does not exist", ErrInvalidRoot, cleanRoot)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrInvalidRoot, cleanRoot)
	}

	return cleanRoot, nil
}
