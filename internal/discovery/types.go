// Package discovery walks project source trees under a wall-clock deadline.
//
// A scan classifies every regular file it can reach, skips entries it cannot
// read, and reports progress through a ProgressSink at a bounded rate. Scans
// are synchronous: no goroutine outlives the Scan call.
package discovery

import (
	"errors"
	"time"
)

// Errors for discovery operations.
var (
	// ErrInvalidRoot indicates the scan root does not exist or is not a
	// directory. Returned before any traversal begins.
	ErrInvalidRoot = errors.New("discovery root is not a directory")

	// ErrTimeout indicates the scan exceeded its wall-clock deadline.
	// No partial result accompanies it.
	ErrTimeout = errors.New("discovery deadline exceeded")
)

// FileType is the detected type of a discovered file.
type FileType string

// Known file types.
const (
	TypeGo         FileType = "go"
	TypePython     FileType = "python"
	TypeJavaScript FileType = "javascript"
	TypeTypeScript FileType = "typescript"
	TypeRust       FileType = "rust"
	TypeC          FileType = "c"
	TypeCPP        FileType = "cpp"
	TypeJava       FileType = "java"
	TypeRuby       FileType = "ruby"
	TypeShell      FileType = "shell"
	TypeSQL        FileType = "sql"
	TypeMarkdown   FileType = "markdown"
	TypeJSON       FileType = "json"
	TypeYAML       FileType = "yaml"
	TypeTOML       FileType = "toml"
	TypeHTML       FileType = "html"
	TypeCSS        FileType = "css"
	TypeText       FileType = "text"
	TypeUnknown    FileType = "unknown"
)

// FileDescriptor describes a single discovered file.
type FileDescriptor struct {
	// Path is the absolute path of the file.
	Path string `json:"path"`

	// Type is the detected file type.
	Type FileType `json:"detected_type"`

	// IsSource reports whether the file is recognized source code.
	IsSource bool `json:"is_source"`
}

// ProgressSink receives human-readable scan progress.
//
// Implementations may write to a console, a UI, or a log. A sink that
// panics does not abort the scan.
type ProgressSink interface {
	OnProgress(message string)
}

// Config holds scanner settings.
type Config struct {
	// Timeout is the wall-clock budget for one scan. A non-positive
	// timeout fails immediately with ErrTimeout.
	Timeout time.Duration

	// ProgressInterval bounds how often the sink is called.
	ProgressInterval time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 500 * time.Millisecond
	}
}
