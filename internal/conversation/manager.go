// Package conversation keeps per-project conversation buffers.
//
// One buffer exists per project the manager has seen; switching projects
// swaps which buffer is current without discarding the others, so returning
// to a project restores its running context. Appends bind to whichever
// project is current at call time: a message racing a switch lands wholly in
// the old or wholly in the new buffer, never between them.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// ErrNoActiveProject indicates no conversation buffer is current.
var ErrNoActiveProject = errors.New("no active conversation")

// Message is one conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager switches and appends to per-project conversation buffers.
type Manager struct {
	mu      sync.Mutex
	logger  *logging.Logger
	current string
	buffers map[string][]Message
}

// NewManager creates an empty conversation manager.
func NewManager(logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		logger:  logger.Named("conversation"),
		buffers: make(map[string][]Message),
	}
}

// Name identifies this manager in switch results and health reports.
func (m *Manager) Name() string { return "conversation" }

// SwitchProject makes projectID's buffer current, creating it if needed.
// Switching cannot resolvably fail.
func (m *Manager) SwitchProject(ctx context.Context, projectID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == projectID {
		return true, nil
	}

	if _, ok := m.buffers[projectID]; !ok {
		m.buffers[projectID] = nil
	}
	m.current = projectID

	m.logger.Debug(ctx, "conversation switched",
		zap.String("project_id", projectID),
		zap.Int("messages", len(m.buffers[projectID])),
	)
	return true, nil
}

// Current returns the project whose buffer is current, or "".
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Unload detaches the current buffer without discarding it.
func (m *Manager) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
}

// AddMessage appends a message to the buffer current at call time.
func (m *Manager) AddMessage(ctx context.Context, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		return ErrNoActiveProject
	}
	m.buffers[m.current] = append(m.buffers[m.current], Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Messages returns a copy of the current buffer.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		return nil
	}
	buffer := m.buffers[m.current]
	out := make([]Message, len(buffer))
	copy(out, buffer)
	return out
}
