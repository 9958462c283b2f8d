// Package orchestrator coordinates switching the active project across the
// per-project resource managers.
//
// Switches are serialized behind a single gate; reads observe a consistent
// snapshot of the active state. A switch that fails in some managers is
// sticky: managers that succeeded stay on the new project, the failures are
// surfaced, and re-invoking the switch with the same id retries only the
// managers currently in error. No compensating rollback is attempted.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/registry"
)

// managerOrder note: the vector store switches first, then the adapter, then
// the conversation buffer, so a chat request arriving mid-switch sees either
// the fully-old or fully-new vector store, never a stale pairing of new
// index with old model.

// Orchestrator owns the process-wide active-project state.
type Orchestrator struct {
	// switchMu serializes switches: the single admission point.
	switchMu sync.Mutex

	// stateMu guards the snapshot below; reads take it shared.
	stateMu  sync.RWMutex
	current  string
	statuses map[string]ManagerStatus

	registry *registry.Registry
	managers []ResourceManager
	logger   *logging.Logger
}

// New creates an orchestrator over the given registry and managers.
// Managers are driven in the order given; callers pass the vector store
// first, then the adapter loader, then the conversation manager.
func New(reg *registry.Registry, managers []ResourceManager, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}

	statuses := make(map[string]ManagerStatus, len(managers))
	for _, m := range managers {
		statuses[m.Name()] = ManagerStatus{Name: m.Name(), State: StateUnloaded}
	}

	return &Orchestrator{
		current:  "",
		statuses: statuses,
		registry: reg,
		managers: managers,
		logger:   logger.Named("orchestrator"),
	}
}

// Switch makes projectID the active project.
//
// The id must exist in the registry; otherwise the request fails and the
// active state is untouched. After a successful lookup the current project
// id is updated unconditionally, even if managers fail: the result then
// reports the degraded subsystems.
func (o *Orchestrator) Switch(ctx context.Context, projectID string) SwitchResult {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	record, err := o.registry.Get(projectID)
	if err != nil {
		o.logger.Warn(ctx, "switch rejected", zap.String("project_id", projectID), zap.Error(err))
		return SwitchResult{
			Success:   false,
			ProjectID: projectID,
			Message:   fmt.Sprintf("switch rejected: %v", err),
			Err:       err,
		}
	}

	ctx = logging.WithProjectID(ctx, record.ID)

	o.stateMu.RLock()
	sameProject := o.current == projectID
	prev := make(map[string]ManagerStatus, len(o.statuses))
	for name, status := range o.statuses {
		prev[name] = status
	}
	o.stateMu.RUnlock()

	statuses := make([]ManagerStatus, 0, len(o.managers))
	var degraded []string
	for _, m := range o.managers {
		// Re-switching to the current project retries only managers
		// that are in error; loaded ones are left alone.
		if sameProject && prev[m.Name()].State == StateLoaded {
			statuses = append(statuses, prev[m.Name()])
			continue
		}

		status := ManagerStatus{Name: m.Name(), State: StateLoaded}
		ok, switchErr := m.SwitchProject(ctx, projectID)
		switch {
		case switchErr != nil:
			status.State = StateError
			status.Detail = switchErr.Error()
		case !ok:
			status.State = StateError
			status.Detail = "resource unavailable"
		}
		if status.State == StateError {
			degraded = append(degraded, m.Name())
			o.logger.Warn(ctx, "manager failed during switch",
				zap.String("manager", m.Name()),
				zap.String("detail", status.Detail),
			)
		}
		statuses = append(statuses, status)
	}

	// The registry lookup succeeded, so the switch takes effect regardless
	// of manager outcomes.
	o.stateMu.Lock()
	o.current = projectID
	for _, status := range statuses {
		o.statuses[status.Name] = status
	}
	o.stateMu.Unlock()

	result := SwitchResult{
		Success:   true,
		Degraded:  len(degraded) > 0,
		ProjectID: projectID,
		Managers:  statuses,
	}
	if result.Degraded {
		result.Message = fmt.Sprintf("switched to project %s (%s); degraded: %s",
			record.Name, projectID, strings.Join(degraded, ", "))
	} else {
		result.Message = fmt.Sprintf("switched to project %s (%s)", record.Name, projectID)
	}

	o.logger.Info(ctx, "project switched",
		zap.String("project", record.Name),
		zap.Bool("degraded", result.Degraded),
	)
	return result
}

// CurrentProject returns the active project id, or "".
func (o *Orchestrator) CurrentProject() string {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.current
}

// State returns a consistent snapshot of the active-project state.
func (o *Orchestrator) State() ActiveState {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()

	return ActiveState{
		CurrentProjectID: o.current,
		Managers:         o.orderedStatusesLocked(),
	}
}

// Health reports manager states plus registry reachability.
func (o *Orchestrator) Health(ctx context.Context) Health {
	state := o.State()

	health := Health{
		Status:           "ok",
		CurrentProjectID: state.CurrentProjectID,
		Managers:         state.Managers,
		Registry:         "ok",
	}

	if err := o.registry.Ping(); err != nil {
		health.Registry = "unreachable"
		health.Status = "degraded"
		o.logger.Error(ctx, "registry unreachable", zap.Error(err))
	}
	for _, status := range state.Managers {
		if status.State == StateError {
			health.Status = "degraded"
		}
	}
	return health
}

// orderedStatusesLocked returns statuses in manager order.
// Caller holds stateMu.
func (o *Orchestrator) orderedStatusesLocked() []ManagerStatus {
	out := make([]ManagerStatus, 0, len(o.managers))
	for _, m := range o.managers {
		out = append(out, o.statuses[m.Name()])
	}
	return out
}
