package orchestrator

import "context"

// ManagerState is the lifecycle state of one resource manager.
type ManagerState string

// Manager states.
const (
	StateLoaded   ManagerState = "loaded"
	StateUnloaded ManagerState = "unloaded"
	StateError    ManagerState = "error"
)

// ResourceManager is the contract shared by the per-project managers
// (vector store, adapter loader, conversation context).
//
// SwitchProject is idempotent for the manager's current project: it returns
// true without re-loading. A false return is a resolvable failure (missing
// artifact, unopenable index); errors are reserved for unexpected
// conditions. The orchestrator is the only admission point for switches, so
// implementations may assume at most one switch is in flight at a time.
type ResourceManager interface {
	Name() string
	SwitchProject(ctx context.Context, projectID string) (bool, error)
	Current() string
	Unload()
}

// ManagerStatus is the recorded state of one manager.
type ManagerStatus struct {
	Name   string       `json:"name"`
	State  ManagerState `json:"state"`
	Detail string       `json:"detail,omitempty"`
}

// SwitchResult is the outcome of a switch request.
//
// A switch with manager failures still succeeds at the orchestration level:
// the user is never blocked from moving to the new project. Degraded is then
// true and Managers names the failed subsystems. This is deliberate policy,
// not leniency by accident.
type SwitchResult struct {
	Success   bool            `json:"success"`
	Degraded  bool            `json:"degraded"`
	ProjectID string          `json:"project_id"`
	Managers  []ManagerStatus `json:"managers,omitempty"`
	Message   string          `json:"message"`

	// Err is the registry error that rejected the switch, nil on success.
	// Callers inspect it to tell an unknown id from a failing store.
	Err error `json:"-"`
}

// ActiveState is a consistent snapshot of the process-wide active project.
type ActiveState struct {
	CurrentProjectID string          `json:"current_project_id,omitempty"`
	Managers         []ManagerStatus `json:"managers"`
}

// Health aggregates manager states and registry reachability.
type Health struct {
	Status           string          `json:"status"` // "ok" or "degraded"
	CurrentProjectID string          `json:"current_project_id,omitempty"`
	Managers         []ManagerStatus `json:"managers"`
	Registry         string          `json:"registry"` // "ok" or "unreachable"
}
