package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projectd/internal/adapter"
	"github.com/fyrsmithlabs/projectd/internal/conversation"
	"github.com/fyrsmithlabs/projectd/internal/embedcache"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/orchestrator"
	"github.com/fyrsmithlabs/projectd/internal/registry"
)

// newTestServer wires a server over real collaborators in temp directories.
// The adapter loader points at an empty directory, so switches come back
// degraded unless the test lays artifacts down first.
func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()

	reg, err := registry.NewRegistry(t.TempDir())
	require.NoError(t, err)

	convs := conversation.NewManager(nil)
	adapters := adapter.NewLoader(adapter.Config{Dir: t.TempDir()}, nil)
	orch := orchestrator.New(reg, []orchestrator.ResourceManager{adapters, convs}, nil)

	cache, err := embedcache.New(embedcache.Config{Dir: t.TempDir(), MaxMemoryEntries: 16}, nil)
	require.NoError(t, err)

	server, err := NewServer(Services{
		Orchestrator: orch,
		Registry:     reg,
		Conversation: convs,
		Cache:        cache,
	}, logging.NewNop(), nil)
	require.NoError(t, err)
	return server, reg
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer_RequiresCoreServices(t *testing.T) {
	_, err := NewServer(Services{}, logging.NewNop(), nil)
	assert.Error(t, err)

	reg, err := registry.NewRegistry(t.TempDir())
	require.NoError(t, err)
	orch := orchestrator.New(reg, nil, nil)

	_, err = NewServer(Services{Orchestrator: orch, Registry: reg}, nil, nil)
	assert.Error(t, err, "logger is required")
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health orchestrator.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Registry)
}

func TestRegisterAndListProjects(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/projects", RegisterProjectRequest{
		Name:       "demo",
		SourcePath: "/src/demo",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var record registry.ProjectRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, registry.StatusPending, record.TrainingStatus)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []registry.ProjectRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
}

func TestRegisterProject_InvalidRequests(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/projects", RegisterProjectRequest{
		Name:       "../evil",
		SourcePath: "/src/x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/projects", RegisterProjectRequest{
		Name: "no-path",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwitchProject(t *testing.T) {
	server, reg := newTestServer(t)
	record, err := reg.Register("demo", "/src/demo")
	require.NoError(t, err)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/projects/"+record.ID+"/switch", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result orchestrator.SwitchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	// No adapter artifact exists, so the switch is degraded but accepted.
	assert.True(t, result.Degraded)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/projects/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current CurrentProjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, record.ID, current.ProjectID)
}

func TestSwitchProject_UnknownID(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/projects/no-such-id/switch", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var result orchestrator.SwitchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "switch rejected")
}

func TestSwitchProject_RegistryFailureIsServerError(t *testing.T) {
	server, reg := newTestServer(t)

	// Break the durable store; switch rejections caused by the store must
	// not masquerade as unknown ids.
	regPath := filepath.Join(reg.BasePath(), "registry.json")
	require.NoError(t, os.WriteFile(regPath, []byte("{not json"), 0o600))

	rec := doJSON(t, server, http.MethodPost, "/api/v1/projects/any-id/switch", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth_DegradedAfterFailedManagers(t *testing.T) {
	server, reg := newTestServer(t)
	record, err := reg.Register("demo", "/src/demo")
	require.NoError(t, err)

	doJSON(t, server, http.MethodPost, "/api/v1/projects/"+record.ID+"/switch", nil)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	server, reg := newTestServer(t)
	record, err := reg.Register("demo", "/src/demo")
	require.NoError(t, err)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/projects/"+record.ID+"/status", UpdateStatusRequest{
		Status: "TRAINING",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated registry.ProjectRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, registry.StatusTraining, updated.TrainingStatus)

	// Backwards transition is rejected with a conflict.
	rec = doJSON(t, server, http.MethodPost, "/api/v1/projects/"+record.ID+"/status", UpdateStatusRequest{
		Status: "PENDING",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown project.
	rec = doJSON(t, server, http.MethodPost, "/api/v1/projects/nope/status", UpdateStatusRequest{
		Status: "TRAINING",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessages(t *testing.T) {
	server, reg := newTestServer(t)

	// No active project yet.
	rec := doJSON(t, server, http.MethodPost, "/api/v1/messages", AddMessageRequest{
		Role: "user", Content: "hello",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	record, err := reg.Register("demo", "/src/demo")
	require.NoError(t, err)
	doJSON(t, server, http.MethodPost, "/api/v1/projects/"+record.ID+"/switch", nil)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/messages", AddMessageRequest{
		Role: "user", Content: "hello",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Missing fields rejected.
	rec = doJSON(t, server, http.MethodPost, "/api/v1/messages", AddMessageRequest{Role: "user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var messages []conversation.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestIndexProject_NotConfigured(t *testing.T) {
	server, reg := newTestServer(t)
	record, err := reg.Register("demo", "/src/demo")
	require.NoError(t, err)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/projects/"+record.ID+"/index", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestCacheStats(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats embedcache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.MemoryEntries)
	assert.Zero(t, stats.DiskEntries)
}
