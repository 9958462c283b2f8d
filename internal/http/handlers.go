package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/projectd/internal/conversation"
	"github.com/fyrsmithlabs/projectd/internal/registry"
)

// ErrorResponse is the body for all error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterProjectRequest is the body for POST /api/v1/projects.
type RegisterProjectRequest struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
}

// UpdateStatusRequest is the body for POST /api/v1/projects/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AddMessageRequest is the body for POST /api/v1/messages.
type AddMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CurrentProjectResponse is the body for GET /api/v1/projects/current.
type CurrentProjectResponse struct {
	ProjectID string `json:"project_id,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	health := s.services.Orchestrator.Health(c.Request().Context())
	code := http.StatusOK
	if health.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, health)
}

func (s *Server) handleListProjects(c echo.Context) error {
	records, err := s.services.Registry.List()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleRegisterProject(c echo.Context) error {
	var req RegisterProjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	record, err := s.services.Registry.Register(req.Name, req.SourcePath)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidName) || errors.Is(err, registry.ErrInvalidSourcePath) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, record)
}

func (s *Server) handleCurrentProject(c echo.Context) error {
	return c.JSON(http.StatusOK, CurrentProjectResponse{
		ProjectID: s.services.Orchestrator.CurrentProject(),
	})
}

func (s *Server) handleSwitchProject(c echo.Context) error {
	result := s.services.Orchestrator.Switch(c.Request().Context(), c.Param("id"))
	code := http.StatusOK
	if !result.Success {
		// An unknown id is the caller's mistake; anything else (corrupt or
		// unreadable registry) is ours.
		if errors.Is(result.Err, registry.ErrProjectNotFound) {
			code = http.StatusNotFound
		} else {
			code = http.StatusInternalServerError
		}
	}
	return c.JSON(code, result)
}

func (s *Server) handleUpdateStatus(c echo.Context) error {
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	record, err := s.services.Registry.UpdateStatus(c.Param("id"), registry.TrainingStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrProjectNotFound):
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		case errors.Is(err, registry.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleIndexProject(c echo.Context) error {
	if s.services.Indexer == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "indexing not configured"})
	}

	id := c.Param("id")
	record, err := s.services.Registry.Get(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}

	// Indexing writes into the active project's vector store; the project
	// must be switched in first.
	if s.services.Orchestrator.CurrentProject() != id {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "project is not active; switch to it first"})
	}

	result, err := s.services.Indexer.IndexProject(c.Request().Context(), record, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleAddMessage(c echo.Context) error {
	if s.services.Conversation == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "conversations not configured"})
	}

	var req AddMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.Role == "" || req.Content == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "role and content are required"})
	}

	if err := s.services.Conversation.AddMessage(c.Request().Context(), req.Role, req.Content); err != nil {
		if errors.Is(err, conversation.ErrNoActiveProject) {
			return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListMessages(c echo.Context) error {
	if s.services.Conversation == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "conversations not configured"})
	}
	messages := s.services.Conversation.Messages()
	if messages == nil {
		messages = []conversation.Message{}
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *Server) handleCacheStats(c echo.Context) error {
	if s.services.Cache == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "cache not configured"})
	}
	return c.JSON(http.StatusOK, s.services.Cache.Stats())
}
