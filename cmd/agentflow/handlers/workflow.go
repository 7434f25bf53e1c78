package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/agentflow/cmd/agentflow/container"
	"github.com/lyzr/agentflow/common/flowerr"
)

// WorkflowHandler handles workflow run requests.
type WorkflowHandler struct {
	container *container.Container
}

// NewWorkflowHandler creates a new workflow handler.
func NewWorkflowHandler(c *container.Container) *WorkflowHandler {
	return &WorkflowHandler{container: c}
}

type runRequest struct {
	FilePath string `json:"filePath"`
	APIKey   string `json:"apiKey,omitempty"`
}

// SubmitRun starts a workflow run from a file on the server host.
// POST /api/v1/workflows/run
func (h *WorkflowHandler) SubmitRun(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if req.FilePath == "" {
		return c.JSON(http.StatusBadRequest, errorBody("filePath is required"))
	}

	run, err := h.container.StartRun(req.FilePath, req.APIKey)
	if err != nil {
		return c.JSON(statusForError(err), errorBody(err.Error()))
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"runId":   run.ID,
		"status":  string(run.Status),
		"message": "workflow run started",
	})
}

// GetRun returns the live status of a run.
// GET /api/v1/workflows/runs/:id
func (h *WorkflowHandler) GetRun(c echo.Context) error {
	run, err := h.container.GetRun(c.Param("id"))
	if err != nil {
		return c.JSON(statusForError(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, run)
}

// ListRuns returns every run started by this process.
// GET /api/v1/workflows/runs
func (h *WorkflowHandler) ListRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"runs": h.container.ListRuns(),
	})
}

func errorBody(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

func statusForError(err error) int {
	switch flowerr.KindOf(err) {
	case flowerr.KindNotFound:
		return http.StatusNotFound
	case flowerr.KindValidation:
		return http.StatusBadRequest
	case flowerr.KindAuthentication:
		return http.StatusUnauthorized
	case flowerr.KindPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
