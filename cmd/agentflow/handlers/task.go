package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/agentflow/cmd/agentflow/container"
	"github.com/lyzr/agentflow/common/tasks"
)

// TaskHandler exposes the human task queue.
type TaskHandler struct {
	queue *tasks.Queue
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(c *container.Container) *TaskHandler {
	return &TaskHandler{queue: c.Queue}
}

// ListTasks lists tasks, optionally filtered by role or assignee.
// GET /api/v1/tasks?role_id=&assignee=
func (h *TaskHandler) ListTasks(c echo.Context) error {
	roleID := c.QueryParam("role_id")
	assignee := c.QueryParam("assignee")

	all := h.queue.List()
	out := make([]*tasks.HumanTask, 0, len(all))
	for _, t := range all {
		if roleID != "" && t.RoleID != roleID {
			continue
		}
		if assignee != "" && t.AssigneeID != assignee {
			continue
		}
		out = append(out, t)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tasks": out})
}

// ListPending lists pending tasks for a role in priority order.
// GET /api/v1/tasks/pending?role_id=
func (h *TaskHandler) ListPending(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tasks": h.queue.GetPendingByRole(c.QueryParam("role_id")),
	})
}

// GetTask returns a single task.
// GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c echo.Context) error {
	task, err := h.queue.Get(c.Param("id"))
	if err != nil {
		return c.JSON(statusForError(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, task)
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

// AssignTask assigns a task to a user.
// POST /api/v1/tasks/:id/assign
func (h *TaskHandler) AssignTask(c echo.Context) error {
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("user_id is required"))
	}

	task, err := h.queue.Assign(c.Param("id"), req.UserID)
	if err != nil {
		return c.JSON(statusForError(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, task)
}

type completeRequest struct {
	Result map[string]interface{} `json:"result"`
}

// CompleteTask resolves a task with its result. Any workflow waiting on
// the task resumes through the queue's completion waiters.
// POST /api/v1/tasks/:id/complete
func (h *TaskHandler) CompleteTask(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	task, err := h.queue.Complete(c.Param("id"), req.Result)
	if err != nil {
		return c.JSON(statusForError(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, task)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectTask rejects a task.
// POST /api/v1/tasks/:id/reject
func (h *TaskHandler) RejectTask(c echo.Context) error {
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	task, err := h.queue.Reject(c.Param("id"), req.Reason)
	if err != nil {
		return c.JSON(statusForError(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, task)
}

// QueueStats returns task counts by status.
// GET /api/v1/tasks/queue/stats
func (h *TaskHandler) QueueStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.queue.Stats())
}
