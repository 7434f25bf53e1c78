package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/agentflow/cmd/agentflow/container"
	"github.com/lyzr/agentflow/cmd/agentflow/handlers"
)

// RegisterTaskRoutes registers human task queue routes.
func RegisterTaskRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewTaskHandler(c)

	tasks := e.Group("/api/v1/tasks")
	{
		tasks.GET("", h.ListTasks)
		tasks.GET("/pending", h.ListPending)
		tasks.GET("/queue/stats", h.QueueStats)
		tasks.GET("/:id", h.GetTask)
		tasks.POST("/:id/assign", h.AssignTask)
		tasks.POST("/:id/complete", h.CompleteTask)
		tasks.POST("/:id/reject", h.RejectTask)
	}
}
