package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/agentflow/cmd/agentflow/container"
	"github.com/lyzr/agentflow/cmd/agentflow/handlers"
)

// RegisterWorkflowRoutes registers workflow run routes.
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(c)

	workflows := e.Group("/api/v1/workflows")
	{
		workflows.POST("/run", h.SubmitRun)
		workflows.GET("/runs", h.ListRuns)
		workflows.GET("/runs/:id", h.GetRun)
	}
}
