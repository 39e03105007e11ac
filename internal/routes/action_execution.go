package routes

import (
	"github.com/gin-gonic/gin"

	"autotrade/internal/handlers"
)

// SetupExecutionRoutes sets up routes for the execution audit trail
func SetupExecutionRoutes(r *gin.Engine) {
	execution := r.Group("/executions")
	{
		execution.GET("/:id", handlers.GetExecution)
	}

	// Live execution feed for the frontend
	r.GET("/ws/executions", handlers.ExecutionFeed)
}
