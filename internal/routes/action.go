package routes

import (
	"github.com/gin-gonic/gin"

	"autotrade/internal/handlers"
)

// SetupActionRoutes sets up all routes related to Action management
func SetupActionRoutes(r *gin.Engine) {
	action := r.Group("/actions")
	{
		// Standard CRUD operations
		action.GET("", handlers.ListActions)
		action.GET("/:id", handlers.GetAction)
		action.POST("", handlers.CreateAction)
		action.PUT("/:id", handlers.UpdateAction)
		action.DELETE("/:id", handlers.DeleteAction)

		// Status transitions
		action.POST("/:id/pause", handlers.PauseAction)
		action.POST("/:id/resume", handlers.ResumeAction)
		action.POST("/:id/cancel", handlers.CancelAction)

		// Audit trail
		action.GET("/:id/executions", handlers.GetActionExecutions)

		// Filter operations
		action.GET("/user/:user_id", handlers.GetActionsByUserID)
	}
}
