package api

import (
	"clipforge/config"
	"github.com/gin-gonic/gin"
)

func SetupRouter(h *Handler, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/tasks", h.handleCreateTask)
		v1.GET("/tasks/:taskId", h.handleGetTask)
		v1.DELETE("/tasks/:taskId", h.handleDeleteTask)

		// Generated artifacts (final videos, audio, subtitles)
		v1.GET("/tasks/:taskId/files/:filename", h.handleGetFile)
	}
	return r
}
