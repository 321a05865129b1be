package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all routes for the reasoning service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/healthz", api.HealthHandler)

	chat := router.Group("/api/chat")
	{
		chat.POST("/query", api.QueryHandler)
		chat.POST("/analyze-query", api.AnalyzeQueryHandler)
		chat.GET("/sessions", api.ListSessionsHandler)
		chat.GET("/sessions/:id/messages", api.SessionMessagesHandler)
		chat.DELETE("/sessions/:id", api.DeleteSessionHandler)
	}
}
