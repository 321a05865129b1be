package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"LegalMind/internal/rag/retriever"
	"LegalMind/internal/service"
	"LegalMind/pkg/logger"
)

// API provides the HTTP handlers for the reasoning service.
type API struct {
	service *service.QueryService
	logger  *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(svc *service.QueryService, log *logger.Logger) *API {
	return &API{service: svc, logger: log}
}

// QueryHandler answers one question against the selected documents.
func (a *API) QueryHandler(c *gin.Context) {
	var payload service.QueryRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.Warn(fmt.Sprintf("invalid query payload: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	result, err := a.service.Query(c.Request.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuery),
			errors.Is(err, service.ErrUnknownDocuments),
			errors.Is(err, retriever.ErrNoDocumentsSelected):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to answer query"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListSessionsHandler lists every live session.
func (a *API) ListSessionsHandler(c *gin.Context) {
	sessions, err := a.service.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// SessionMessagesHandler returns the turn history of one session.
func (a *API) SessionMessagesHandler(c *gin.Context) {
	sessionID := c.Param("id")

	sess, err := a.service.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"turns":      sess.Turns,
	})
}

// DeleteSessionHandler removes a session and its history.
func (a *API) DeleteSessionHandler(c *gin.Context) {
	sessionID := c.Param("id")

	if err := a.service.DeleteSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": sessionID})
}

// AnalyzeQueryHandler classifies a query and shows the expansion the
// retriever would apply, without touching the document corpus.
func (a *API) AnalyzeQueryHandler(c *gin.Context) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	analysis, expanded, err := a.service.AnalyzeQuery(payload.Query)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"original_query": analysis.OriginalQuery,
		"intent":         analysis.Intent,
		"key_terms":      analysis.KeyTerms,
		"phrases":        analysis.Phrases,
		"expanded_query": expanded,
	})
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
