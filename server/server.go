// Package server exposes the orchestrator over HTTP.
//
// The layer is deliberately thin: it decodes requests, calls the
// orchestrator surface, and encodes the result as-is. All tool-calling
// logic lives in the agent package.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/richinex/curator/agent"
	"github.com/richinex/curator/docstore"
)

const healthTimeout = 5 * time.Second

// Server wires the orchestrator and store health into a gin router.
type Server struct {
	orchestrator *agent.Orchestrator
	store        docstore.Store
	engine       *gin.Engine
}

// MessageRequest is the body of POST /message.
type MessageRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message" binding:"required"`
}

// New creates a server around an orchestrator and its store.
func New(orchestrator *agent.Orchestrator, store docstore.Store) *Server {
	s := &Server{
		orchestrator: orchestrator,
		store:        store,
	}
	s.engine = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.Default()

	router.POST("/message", s.handleMessage)
	router.GET("/tools", s.handleTools)
	router.GET("/history/:id", s.handleGetHistory)
	router.DELETE("/history/:id", s.handleClearHistory)
	router.GET("/healthz", s.handleHealth)

	return router
}

// Run starts the HTTP server on addr, blocking until it exits.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler returns the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = "default"
	}

	result := s.orchestrator.ProcessMessage(c.Request.Context(), req.ConversationID, req.Message)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

func (s *Server) handleTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.orchestrator.GetToolInfo()})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"conversationId": id,
		"messages":       s.orchestrator.GetHistory(id),
	})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	id := c.Param("id")
	s.orchestrator.ClearHistory(id)
	c.JSON(http.StatusOK, gin.H{"conversationId": id, "cleared": true})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
