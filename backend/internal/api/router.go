package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"thinkflow/backend/internal/adapter"
	"thinkflow/backend/internal/chat"
	"thinkflow/backend/internal/workspace"
	"thinkflow/backend/pkg/logger"
)

// Handler serves the mind map HTTP API
type Handler struct {
	workspace *workspace.Workspace
	chat      *chat.Orchestrator
	logger    *zap.Logger

	llmBaseURL string
	llmModel   string
	llmOptions []adapter.Option
}

// NewHandler creates a handler. chat may be built without an LLM, in which
// case the chat endpoints answer 503 until POST /api/config/ai succeeds.
func NewHandler(ws *workspace.Workspace, orch *chat.Orchestrator, opts ...HandlerOption) *Handler {
	h := &Handler{
		workspace: ws,
		chat:      orch,
		logger:    logger.Named("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter builds the gin engine with logging, recovery, CORS and every route
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(h.logger))
	router.Use(gin.Recovery())
	router.Use(cors())

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", h.health)
		api.POST("/config/ai", h.configureAI)
		api.GET("/config/ai/status", h.aiStatus)

		api.GET("/mindmaps", h.listMindMaps)
		api.POST("/mindmaps", h.createMindMap)

		m := api.Group("/mindmaps/:id")
		m.GET("", h.getMindMap)
		m.PUT("", h.renameMindMap)
		m.DELETE("", h.deleteMindMap)

		m.POST("/nodes", h.createNode)
		m.PUT("/nodes/:node_id", h.updateNode)
		m.DELETE("/nodes/:node_id", h.deleteNode)
		m.POST("/nodes/:node_id/move", h.moveNode)
		m.GET("/nodes/:node_id/context", h.nodeContext)

		m.POST("/composites", h.createComposite)
		m.POST("/composites/:node_id/toggle", h.toggleComposite)
		m.POST("/composites/:node_id/expand", h.expandComposite)
		m.POST("/composites/:node_id/collapse", h.collapseComposite)

		m.POST("/edges", h.createEdge)
		m.DELETE("/edges/:edge_id", h.deleteEdge)

		m.POST("/chat", h.chatTurn)
		m.POST("/chat/stream", h.chatStream)

		m.GET("/history", h.history)
		m.POST("/undo", h.undo)
		m.POST("/redo", h.redo)

		m.GET("/export/json", h.exportJSON)
		m.GET("/export/markdown", h.exportMarkdown)
		m.POST("/import", h.importJSON)
	}

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) aiStatus(c *gin.Context) {
	ok(c, gin.H{
		"initialized": h.chat.Available(),
		"model":       h.chat.Model(),
	})
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
