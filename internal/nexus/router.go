package nexus

import (
	"net/http"
	"time"

	"github.com/fintellect/nexus/internal/nexus/handler/middleware"
	v1 "github.com/fintellect/nexus/internal/nexus/handler/v1"
	"github.com/fintellect/nexus/internal/nexus/hub"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/service"
	"github.com/fintellect/nexus/internal/nexus/service/upstream"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
)

// routerDeps holds the dependencies needed for route registration.
type routerDeps struct {
	conversations service.ConversationService
	hub           *hub.Hub
	forwarder     upstream.Forwarder
	authConfig    *middleware.AuthConfig
	heartbeat     time.Duration
	profiling     bool
}

func initRouter(g *gin.Engine, deps *routerDeps) {
	installMiddleware(g, deps)
	installController(g, deps)
}

func installMiddleware(g *gin.Engine, deps *routerDeps) {
	g.Use(gin.Recovery())
	g.Use(middleware.CORS())

	if deps.authConfig != nil {
		g.Use(middleware.BearerAuth(deps.authConfig))
	}
}

func installController(g *gin.Engine, deps *routerDeps) {
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.profiling {
		pprof.Register(g)
	}

	// Handlers.
	conversationHandler := v1.NewConversationHandler(deps.conversations)
	messageHandler := v1.NewMessageHandler(deps.conversations)
	toolCallHandler := v1.NewToolCallHandler(deps.conversations)
	streamHandler := v1.NewStreamHandler(deps.conversations, deps.hub, deps.forwarder, deps.heartbeat)

	// --- /v1 route group ---
	apiV1 := g.Group("/v1")
	{
		// Conversation CRUD.
		apiV1.POST("/conversations", conversationHandler.Create)
		apiV1.GET("/conversations", conversationHandler.List)
		apiV1.GET("/conversations/:id", conversationHandler.Get)
		apiV1.DELETE("/conversations/:id", conversationHandler.Delete)

		// Messages and tool-call records.
		apiV1.POST("/conversations/:id/messages", messageHandler.Append)
		apiV1.GET("/conversations/:id/messages", messageHandler.List)
		apiV1.POST("/conversations/:id/toolcalls", toolCallHandler.Append)
		apiV1.GET("/conversations/:id/toolcalls", toolCallHandler.List)

		// Event relay.
		apiV1.GET("/conversations/:id/stream", streamHandler.Stream)
		apiV1.POST("/conversations/:id/events", streamHandler.Publish)
		apiV1.POST("/conversations/:id/submit", streamHandler.Submit)
	}
}
