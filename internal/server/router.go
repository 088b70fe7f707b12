package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haftomg96/MVP-chat-app/internal/auth"
	"github.com/haftomg96/MVP-chat-app/internal/config"
	"github.com/haftomg96/MVP-chat-app/internal/metrics"
	"github.com/haftomg96/MVP-chat-app/internal/mw"
	"github.com/haftomg96/MVP-chat-app/internal/service"
	"github.com/haftomg96/MVP-chat-app/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Config   config.Config
	DB       *gorm.DB
	Hub      *ws.Hub
	Verifier *auth.Verifier
	Evictor  service.SessionEvictor // nil when sessions are not cached
	Limiter  *mw.RL
}

// SetupRouter registers middleware, the REST API and the websocket endpoint.
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(d.Config.Env))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": d.Hub.Online(), "connections": d.Hub.Connections()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", ws.Serve(d.Hub, d.Verifier, d.Config))

	h := NewHandler(
		service.NewUserService(d.DB, d.Config, d.Evictor),
		service.NewContactService(d.DB, d.Hub),
		service.NewMessageService(d.DB),
	)

	api := r.Group("/api/v1")

	// anonymous calls are limited per IP, authenticated ones per user
	public := api.Group("", d.Limiter.Middleware())
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.RefreshToken)

	authed := api.Group("", auth.AuthMiddleware(d.Verifier), d.Limiter.Middleware())

	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/me", h.Me)
	authed.GET("/users", h.ListUsers)
	authed.POST("/messages", h.SendMessage)
	authed.GET("/messages", h.ListMessages)
	authed.POST("/messages/mark-read", h.MarkRead)
	authed.POST("/messages/reactions", h.React)
	authed.GET("/messages/last", h.LastMessages)
	authed.POST("/chat-actions", h.ChatAction)
	authed.GET("/chat-actions", h.ExportChat)
	return r
}
