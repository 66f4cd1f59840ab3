// internal/app/router.go
package app

import (
	"context"
	"net/http"

	"ledroitcheck-service/internal/domain/role"
	authHandler "ledroitcheck-service/internal/handlers/auth"
	ingresoHandler "ledroitcheck-service/internal/handlers/ingreso"
	jornadaHandler "ledroitcheck-service/internal/handlers/jornada"
	relayHandler "ledroitcheck-service/internal/handlers/relay"
	sessionHandler "ledroitcheck-service/internal/handlers/session"
	systemHandler "ledroitcheck-service/internal/handlers/system"
	wsHandler "ledroitcheck-service/internal/handlers/websocket"
	"ledroitcheck-service/internal/middleware"
	"ledroitcheck-service/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	SessionHandler *sessionHandler.SessionHandler
	IngresoHandler *ingresoHandler.IngresoHandler
	RelayHandler   *relayHandler.RelayHandler
	SystemHandler  *systemHandler.SystemHandler
	JornadaHandler *jornadaHandler.JornadaHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	Metrics        *metrics.Metrics
	Health         func(ctx context.Context) map[string]string
}

func SetupRouter(r *gin.Engine, origins []string, h *Handlers) {
	// ==================== Derived-login receiver ====================
	// Partner systems post here from the browser; it carries its own CORS headers.
	r.Any("/ingreso-derivado", h.RateLimiter.Plain(), h.IngresoHandler.Handle)

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Metrics ====================
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	api := r.Group("/api/v1", middleware.CORSMiddleware(origins))
	api.OPTIONS("/*path", func(c *gin.Context) {})

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		code := http.StatusOK
		if h.Health != nil {
			deps := h.Health(c.Request.Context())
			for _, v := range deps {
				if v != "ok" {
					status["status"] = "degraded"
					code = http.StatusServiceUnavailable
				}
			}
			status["dependencies"] = deps
		}
		c.JSON(code, status)
	})

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.RateLimiter.JSON(), h.AuthHandler.Login)
	}

	auth := h.AuthMiddleware.Auth()

	// ==================== Session ====================
	sessions := api.Group("/session")
	sessions.Use(auth)
	{
		sessions.GET("", h.SessionHandler.GetSession)
		sessions.POST("/activity", h.SessionHandler.Activity)
		sessions.POST("/unload", h.SessionHandler.Unload)
		sessions.POST("/logout", h.SessionHandler.Logout)
		sessions.PUT("/company", h.SessionHandler.SelectCompany)
		sessions.POST("/refresh", h.SessionHandler.Refresh)
		sessions.GET("/socket-token", h.SessionHandler.SocketToken)
	}

	// ==================== Derived-login relay ====================
	relay := api.Group("/relay")
	relay.Use(auth, h.AuthMiddleware.RequireCapability("relays", role.CanUseRelays))
	{
		relay.POST("", h.RelayHandler.Send)
		relay.POST("/systems/:id", h.RelayHandler.SendToSystem)
	}

	// ==================== Secondary systems ====================
	systems := api.Group("/systems")
	systems.Use(auth)
	{
		systems.GET("", h.SystemHandler.ListSystems)
		systems.POST("", h.SystemHandler.CreateSystem)
		systems.PUT("/:id", h.SystemHandler.UpdateSystem)
		systems.DELETE("/:id", h.SystemHandler.DeleteSystem)
	}

	// ==================== Jornadas ====================
	jornadas := api.Group("/jornadas")
	jornadas.Use(auth)
	{
		jornadas.POST("/open", h.JornadaHandler.Open)
		jornadas.POST("/close", h.JornadaHandler.Close)
		jornadas.GET("/open", h.JornadaHandler.GetOpen)
		jornadas.GET("/last", h.JornadaHandler.GetLast)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(auth, h.AuthMiddleware.RequireCapability("configure", role.CanConfigure))
	{
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
