// internal/handlers/websocket/websocket.go
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ledroitcheck-service/internal/domain/jornada"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/response"
	ws "ledroitcheck-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub        *ws.Hub
	upgrader   websocket.Upgrader
	cookieName string
	logger     *zap.Logger
}

// NewWebSocketHandler accepts upgrades from the given origins; "*" or an
// empty list accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, origins []string, cookieName string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
		cookieName: cookieName,
		logger:     logger,
	}
}

// HandleConnection handles WebSocket connection with authentication
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := h.extractToken(c)
	if token == "" {
		response.Fail(c, "missing authentication token", xerrors.ErrNoSession)
		return
	}

	auth, err := h.hub.AuthenticateClient(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("websocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		switch {
		case errors.Is(err, ws.ErrInvalidToken), errors.Is(err, ws.ErrSessionExpired):
			response.Fail(c, "authentication failed", xerrors.ErrNoSession)
		default:
			response.Fail(c, "session store unavailable", err)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, auth)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// extractToken reads the query parameter, then the Authorization header, then the session cookie.
func (h *WebSocketHandler) extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	if h.cookieName != "" {
		if token, err := c.Cookie(h.cookieName); err == nil {
			return token
		}
	}
	return ""
}

// GetStats returns WebSocket connection statistics
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"total_connections": h.hub.TotalClients(),
		"routed_events":     h.hub.RoutedEvents(),
		"timestamp":         time.Now(),
	}
	if usuario := c.Query("usuario"); usuario != "" {
		stats["user_connections"] = h.hub.GetConnectedClients(jornada.UserKey(usuario))
	}

	response.Success(c, http.StatusOK, "WebSocket stats", stats)
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
