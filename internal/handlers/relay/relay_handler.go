// internal/handlers/relay/relay_handler.go
package relay

import (
	"bytes"
	"context"
	"html/template"
	"net/http"

	"ledroitcheck-service/internal/domain/handoff"
	"ledroitcheck-service/internal/middleware"
	"ledroitcheck-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var submitPage = template.Must(template.New("relay").Parse(`<!doctype html>
<html lang="es">
<head><meta charset="utf-8"><title>Ingreso derivado</title></head>
<body>
  <form id="relay" method="POST" action="{{.Action}}" target="{{.Target}}">
    <input type="hidden" name="{{.Field}}" value="{{.Payload}}">
    <noscript><button type="submit">Continuar</button></noscript>
  </form>
  <script>document.getElementById('relay').submit();</script>
</body></html>
`))

type Relayer interface {
	Send(ctx context.Context, sid string, target handoff.Target) (*handoff.Handoff, error)
	SendToSystem(ctx context.Context, sid, systemID string) (*handoff.Handoff, error)
}

type RelayHandler struct {
	relay  Relayer
	cookie middleware.CookieConfig
	logger *zap.Logger
}

func NewRelayHandler(relay Relayer, cookie middleware.CookieConfig, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		relay:  relay,
		cookie: cookie,
		logger: logger,
	}
}

// Send relays the user to an arbitrary partner URL
func (h *RelayHandler) Send(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)

	var target handoff.Target
	if err := c.ShouldBindJSON(&target); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.relay.Send(c.Request.Context(), sid, target)
	if err != nil {
		response.Fail(c, "failed to prepare derived login", err)
		return
	}
	h.respond(c, result)
}

// SendToSystem relays the user to a registered secondary system
func (h *RelayHandler) SendToSystem(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)

	result, err := h.relay.SendToSystem(c.Request.Context(), sid, c.Param("id"))
	if err != nil {
		response.Fail(c, "failed to prepare derived login", err)
		return
	}
	h.respond(c, result)
}

// respond renders the auto-submitting form, or the raw handoff for JSON clients.
func (h *RelayHandler) respond(c *gin.Context, result *handoff.Handoff) {
	if result.SessionEnded {
		h.cookie.Clear(c)
	}

	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		response.Success(c, http.StatusOK, "derived login prepared", result)
		return
	}

	var page bytes.Buffer
	if err := submitPage.Execute(&page, result); err != nil {
		h.logger.Error("failed to render relay page", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to render relay page", nil)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page.Bytes())
}
