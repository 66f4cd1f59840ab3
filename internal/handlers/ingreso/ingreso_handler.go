// internal/handlers/ingreso/ingreso_handler.go
package ingreso

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/middleware"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	ingresoUsecase "ledroitcheck-service/internal/service/ingreso"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

const (
	msgMethodNotAllowed = "Método no permitido. Use POST."
	msgInvalidBody      = "Body inválido: se esperaba JSON en 'respuestaLMaster' o 'data'."
	msgInvalidStructure = "Estructura inválida: { success: true, data: { ... } } requerida."
	msgInternal         = "Error interno procesando ingreso derivado"
)

var bootstrapPage = template.Must(template.New("ingreso").Parse(`<!doctype html>
<html lang="es">
<head><meta charset="utf-8"><title>Ingreso derivado</title></head>
<body>
  <p>Procesando ingreso derivado…</p>
  <script>
    try {
      const ses = {{.Session}};
      const resp = {{.Payload}};
      localStorage.setItem('ls_session', JSON.stringify(ses));
      sessionStorage.setItem('ls_session', JSON.stringify(ses));
      localStorage.setItem('ls_lastRespuestaLMaster', JSON.stringify(resp));
      sessionStorage.setItem('ls_lastRespuestaLMaster', JSON.stringify(resp));
      if (ses.iniciales) sessionStorage.setItem('iniciales', ses.iniciales);
    } catch (e) {}
    location.href = {{.Redirect}};
  </script>
</body></html>
`))

type pageData struct {
	Session  *identity.Record
	Payload  json.RawMessage
	Redirect string
}

type Receiver interface {
	Receive(ctx context.Context, body any) (*ingresoUsecase.Result, error)
}

type TokenIssuer interface {
	GenerateSessionToken(sessionID, initials string) (string, error)
}

// IngresoHandler is the browser-facing endpoint partner systems post derived
// logins to. It answers in plain text or HTML, never JSON.
type IngresoHandler struct {
	receiver Receiver
	tokens   TokenIssuer
	cookie   middleware.CookieConfig
	redirect string
	logger   *zap.Logger
}

func NewIngresoHandler(receiver Receiver, tokens TokenIssuer, cookie middleware.CookieConfig, redirect string, logger *zap.Logger) *IngresoHandler {
	if redirect == "" {
		redirect = "/menu.html"
	}
	return &IngresoHandler{
		receiver: receiver,
		tokens:   tokens,
		cookie:   cookie,
		redirect: redirect,
		logger:   logger,
	}
}

// Handle serves every method on the endpoint.
func (h *IngresoHandler) Handle(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		c.Header("Allow", "POST")
		text(c, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		text(c, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := h.receiver.Receive(c.Request.Context(), ingresoUsecase.DecodeBody(c.ContentType(), body))
	switch {
	case errors.Is(err, xerrors.ErrInvalidBody):
		text(c, http.StatusBadRequest, msgInvalidBody)
		return
	case errors.Is(err, xerrors.ErrInvalidStructure):
		text(c, http.StatusBadRequest, msgInvalidStructure)
		return
	case err != nil:
		h.logger.Error("derived login failed", zap.Error(err))
		text(c, http.StatusInternalServerError, msgInternal)
		return
	}

	var page bytes.Buffer
	if err := bootstrapPage.Execute(&page, pageData{Session: res.Session, Payload: res.Payload, Redirect: h.redirect}); err != nil {
		h.logger.Error("failed to render bootstrap page", zap.Error(err))
		text(c, http.StatusInternalServerError, msgInternal)
		return
	}

	if res.SessionID != "" && h.tokens != nil {
		token, err := h.tokens.GenerateSessionToken(res.SessionID, res.Session.Initials)
		if err != nil {
			h.logger.Warn("failed to issue session cookie", zap.String("session_id", res.SessionID), zap.Error(err))
		} else {
			h.cookie.Set(c, token)
		}
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page.Bytes())
}

func text(c *gin.Context, status int, msg string) {
	c.Data(status, "text/plain; charset=utf-8", []byte(msg))
	c.Abort()
}
