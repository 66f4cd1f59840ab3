// internal/handlers/session/session_handler.go
package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/role"
	"ledroitcheck-service/internal/middleware"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/response"
	sessionpkg "ledroitcheck-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Sessions interface {
	Activity(sid, event string) bool
	Unload(ctx context.Context, sid string) (bool, error)
	Clear(ctx context.Context, sid, reason string, redirect bool) error
	SelectCompany(ctx context.Context, sid, name string) (*identity.Record, error)
	IdleTimeout() time.Duration
}

type Refresher interface {
	Refresh(ctx context.Context, sid string) (*identity.Record, error)
}

type SocketTokens interface {
	GenerateSocketToken(sessionID, initials string) (string, error)
}

type SessionHandler struct {
	sessions  Sessions
	refresher Refresher
	tokens    SocketTokens
	cookie    middleware.CookieConfig
	loginPath string
	logger    *zap.Logger
}

func NewSessionHandler(sessions Sessions, refresher Refresher, tokens SocketTokens, cookie middleware.CookieConfig, loginPath string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		refresher: refresher,
		tokens:    tokens,
		cookie:    cookie,
		loginPath: loginPath,
		logger:    logger,
	}
}

// View is the session as the browser sees it.
type View struct {
	SessionID      string             `json:"sessionId"`
	Session        *identity.Record   `json:"session"`
	ActiveCompany  []identity.Company `json:"empresasActivas"`
	CanConfigure   bool               `json:"puedeConfigurar"`
	CanUseRelays   bool               `json:"puedeUsarIngresos"`
	IdleTimeoutSec int                `json:"inactividadSegundos"`
}

type activityRequest struct {
	Event string `json:"event" binding:"required"`
}

type companyRequest struct {
	Name string `json:"nombre" binding:"required"`
}

func (h *SessionHandler) view(sid string, rec *identity.Record) View {
	return View{
		SessionID:      sid,
		Session:        rec,
		ActiveCompany:  rec.ActiveCompanies(),
		CanConfigure:   role.CanConfigure(rec.Companies),
		CanUseRelays:   role.CanUseRelays(rec.Companies),
		IdleTimeoutSec: int(h.sessions.IdleTimeout().Seconds()),
	}
}

// GetSession returns the current normalized record
func (h *SessionHandler) GetSession(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)
	rec := middleware.MustGetSession(c)
	response.Success(c, http.StatusOK, "session retrieved", h.view(sid, rec))
}

// Activity resets the idle timer
func (h *SessionHandler) Activity(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)

	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	reset := h.sessions.Activity(sid, strings.TrimSpace(req.Event))
	response.Success(c, http.StatusOK, "activity recorded", gin.H{"reset": reset})
}

// Unload handles tab close. The session survives unless clearing is enabled.
func (h *SessionHandler) Unload(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)

	cleared, err := h.sessions.Unload(c.Request.Context(), sid)
	if err != nil {
		h.logger.Warn("failed to clear session on unload", zap.String("session_id", sid), zap.Error(err))
	}
	if cleared {
		h.cookie.Clear(c)
	}
	response.Success(c, http.StatusOK, "unload recorded", gin.H{"cleared": cleared})
}

// Logout clears the session and tells the client where to go
func (h *SessionHandler) Logout(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)

	if err := h.sessions.Clear(c.Request.Context(), sid, sessionpkg.ReasonLogout, true); err != nil {
		h.logger.Error("failed to clear session on logout", zap.String("session_id", sid), zap.Error(err))
	}
	h.cookie.Clear(c)
	response.Success(c, http.StatusOK, "logged out", gin.H{"redirect": h.loginPath})
}

// SelectCompany changes the operating company
func (h *SessionHandler) SelectCompany(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)

	var req companyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	rec, err := h.sessions.SelectCompany(c.Request.Context(), sid, strings.TrimSpace(req.Name))
	if err != nil {
		response.Fail(c, "failed to select company", err)
		return
	}
	response.Success(c, http.StatusOK, "company selected", h.view(sid, rec))
}

// Refresh reloads company memberships
func (h *SessionHandler) Refresh(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)

	rec, err := h.refresher.Refresh(c.Request.Context(), sid)
	if err != nil {
		response.Fail(c, "failed to refresh session", err)
		return
	}
	response.Success(c, http.StatusOK, "session refreshed", h.view(sid, rec))
}

// SocketToken issues a short-lived token for the websocket handshake
func (h *SessionHandler) SocketToken(c *gin.Context) {
	sid, _ := middleware.GetSessionID(c)
	rec := middleware.MustGetSession(c)

	token, err := h.tokens.GenerateSocketToken(sid, rec.Initials)
	if err != nil {
		h.logger.Error("failed to issue socket token", zap.String("session_id", sid), zap.Error(err))
		response.Fail(c, "failed to issue socket token", xerrors.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, "socket token issued", gin.H{"token": token})
}
