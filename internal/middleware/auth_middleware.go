// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ledroitcheck-service/internal/domain/identity"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/jwt"
	"ledroitcheck-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Context keys set by Auth.
const (
	CtxSessionID = "session_id"
	CtxInitials  = "iniciales"
	CtxSession   = "session"
)

type TokenVerifier interface {
	VerifySessionToken(token string) (*jwt.Claims, error)
}

type SessionReader interface {
	Read(ctx context.Context, sid string) (*identity.Record, error)
}

type AuthMiddleware struct {
	verifier   TokenVerifier
	sessions   SessionReader
	cookieName string
}

func NewAuthMiddleware(verifier TokenVerifier, sessions SessionReader, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:   verifier,
		sessions:   sessions,
		cookieName: cookieName,
	}
}

// Auth resolves the session behind the bearer token or session cookie.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			response.Fail(c, "missing session token", xerrors.ErrNoSession)
			return
		}

		claims, err := m.verifier.VerifySessionToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}

		rec, err := m.sessions.Read(c.Request.Context(), claims.SessionID())
		if err != nil {
			response.Fail(c, "session store unavailable", err)
			return
		}
		if rec == nil {
			response.Fail(c, "session has ended", xerrors.ErrNoSession)
			return
		}

		c.Set(CtxSessionID, claims.SessionID())
		c.Set(CtxInitials, rec.Initials)
		c.Set(CtxSession, rec)
		c.Next()
	}
}

// RequireCapability aborts with 403 unless allowed grants the session's companies.
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireCapability(name string, allowed func([]identity.Company) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := GetSession(c)
		if !ok {
			response.Fail(c, "authentication required", xerrors.ErrNoSession)
			return
		}
		if !allowed(rec.Companies) {
			response.Fail(c, "insufficient role", fmt.Errorf("%s not granted: %w", name, xerrors.ErrForbidden), map[string]interface{}{
				"capability": name,
			})
			return
		}
		c.Next()
	}
}

// extractToken prefers the Authorization header and falls back to the session cookie.
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	if m.cookieName != "" {
		if token, err := c.Cookie(m.cookieName); err == nil {
			return token
		}
	}
	return ""
}
