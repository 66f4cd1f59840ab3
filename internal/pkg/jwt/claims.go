// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Purposes a token can be issued for.
const (
	PurposeSession = "session"
	PurposeSocket  = "socket"
)

// Claims identify a server-side session. The token ID is the session id.
type Claims struct {
	Initials       string `json:"iniciales,omitempty"`
	SessionPurpose string `json:"session_purpose"`
	jwt.RegisteredClaims
}

// SessionID returns the session the token points at.
func (c *Claims) SessionID() string {
	return c.ID
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
