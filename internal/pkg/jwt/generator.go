// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
	}
}

// Generate signs a token bound to sessionID.
func (g *Generator) Generate(sessionID, initials, purpose string, ttl time.Duration) (string, error) {
	if g.priv == nil {
		return "", fmt.Errorf("jwt generator has nil private key")
	}
	if sessionID == "" {
		return "", fmt.Errorf("jwt generator needs a session id")
	}

	now := time.Now()
	claims := &Claims{
		Initials:       initials,
		SessionPurpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   initials,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        sessionID,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	return tok.SignedString(g.priv)
}

// GenerateSessionToken issues the cookie token for a browser session.
func (g *Generator) GenerateSessionToken(sessionID, initials string) (string, error) {
	return g.Generate(sessionID, initials, PurposeSession, g.Ttl)
}

// GenerateSocketToken issues a short-lived token for websocket upgrades from
// pages that cannot send the session cookie.
func (g *Generator) GenerateSocketToken(sessionID, initials string) (string, error) {
	return g.Generate(sessionID, initials, PurposeSocket, 5*time.Minute)
}
