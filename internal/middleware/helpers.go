// internal/middleware/helpers.go
package middleware

import (
	"net/http"
	"time"

	"ledroitcheck-service/internal/domain/identity"

	"github.com/gin-gonic/gin"
)

// GetSessionID returns the session id set by Auth.
func GetSessionID(c *gin.Context) (string, bool) {
	v, exists := c.Get(CtxSessionID)
	if !exists {
		return "", false
	}
	sid, ok := v.(string)
	return sid, ok
}

// GetInitials returns the initials of the authenticated user.
func GetInitials(c *gin.Context) string {
	return c.GetString(CtxInitials)
}

// GetSession returns the session record set by Auth.
func GetSession(c *gin.Context) (*identity.Record, bool) {
	v, exists := c.Get(CtxSession)
	if !exists {
		return nil, false
	}
	rec, ok := v.(*identity.Record)
	return rec, ok && rec != nil
}

// MustGetSession gets the session record from context or panics
func MustGetSession(c *gin.Context) *identity.Record {
	rec, ok := GetSession(c)
	if !ok {
		panic("session not found in context")
	}
	return rec
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(CtxSessionID)
	return exists
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Set writes token as an HttpOnly session cookie.
func (cc CookieConfig) Set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cc.Name, token, int(cc.TTL.Seconds()), "/", "", cc.Secure, true)
}

// Clear expires the session cookie.
func (cc CookieConfig) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cc.Name, "", -1, "/", "", cc.Secure, true)
}
