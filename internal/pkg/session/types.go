// internal/pkg/session/types.go
package session

import (
	"context"
	"errors"
	"time"
)

// ErrMissing is returned by a Backend when the key does not exist.
var ErrMissing = errors.New("session key not found")

// Backend is a key/value store holding serialized session records.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	// TTL returns the time left on key, zero when it never expires and
	// ErrMissing when it does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Take deletes key and reports whether it existed.
	Take(ctx context.Context, key string) (bool, error)
}

// Event types published by the Manager.
const (
	EventChanged = "session:changed"
	EventCleared = "session:cleared"
)

// Clear reasons.
const (
	ReasonLogout        = "logout"
	ReasonInactivity    = "inactivity"
	ReasonUnload        = "unload"
	ReasonActiveIngreso = "activeIngreso"
)

// ClearedData is the payload of a session:cleared event.
type ClearedData struct {
	SessionID string `json:"session_id"`
	Initials  string `json:"iniciales,omitempty"`
	Reason    string `json:"reason"`
	Redirect  bool   `json:"redirect"`
	LoginPath string `json:"login_path,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// ChangedData is the payload of a session:changed event.
type ChangedData struct {
	SessionID string `json:"session_id"`
	Initials  string `json:"iniciales"`
	Origin    string `json:"origin,omitempty"`
}

// ActivityEvents are the user interactions that reset the idle timer.
var ActivityEvents = map[string]bool{
	"pointermove": true,
	"pointerdown": true,
	"mousemove":   true,
	"mousedown":   true,
	"keydown":     true,
	"keypress":    true,
	"scroll":      true,
	"touchstart":  true,
	"click":       true,
}
