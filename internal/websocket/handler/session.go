// internal/websocket/handler/session.go
package handler

import (
	"context"
	"fmt"

	wstypes "ledroitcheck-service/internal/domain/websocket"
	ws "ledroitcheck-service/internal/websocket"
)

type ActivityTracker interface {
	Activity(sid, event string) bool
}

// SessionHandler resets the idle window on interaction events sent over the socket.
type SessionHandler struct {
	sessions ActivityTracker
}

func NewSessionHandler(sessions ActivityTracker) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeSessionActivity}
}

func (h *SessionHandler) HandleMessage(_ context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	var req wstypes.ActivityRequest
	if err := ws.DecodeData(msg.Data, &req); err != nil {
		return fmt.Errorf("invalid activity message: %w", err)
	}
	// Unknown interaction names are ignored, not rejected.
	h.sessions.Activity(client.GetSessionID(), req.Event)
	return nil
}
