// internal/websocket/handler/jornada.go
package handler

import (
	"context"
	"fmt"

	"ledroitcheck-service/internal/domain/jornada"
	wstypes "ledroitcheck-service/internal/domain/websocket"
	ws "ledroitcheck-service/internal/websocket"
)

type OpenReader interface {
	GetOpen(ctx context.Context, initials string) (*jornada.OpenIndex, error)
}

// JornadaHandler answers status requests with the caller's open index.
type JornadaHandler struct {
	ledger OpenReader
}

func NewJornadaHandler(ledger OpenReader) *JornadaHandler {
	return &JornadaHandler{ledger: ledger}
}

// SupportedEvents returns events this handler supports
func (h *JornadaHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeJornadaStatus}
}

func (h *JornadaHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	if msg.Type != wstypes.EventTypeJornadaStatus {
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}

	idx, err := h.ledger.GetOpen(ctx, client.GetInitials())
	if err != nil {
		return err
	}

	state := jornada.ChangeEvent{Status: "closed", UserKey: client.GetUserKey()}
	if idx != nil {
		state.Status = "open"
		state.Company = idx.Company
		state.Folio = idx.Folio
		state.Index = idx
	}
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeJornadaState, state))
	return nil
}
