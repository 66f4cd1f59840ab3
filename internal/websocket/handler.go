// internal/websocket/handler.go
package websocket

import (
	"context"
	"fmt"
	"sort"
	"sync"

	wstypes "ledroitcheck-service/internal/domain/websocket"
)

// MessageHandler serves the inbound socket events of one channel.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry routes inbound event types to their handler. Each event
// type has exactly one owner.
type HandlerRegistry struct {
	mu     sync.RWMutex
	routes map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{routes: make(map[wstypes.EventType]MessageHandler)}
}

// Register claims every event type the handler supports. Claiming a type
// twice is a wiring bug and panics at startup.
func (r *HandlerRegistry) Register(handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range handler.SupportedEvents() {
		if _, taken := r.routes[t]; taken {
			panic(fmt.Sprintf("websocket: event %q already has a handler", t))
		}
		r.routes[t] = handler
	}
}

func (r *HandlerRegistry) Lookup(t wstypes.EventType) (MessageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.routes[t]
	return h, ok
}

// Events lists the routed event types in lexical order.
func (r *HandlerRegistry) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for t := range r.routes {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
