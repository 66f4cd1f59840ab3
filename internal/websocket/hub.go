// internal/websocket/hub.go
package websocket

import (
	"context"
	"fmt"
	"sync"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/jornada"
	wstypes "ledroitcheck-service/internal/domain/websocket"
	"ledroitcheck-service/internal/pkg/events"
	"ledroitcheck-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

type SocketVerifier interface {
	VerifySocketToken(token string) (*jwt.Claims, error)
}

type SessionReader interface {
	Read(ctx context.Context, sid string) (*identity.Record, error)
}

type Hub struct {
	// Registered clients by user key
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage
	done      chan struct{}
	doneOnce  sync.Once

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	// Auth dependencies
	verifier SocketVerifier
	sessions SessionReader
	logger   *zap.Logger
}

// BroadcastMessage targets the clients of UserKeys, or of SessionID, or
// everyone when both are empty. Disconnect closes the targeted clients after
// the message is delivered.
type BroadcastMessage struct {
	UserKeys   []string
	SessionID  string
	Channel    wstypes.ChannelType
	Message    *wstypes.WSMessage
	Disconnect bool
}

func NewHub(verifier SocketVerifier, sessions SessionReader, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		done:            make(chan struct{}),
		handlerRegistry: NewHandlerRegistry(),
		verifier:        verifier,
		sessions:        sessions,
		logger:          logger,
	}
}

// AuthenticateClient validates the token and checks the session it names is still alive.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.verifier.VerifySocketToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	rec, err := h.sessions.Read(ctx, claims.SessionID())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrSessionExpired
	}

	return &ClientAuth{
		SessionID: claims.SessionID(),
		Initials:  rec.Initials,
		UserKey:   jornada.UserKey(rec.Initials),
	}, nil
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// RoutedEvents lists the inbound event types with a registered handler.
func (h *Hub) RoutedEvents() []string {
	return h.handlerRegistry.Events()
}

// HandleClientMessage processes a message from a client using registered handlers
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.Lookup(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

// Attach forwards jornada and session events from bus to connected clients
// until the returned function is called.
func (h *Hub) Attach(bus *events.Bus) func() {
	subs := []*events.Subscription{
		bus.Subscribe("jornada:", "", h.Dispatch),
		bus.Subscribe("session:", "", h.Dispatch),
	}
	return func() {
		for _, s := range subs {
			s.Close()
		}
	}
}

// Dispatch routes a domain event to the clients it concerns. Jornada events
// are keyed by user key and session events by session id.
func (h *Hub) Dispatch(e events.Event) {
	t := wstypes.EventType(e.Type)
	channel, ok := wstypes.ChannelOf(t)
	if !ok || e.Key == "" {
		return
	}

	msg := &BroadcastMessage{Channel: channel, Message: wstypes.NewMessage(t, e.Data)}
	switch channel {
	case wstypes.ChannelJornada:
		msg.UserKeys = []string{e.Key}
	case wstypes.ChannelSession:
		msg.SessionID = e.Key
		msg.Disconnect = t == wstypes.EventTypeSessionCleared
	}
	h.enqueue(msg)
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping message", zap.String("type", string(msg.Message.Type)))
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userKey] == nil {
		h.clients[client.userKey] = make(map[*Client]bool)
	}
	h.clients[client.userKey][client] = true
	for _, ch := range wstypes.DefaultChannels {
		client.Subscribe(ch)
	}

	h.logger.Info("websocket client connected",
		zap.String("usuario", client.userKey),
		zap.String("session_id", client.sessionID),
		zap.Int("total", h.totalClients()),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"session_id": client.sessionID,
		"iniciales":  client.initials,
		"channels":   wstypes.DefaultChannels,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userKey]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.userKey)
			}

			h.logger.Info("websocket client disconnected",
				zap.String("usuario", client.userKey),
				zap.String("session_id", client.sessionID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(client *Client) {
		if client.IsSubscribed(msg.Channel) {
			client.SendMessage(msg.Message)
		}
		if msg.Disconnect {
			client.Close()
		}
	}

	switch {
	case len(msg.UserKeys) > 0:
		for _, key := range msg.UserKeys {
			for client := range h.clients[key] {
				deliver(client)
			}
		}
	case msg.SessionID != "":
		for _, clients := range h.clients {
			for client := range clients {
				if client.sessionID == msg.SessionID {
					deliver(client)
				}
			}
		}
	default:
		for _, clients := range h.clients {
			for client := range clients {
				deliver(client)
			}
		}
	}
}

// GetConnectedClients returns the number of connections of userKey.
func (h *Hub) GetConnectedClients(userKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userKey])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.doneOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
