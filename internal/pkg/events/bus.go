// internal/pkg/events/bus.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a change notification. Key is the user key or session id it concerns.
type Event struct {
	Type string          `json:"type"`
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

// New builds an event, serializing data.
func New(eventType, key string, data any) (Event, error) {
	e := Event{Type: eventType, Key: key, At: time.Now().UTC()}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal event data: %w", err)
		}
		e.Data = b
	}
	return e, nil
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s carries no data", e.Type)
	}
	return json.Unmarshal(e.Data, v)
}

// Publisher delivers events to observers, in-process or across instances.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Handler func(Event)

// Bus fans events out to in-process subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

// Subscription is a registered handler. Close must be called by the owner.
type Subscription struct {
	bus    *Bus
	id     uint64
	prefix string
	key    string
	fn     Handler
	once   sync.Once
}

// Subscribe registers fn for events whose type starts with prefix and, when key
// is non-empty, whose key equals key.
func (b *Bus) Subscribe(prefix, key string, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscription{bus: b, id: b.nextID, prefix: prefix, key: key, fn: fn}
	b.subs[s.id] = s
	return s
}

// Close removes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}

func (s *Subscription) matches(e Event) bool {
	if !strings.HasPrefix(e.Type, s.prefix) {
		return false
	}
	return s.key == "" || s.key == e.Key
}

// Publish dispatches e to local subscribers.
func (b *Bus) Publish(_ context.Context, e Event) error {
	b.Dispatch(e)
	return nil
}

// Dispatch calls every matching handler synchronously.
func (b *Bus) Dispatch(e Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(e) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.safeCall(s, e)
	}
}

func (b *Bus) safeCall(s *Subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.Any("panic", r),
				zap.String("event", e.Type),
			)
		}
	}()
	s.fn(e)
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
