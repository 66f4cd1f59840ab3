package websocket

import (
	"context"
	"testing"

	wstypes "ledroitcheck-service/internal/domain/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	events []wstypes.EventType
}

func (f *fakeHandler) HandleMessage(context.Context, *Client, *wstypes.WSMessage) error {
	return nil
}

func (f *fakeHandler) SupportedEvents() []wstypes.EventType { return f.events }

func TestHandlerRegistry_RoutesByEventType(t *testing.T) {
	r := NewHandlerRegistry()
	a := &fakeHandler{events: []wstypes.EventType{"b:two", "b:one"}}
	b := &fakeHandler{events: []wstypes.EventType{"a:one"}}
	r.Register(a)
	r.Register(b)

	got, ok := r.Lookup("b:one")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.Lookup("c:none")
	assert.False(t, ok)

	assert.Equal(t, []string{"a:one", "b:one", "b:two"}, r.Events())
}

func TestHandlerRegistry_DuplicateEventPanics(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(&fakeHandler{events: []wstypes.EventType{"x:y"}})
	assert.Panics(t, func() {
		r.Register(&fakeHandler{events: []wstypes.EventType{"x:y"}})
	})
}
