package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBus_FiltersByPrefixAndKey(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var all, mine atomic.Int32
	subAll := bus.Subscribe("jornada:", "", func(Event) { all.Add(1) })
	subMine := bus.Subscribe("jornada:", "JP", func(Event) { mine.Add(1) })
	defer subAll.Close()

	e1, err := New("jornada:opened", "JP", map[string]string{"folio": "00001"})
	require.NoError(t, err)
	e2, _ := New("jornada:closed", "XX", nil)
	e3, _ := New("session:changed", "JP", nil)

	require.NoError(t, bus.Publish(context.Background(), e1))
	bus.Dispatch(e2)
	bus.Dispatch(e3)

	assert.Equal(t, int32(2), all.Load())
	assert.Equal(t, int32(1), mine.Load())

	subMine.Close()
	subMine.Close()
	bus.Dispatch(e1)
	assert.Equal(t, int32(1), mine.Load())
	assert.Equal(t, 1, bus.Len())
}

func TestBus_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var got atomic.Int32
	bus.Subscribe("", "", func(Event) { panic("boom") })
	bus.Subscribe("", "", func(Event) { got.Add(1) })

	e, _ := New("x", "", nil)
	bus.Dispatch(e)
	assert.Equal(t, int32(1), got.Load())
}

func TestEvent_Decode(t *testing.T) {
	e, err := New("jornada:opened", "JP", map[string]string{"folio": "00001"})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, e.Decode(&out))
	assert.Equal(t, "00001", out["folio"])

	empty, _ := New("x", "", nil)
	assert.Error(t, empty.Decode(&out))
}

func TestRedisBridge_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := NewBus(zap.NewNop())
	bridge := NewRedisBridge(client, "", bus, zap.NewNop())

	received := make(chan Event, 1)
	sub := bus.Subscribe("session:", "sid-1", func(e Event) { received <- e })
	defer sub.Close()

	stop, err := bridge.Listen(context.Background())
	require.NoError(t, err)
	defer stop()

	e, _ := New("session:cleared", "sid-1", map[string]any{"reason": "logout"})
	require.NoError(t, bridge.Publish(context.Background(), e))

	select {
	case got := <-received:
		assert.Equal(t, "session:cleared", got.Type)
		assert.Equal(t, "sid-1", got.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered through redis")
	}
}
