package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
)

func newTestBroadcaster() (*Registry, *Broadcaster) {
	reg := NewRegistry()
	return reg, NewBroadcaster(reg, zerolog.New(io.Discard))
}

func decodeFrame(t *testing.T, frame string) map[string]interface{} {
	t.Helper()
	require.True(t, strings.HasPrefix(frame, "data: "), frame)
	require.True(t, strings.HasSuffix(frame, "\n\n"), frame)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Payload(frame)), &out))
	return out
}

func TestBroadcast_NoSubscribersIsNoop(t *testing.T) {
	reg, b := newTestBroadcaster()
	require.NotPanics(t, func() {
		b.Broadcast(404, ListReset(Actor{ID: 1, Name: "Alice"}))
	})
	require.Equal(t, 0, b.Deliver(404, Heartbeat))
	require.Equal(t, 0, reg.Lists())
}

func TestBroadcast_FailedChannelRemoved(t *testing.T) {
	reg, b := newTestBroadcaster()
	broken := &fakeChannel{fail: true}
	healthy := &fakeChannel{}
	reg.Subscribe(3, broken)
	reg.Subscribe(3, healthy)

	b.Broadcast(3, ItemAdded(Actor{ID: 1, Name: "Alice"}, models.ShoppingItem{IngredientName: "Sel", Category: "Épicerie"}))

	require.Len(t, healthy.received(), 1)
	require.Equal(t, 1, reg.Count(3))
	require.Equal(t, []Channel{healthy}, reg.Subscribers(3))
}

func TestDeliver_SlowStreamClosed(t *testing.T) {
	reg, b := newTestBroadcaster()
	slow := NewStream(1)
	reg.Subscribe(5, slow)

	require.Equal(t, 1, b.Deliver(5, "data: {}\n\n"))
	require.Equal(t, 0, b.Deliver(5, "data: {}\n\n"))
	require.Equal(t, 0, reg.Count(5))
	require.ErrorIs(t, slow.Send("data: {}\n\n"), ErrClosed)
}

func TestBroadcast_IsolatedPerList(t *testing.T) {
	reg, b := newTestBroadcaster()
	one := &fakeChannel{}
	two := &fakeChannel{}
	reg.Subscribe(1, one)
	reg.Subscribe(2, two)

	b.Broadcast(1, ListReset(Actor{ID: 1}))

	require.Len(t, one.received(), 1)
	require.Empty(t, two.received())
}

func TestBroadcast_PreservesOrderPerSubscriber(t *testing.T) {
	reg, b := newTestBroadcaster()
	ch := &fakeChannel{}
	reg.Subscribe(5, ch)

	actor := Actor{ID: 2, Name: "Bob"}
	names := []string{"Beurre", "Oeufs", "Farine", "Sucre"}
	for _, name := range names {
		b.Broadcast(5, ItemAdded(actor, models.ShoppingItem{IngredientName: name}))
	}

	frames := ch.received()
	require.Len(t, frames, len(names))
	for i, frame := range frames {
		require.Equal(t, names[i], decodeFrame(t, frame)["ingredientName"])
	}
}

func TestEncode_EventShapes(t *testing.T) {
	frame, err := Encode(Initial(nil))
	require.NoError(t, err)
	got := decodeFrame(t, frame)
	require.Equal(t, "initial", got["type"])
	require.Equal(t, []interface{}{}, got["items"])
	require.NotZero(t, got["timestamp"])

	frame, err = Encode(Connected(42))
	require.NoError(t, err)
	got = decodeFrame(t, frame)
	require.Equal(t, "connected", got["type"])
	require.EqualValues(t, 42, got["listId"])

	frame, err = Encode(ItemChecked(Actor{ID: 1, Name: "A"}, models.ShoppingItem{IngredientName: "Lait"}))
	require.NoError(t, err)
	got = decodeFrame(t, frame)
	require.Equal(t, false, got["checked"])

	frame, err = Encode(Event{Type: TypeListReset, Timestamp: 1700000000000})
	require.NoError(t, err)
	require.Contains(t, frame, `"timestamp":1700000000000`)
}

type fakeRelay struct {
	frames []string
	err    error
}

func (f *fakeRelay) Publish(_ context.Context, _ int64, frame string) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, frame)
	return nil
}

func TestBroadcast_UsesRelay(t *testing.T) {
	reg, b := newTestBroadcaster()
	local := &fakeChannel{}
	reg.Subscribe(9, local)

	relay := &fakeRelay{}
	b.UseRelay(relay)
	b.Broadcast(9, ListReset(Actor{ID: 1}))

	require.Len(t, relay.frames, 1)
	require.Empty(t, local.received(), "local delivery happens through the relay subscription")

	relay.err = errors.New("redis down")
	b.Broadcast(9, ListReset(Actor{ID: 1}))
	require.Len(t, local.received(), 1, "falls back to local delivery")
}

func TestBroadcast_RelayTimeoutNotDeliveredTwice(t *testing.T) {
	reg, b := newTestBroadcaster()
	local := &fakeChannel{}
	reg.Subscribe(9, local)

	b.UseRelay(&fakeRelay{err: fmt.Errorf("publish: %w", context.DeadlineExceeded)})
	b.Broadcast(9, ListReset(Actor{ID: 1}))

	require.Empty(t, local.received())
}

func TestRelayMessageRoundTrip(t *testing.T) {
	data, err := encodeRelay(12, "data: {}\n\n")
	require.NoError(t, err)

	listID, frame, err := decodeRelay(string(data))
	require.NoError(t, err)
	require.EqualValues(t, 12, listID)
	require.Equal(t, "data: {}\n\n", frame)

	_, _, err = decodeRelay(`{"listId":0}`)
	require.Error(t, err)
	_, _, err = decodeRelay("not json")
	require.Error(t, err)
}

func TestPayload(t *testing.T) {
	require.Equal(t, `{"a":1}`, Payload("data: {\"a\":1}\n\n"))
	require.Equal(t, "", Payload(Heartbeat))
}
