package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
)

// chanWriter 将每次写入转交给测试协程读取。
type chanWriter struct {
	writes chan string
	err    error
}

func newChanWriter() *chanWriter {
	return &chanWriter{writes: make(chan string, 16)}
}

func (w *chanWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.writes <- string(p)
	return len(p), nil
}

func (w *chanWriter) Flush() {}

func (w *chanWriter) next(t *testing.T) string {
	t.Helper()
	select {
	case s := <-w.writes:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func TestStream_SendAndClose(t *testing.T) {
	s := NewStream(2)
	require.NotEmpty(t, s.ID())

	require.NoError(t, s.Send("a"))
	require.NoError(t, s.Send("b"))
	require.ErrorIs(t, s.Send("c"), ErrSlowConsumer)

	s.Close()
	s.Close()
	require.ErrorIs(t, s.Send("d"), ErrClosed)

	var got []string
	for f := range s.Frames() {
		got = append(got, f)
	}
	require.Equal(t, []string{"a", "b"}, got)
}

func TestStream_HoldRelease(t *testing.T) {
	s := NewStream(4)
	require.NoError(t, s.Send("connected"))
	s.Hold()
	require.NoError(t, s.Send("item_added"))
	require.NoError(t, s.Release("initial"))
	require.NoError(t, s.Send("item_removed"))
	s.Close()

	var got []string
	for f := range s.Frames() {
		got = append(got, f)
	}
	require.Equal(t, []string{"connected", "initial", "item_added", "item_removed"}, got)
}

func TestPumpSSE_ShoppingListScenario(t *testing.T) {
	reg, b := newTestBroadcaster()
	stream := NewStream(8)

	connected, err := Encode(Connected(42))
	require.NoError(t, err)
	require.NoError(t, stream.Send(connected))
	reg.Subscribe(42, stream)
	initial, err := Encode(Initial([]models.ShoppingItem{{ID: 1, IngredientName: "Lait", Category: "Produits laitiers"}}))
	require.NoError(t, err)
	require.NoError(t, stream.Send(initial))

	w := newChanWriter()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- PumpSSE(ctx, w, w, stream, time.Hour) }()

	require.Equal(t, "connected", decodeFrame(t, w.next(t))["type"])
	snapshot := decodeFrame(t, w.next(t))
	require.Equal(t, "initial", snapshot["type"])
	require.Len(t, snapshot["items"], 1)

	b.Broadcast(42, ItemRemoved(Actor{ID: 2, Name: "Bob"}, models.ShoppingItem{IngredientName: "Lait", Category: "Produits laitiers"}))

	removed := decodeFrame(t, w.next(t))
	require.Equal(t, "item_removed", removed["type"])
	require.Equal(t, "Lait", removed["ingredientName"])
	require.Equal(t, "Produits laitiers", removed["category"])
	require.Equal(t, "Bob", removed["userName"])

	select {
	case extra := <-w.writes:
		t.Fatalf("unexpected frame %q", extra)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	reg.Unsubscribe(42, stream)
	stream.Close()
	require.Equal(t, 0, reg.Count(42))
}

func TestPumpSSE_Heartbeat(t *testing.T) {
	stream := NewStream(1)
	w := newChanWriter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = PumpSSE(ctx, w, w, stream, 10*time.Millisecond) }()

	require.Equal(t, Heartbeat, w.next(t))
}

func TestPumpSSE_WriteFailureEndsStream(t *testing.T) {
	stream := NewStream(1)
	w := newChanWriter()
	w.err = errors.New("connection reset")

	err := PumpSSE(context.Background(), w, w, stream, 5*time.Millisecond)
	require.EqualError(t, err, "connection reset")
}

func TestPumpSSE_ClosedStream(t *testing.T) {
	stream := NewStream(1)
	stream.Close()
	w := newChanWriter()

	err := PumpSSE(context.Background(), w, w, stream, time.Hour)
	require.ErrorIs(t, err, ErrClosed)
}
