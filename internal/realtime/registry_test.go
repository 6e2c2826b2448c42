package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeChannel 记录收到的帧，fail 为真时模拟连接已断开。
type fakeChannel struct {
	mu     sync.Mutex
	frames []string
	fail   bool
}

func (f *fakeChannel) Send(frame string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeChannel) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func TestRegistry_SubscribeUnsubscribe(t *testing.T) {
	r := NewRegistry()
	ch := &fakeChannel{}

	r.Subscribe(7, ch)
	require.Equal(t, 1, r.Count(7))
	require.True(t, r.has(7))

	r.Unsubscribe(7, ch)
	require.Equal(t, 0, r.Count(7))
	require.False(t, r.has(7), "empty list entry must be removed")
	require.Equal(t, 0, r.Lists())
}

func TestRegistry_SubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	ch := &fakeChannel{}

	r.Subscribe(1, ch)
	r.Subscribe(1, ch)
	require.Equal(t, 1, r.Count(1))
}

func TestRegistry_UnsubscribeUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	known := &fakeChannel{}
	r.Subscribe(1, known)

	require.NotPanics(t, func() {
		r.Unsubscribe(2, &fakeChannel{})
		r.Unsubscribe(1, &fakeChannel{})
		r.Unsubscribe(1, known)
		r.Unsubscribe(1, known)
	})
	require.Equal(t, 0, r.Count(1))
}

func TestRegistry_CountUnknownList(t *testing.T) {
	require.Equal(t, 0, NewRegistry().Count(99))
	require.Nil(t, NewRegistry().Subscribers(99))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			ch := &fakeChannel{}
			r.Subscribe(id%5, ch)
			_ = r.Subscribers(id % 5)
			r.Unsubscribe(id%5, ch)
		}(int64(i))
	}
	wg.Wait()
	require.Equal(t, 0, r.Lists())
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry()
	a := NewStream(1)
	b := NewStream(1)
	reg.Subscribe(1, a)
	reg.Subscribe(2, b)
	reg.Subscribe(2, &fakeChannel{})

	require.Equal(t, 2, reg.CloseAll())
	require.Equal(t, 0, reg.Lists())
	require.ErrorIs(t, a.Send("x"), ErrClosed)
	require.ErrorIs(t, b.Send("x"), ErrClosed)
}
