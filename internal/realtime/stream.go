package realtime

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stream 是一个连接的发送队列：广播方只入队，连接协程独占写出。
type Stream struct {
	id     string
	mu     sync.Mutex
	closed bool
	held   []string
	hold   bool
	frames chan string
}

// NewStream 创建容量为 buffer 的发送队列。
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 1
	}
	return &Stream{
		id:     uuid.NewString(),
		frames: make(chan string, buffer),
	}
}

// ID 返回连接的唯一标识，用于日志。
func (s *Stream) ID() string {
	return s.id
}

// Send 非阻塞入队；队列已满或已关闭时返回错误，帧按调用顺序写出。
func (s *Stream) Send(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.hold {
		if len(s.held) >= cap(s.frames) {
			return ErrSlowConsumer
		}
		s.held = append(s.held, frame)
		return nil
	}
	return s.enqueue(frame)
}

func (s *Stream) enqueue(frame string) error {
	select {
	case s.frames <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Hold 暂存后续 Send 的帧，直到 Release。
func (s *Stream) Hold() {
	s.mu.Lock()
	s.hold = true
	s.mu.Unlock()
}

// Release 先入队 first，再按原顺序入队暂存的帧，并恢复直接入队。
// 返回错误时部分帧可能已入队，调用方应关闭 Stream。
func (s *Stream) Release(first ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	frames := append(append([]string(nil), first...), s.held...)
	s.held = nil
	s.hold = false
	for _, frame := range frames {
		if err := s.enqueue(frame); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭队列，可重复调用。
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
}

// Frames 返回待写出的帧。
func (s *Stream) Frames() <-chan string {
	return s.frames
}

// PrepareSSE 写入 SSE 响应头，不支持流式输出时返回 false。
func PrepareSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

// PumpSSE 持续写出队列中的帧，并按 heartbeat 间隔发送心跳。
// 连接取消、写入失败或队列关闭时返回。
func PumpSSE(ctx context.Context, w io.Writer, flusher http.Flusher, s *Stream, heartbeat time.Duration) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	write := func(frame string) error {
		if _, err := io.WriteString(w, frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := write(Heartbeat); err != nil {
				return err
			}
		case frame, ok := <-s.Frames():
			if !ok {
				return ErrClosed
			}
			if err := write(frame); err != nil {
				return err
			}
		}
	}
}
