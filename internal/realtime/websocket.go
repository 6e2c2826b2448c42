package realtime

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// PumpWebSocket 以文本消息写出帧的 JSON 载荷，心跳使用 ping。
// 对端关闭由 CloseRead 感知并取消上下文。
func PumpWebSocket(ctx context.Context, conn *websocket.Conn, s *Stream, heartbeat time.Duration) error {
	ctx = conn.CloseRead(ctx)

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case frame, ok := <-s.Frames():
			if !ok {
				return ErrClosed
			}
			payload := Payload(frame)
			if payload == "" {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, []byte(payload))
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
