package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const relayTimeout = 2 * time.Second

// Relay 把事件帧转发到其他实例，由各实例在本地投递。
type Relay interface {
	Publish(ctx context.Context, listID int64, frame string) error
}

// Broadcaster 负责向某个清单的实时订阅者分发事件。
type Broadcaster struct {
	registry *Registry
	relay    Relay
	logger   zerolog.Logger
}

// NewBroadcaster 基于注册表创建广播器。
func NewBroadcaster(registry *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: logger}
}

// UseRelay 启用跨实例转发；此后本地投递由 relay 的订阅回调完成。
func (b *Broadcaster) UseRelay(relay Relay) {
	b.relay = relay
}

// Broadcast 将事件广播给清单的所有订阅者。单个订阅者失败不影响其他订阅者，也不会返回给调用方。
func (b *Broadcaster) Broadcast(listID int64, evt Event) {
	frame, err := Encode(evt)
	if err != nil {
		b.logger.Error().Err(err).Int64("list_id", listID).Msg("drop event")
		return
	}
	if b.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		err := b.relay.Publish(ctx, listID, frame)
		cancel()
		if err == nil {
			return
		}
		// 超时后 Redis 可能已接受该帧，本地再投递会重复。
		if errors.Is(err, context.DeadlineExceeded) {
			b.logger.Warn().Err(err).Int64("list_id", listID).Msg("relay publish timed out, event dropped")
			return
		}
		b.logger.Warn().Err(err).Int64("list_id", listID).Msg("relay publish failed, delivering locally")
	}
	b.Deliver(listID, frame)
}

// Deliver 把已编码的帧写入本实例的订阅者，失败的通道在遍历结束后注销并关闭。返回成功投递数。
func (b *Broadcaster) Deliver(listID int64, frame string) int {
	subs := b.registry.Subscribers(listID)
	if len(subs) == 0 {
		return 0
	}
	var failed []Channel
	delivered := 0
	for _, ch := range subs {
		if err := ch.Send(frame); err != nil {
			failed = append(failed, ch)
			continue
		}
		delivered++
	}
	for _, ch := range failed {
		b.registry.Unsubscribe(listID, ch)
		if c, ok := ch.(interface{ Close() }); ok {
			c.Close()
		}
	}
	if len(failed) > 0 {
		b.logger.Debug().Int64("list_id", listID).Int("dropped", len(failed)).Msg("removed failed subscribers")
	}
	return delivered
}
