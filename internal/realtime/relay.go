package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRelayChannel 是跨实例转发使用的 Redis 频道。
const DefaultRelayChannel = "yumiso:shopping-lists"

type relayMessage struct {
	ListID int64  `json:"listId"`
	Frame  string `json:"frame"`
}

// RedisRelay 通过 Redis 发布订阅在多个实例之间转发事件帧。
type RedisRelay struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisRelay 连接 Redis 并确认可用。
func NewRedisRelay(ctx context.Context, addr, password string, db int, logger zerolog.Logger) (*RedisRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisRelay{client: client, channel: DefaultRelayChannel, logger: logger}, nil
}

// Publish 发布一帧到共享频道。
func (r *RedisRelay) Publish(ctx context.Context, listID int64, frame string) error {
	data, err := encodeRelay(listID, frame)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run 订阅共享频道并将收到的帧交给 deliver，直到 ctx 结束。
func (r *RedisRelay) Run(ctx context.Context, deliver func(listID int64, frame string) int) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			listID, frame, err := decodeRelay(msg.Payload)
			if err != nil {
				r.logger.Warn().Err(err).Msg("discard relay message")
				continue
			}
			deliver(listID, frame)
		}
	}
}

// Close 关闭 Redis 连接。
func (r *RedisRelay) Close() error {
	return r.client.Close()
}

func encodeRelay(listID int64, frame string) ([]byte, error) {
	return json.Marshal(relayMessage{ListID: listID, Frame: frame})
}

func decodeRelay(payload string) (int64, string, error) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return 0, "", err
	}
	if msg.ListID == 0 || msg.Frame == "" {
		return 0, "", fmt.Errorf("incomplete relay message")
	}
	return msg.ListID, msg.Frame, nil
}
