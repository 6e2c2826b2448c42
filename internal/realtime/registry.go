package realtime

import (
	"errors"
	"sync"
)

var (
	// ErrClosed 表示通道已关闭。
	ErrClosed = errors.New("channel closed")
	// ErrSlowConsumer 表示订阅者的发送队列已满。
	ErrSlowConsumer = errors.New("subscriber queue full")
)

// Channel 是单个实时连接的抽象，发送失败即视为连接失效。
type Channel interface {
	Send(frame string) error
}

// Registry 按清单 ID 维护当前在线的订阅者集合。
type Registry struct {
	mu    sync.RWMutex
	lists map[int64]map[Channel]struct{}
}

// NewRegistry 创建空的订阅者注册表。
func NewRegistry() *Registry {
	return &Registry{lists: make(map[int64]map[Channel]struct{})}
}

// Subscribe 把通道登记到清单下，同一通道重复登记无副作用。
func (r *Registry) Subscribe(listID int64, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.lists[listID]
	if !ok {
		subs = make(map[Channel]struct{})
		r.lists[listID] = subs
	}
	subs[ch] = struct{}{}
}

// Unsubscribe 移除通道；集合为空时同时删除清单条目。未登记的通道静默忽略。
func (r *Registry) Unsubscribe(listID int64, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.lists[listID]
	if !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(r.lists, listID)
	}
}

// Count 返回清单当前的订阅者数量。
func (r *Registry) Count(listID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lists[listID])
}

// Subscribers 返回清单订阅者的快照，调用方可在锁外发送。
func (r *Registry) Subscribers(listID int64) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.lists[listID]
	if len(subs) == 0 {
		return nil
	}
	out := make([]Channel, 0, len(subs))
	for ch := range subs {
		out = append(out, ch)
	}
	return out
}

// Lists 返回存在订阅者的清单数量。
func (r *Registry) Lists() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lists)
}

// CloseAll 清空注册表，并关闭支持 Close 的通道。返回关闭的通道数。
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	lists := r.lists
	r.lists = make(map[int64]map[Channel]struct{})
	r.mu.Unlock()

	closed := 0
	for _, subs := range lists {
		for ch := range subs {
			if c, ok := ch.(interface{ Close() }); ok {
				c.Close()
				closed++
			}
		}
	}
	return closed
}

func (r *Registry) has(listID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lists[listID]
	return ok
}
