package views

import (
	"context"
	"sync"
	"time"
)

const finalFlushTimeout = 5 * time.Second

// Flusher 负责按固定间隔把缓冲区写入数据库。
type Flusher struct {
	buffer       *Buffer
	interval     time.Duration
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	stopCh       chan struct{}
}

// NewFlusher 创建定时落库任务，调用 Start 后生效。
func NewFlusher(buffer *Buffer, interval time.Duration) *Flusher {
	return &Flusher{
		buffer:   buffer,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动周期任务。
func (f *Flusher) Start() {
	if f.interval <= 0 {
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.buffer.Flush(context.Background())
			case <-f.stopCh:
				return
			}
		}
	}()
}

// Close 停止周期任务并执行最后一次落库。
func (f *Flusher) Close() {
	f.shutdownOnce.Do(func() {
		close(f.stopCh)
		f.wg.Wait()
		ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
		defer cancel()
		f.buffer.Flush(ctx)
	})
}
