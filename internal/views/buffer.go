package views

import (
	"context"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// Incrementer 是浏览计数的持久化依赖。
type Incrementer interface {
	IncrementRecipeViews(ctx context.Context, recipeID, n int64) error
}

// FlushResult 汇总一次落库的结果。
type FlushResult struct {
	Flushed int   `json:"flushed"`
	Total   int64 `json:"total"`
	Failed  int   `json:"failed"`
}

// Stats 描述缓冲区中尚未落库的浏览量。
type Stats struct {
	Recipes    int   `json:"recipes"`
	TotalViews int64 `json:"totalViews"`
}

// Buffer 在内存中累积菜谱浏览量，定期合并写入数据库。
type Buffer struct {
	mu      sync.Mutex
	pending map[int64]int64
	store   Incrementer
	logger  zerolog.Logger
}

// NewBuffer 创建空缓冲区。
func NewBuffer(store Incrementer, logger zerolog.Logger) *Buffer {
	return &Buffer{
		pending: make(map[int64]int64),
		store:   store,
		logger:  logger,
	}
}

// Register 记录一次浏览，不访问数据库。
func (b *Buffer) Register(recipeID int64) {
	b.mu.Lock()
	b.pending[recipeID]++
	b.mu.Unlock()
}

// Flush 换入空表后逐个菜谱写入累积值。
// 写入失败的条目只记录日志，不再放回缓冲区。
func (b *Buffer) Flush(ctx context.Context) FlushResult {
	b.mu.Lock()
	snapshot := b.pending
	b.pending = make(map[int64]int64, len(snapshot))
	b.mu.Unlock()

	var res FlushResult
	for recipeID, count := range snapshot {
		if err := b.store.IncrementRecipeViews(ctx, recipeID, count); err != nil {
			res.Failed++
			b.logger.Error().Err(err).Int64("recipe_id", recipeID).Int64("views", count).Msg("flush views failed")
			sentry.CaptureException(err)
			continue
		}
		res.Flushed++
		res.Total += count
	}
	if res.Flushed > 0 || res.Failed > 0 {
		b.logger.Info().Int("flushed", res.Flushed).Int64("total", res.Total).Int("failed", res.Failed).Msg("views flushed")
	}
	return res
}

// Stats 返回当前缓冲状态，无副作用。
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Stats{Recipes: len(b.pending)}
	for _, n := range b.pending {
		st.TotalViews += n
	}
	return st
}

// Pending 返回某个菜谱尚未落库的浏览量。
func (b *Buffer) Pending(recipeID int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[recipeID]
}
