package views

import (
	"sort"
	"time"
)

const (
	// RecountInterval 内同一访客对同一菜谱只计一次。
	RecountInterval = 30 * time.Minute
	// EntryTTL 之后的记录会被清理。
	EntryTTL = 24 * time.Hour
	// MaxEntries 限制访客记录的条目数。
	MaxEntries = 100
)

// Throttle 记录访客最近一次被计数的时间（Unix 毫秒），由客户端 cookie 携带。
type Throttle map[int64]int64

// ShouldCountView 判断本次浏览是否需要计数。
func ShouldCountView(t Throttle, recipeID int64, now time.Time) bool {
	last, ok := t[recipeID]
	if !ok {
		return true
	}
	return now.Sub(time.UnixMilli(last)) >= RecountInterval
}

// UpdateViewsData 返回更新后的副本：写入当前时间，清理过期条目并限制总数。
func UpdateViewsData(t Throttle, recipeID int64, now time.Time) Throttle {
	cutoff := now.Add(-EntryTTL).UnixMilli()
	out := make(Throttle, len(t)+1)
	for id, ts := range t {
		if ts > cutoff {
			out[id] = ts
		}
	}
	out[recipeID] = now.UnixMilli()

	if len(out) > MaxEntries {
		ids := make([]int64, 0, len(out))
		for id := range out {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return out[ids[i]] < out[ids[j]] })
		for _, id := range ids[:len(out)-MaxEntries] {
			delete(out, id)
		}
	}
	return out
}
