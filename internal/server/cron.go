package server

import (
	"crypto/subtle"
	"net/http"
)

// cronFlushViews 由外部定时任务触发，立即把缓冲的浏览量写入数据库。
// 配置了 cron_secret 时要求 Bearer 令牌匹配。
func (s *Server) cronFlushViews(w http.ResponseWriter, r *http.Request) {
	if s.cfg.CronSecret != "" {
		token := extractBearerToken(r)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.CronSecret)) != 1 {
			writeMessage(w, "unauthorised", http.StatusUnauthorized)
			return
		}
	}
	res := s.views.Flush(r.Context())
	s.logger.Info().
		Int("flushed", res.Flushed).
		Int64("total", res.Total).
		Int("failed", res.Failed).
		Msg("cron flush")
	writeJSON(w, map[string]interface{}{
		"success": true,
		"flushed": res.Flushed,
		"total":   res.Total,
		"failed":  res.Failed,
	})
}
