package logging

import (
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 描述日志输出方式。
type Options struct {
	Level  string
	Format string
	File   string
}

// Configure 根据配置初始化全局 zerolog 日志器，并接管标准库 log 的输出。
func Configure(opts Options) error {
	w, err := writer(opts)
	if err != nil {
		return err
	}
	level := ParseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)
	log.Logger = New(w, level)
	zerolog.DefaultContextLogger = &log.Logger

	stdlog.SetFlags(0)
	stdlog.SetOutput(stdWriter{logger: log.Logger.With().Str("component", "stdlog").Logger()})
	return nil
}

// New 创建写入 w 的日志器，调试级别下附带调用位置。
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Level(level)
}

// Component 返回带 component 字段的全局日志器副本。
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// ParseLevel 解析日志级别，无法识别时回退到 info。
func ParseLevel(raw string) zerolog.Level {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func writer(opts Options) (io.Writer, error) {
	var out io.Writer = os.Stdout
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, err
		}
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
	}
	if strings.EqualFold(opts.Format, "json") {
		return out, nil
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: opts.File != ""}, nil
}

// stdWriter 把标准库 log 的输出转为 zerolog 事件。
type stdWriter struct {
	logger zerolog.Logger
}

func (w stdWriter) Write(p []byte) (int, error) {
	w.logger.Info().Msg(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
