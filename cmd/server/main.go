package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/HaiBangi/yumiso-sub003/internal/config"
	"github.com/HaiBangi/yumiso-sub003/internal/logging"
	"github.com/HaiBangi/yumiso-sub003/internal/server"
	"github.com/HaiBangi/yumiso-sub003/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	if err := logging.Configure(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}); err != nil {
		log.Fatal().Err(err).Msg("logging")
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Fatal().Err(err).Msg("sentry init")
		}
		defer sentry.Flush(2 * time.Second)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("store")
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("ensure admin")
	}

	srv, err := server.New(cfg, st)
	if err != nil {
		log.Fatal().Err(err).Msg("server init")
	}
	defer srv.Close()

	// SSE 连接长期存在，不设置 WriteTimeout
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer.RegisterOnShutdown(srv.Drain)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("yumiso listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// 优雅地关闭服务
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
}
