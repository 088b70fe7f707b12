package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/auth"
	"github.com/haftomg96/MVP-chat-app/internal/config"
	"github.com/haftomg96/MVP-chat-app/internal/db"
	clog "github.com/haftomg96/MVP-chat-app/internal/log"
	"github.com/haftomg96/MVP-chat-app/internal/mw"
	"github.com/haftomg96/MVP-chat-app/internal/server"
	"github.com/haftomg96/MVP-chat-app/internal/service"
	"github.com/haftomg96/MVP-chat-app/internal/ws"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	var (
		store   auth.SessionStore = auth.NewGormSessionStore(gdb)
		evictor service.SessionEvictor
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, session cache will fall through")
		}
		cached := auth.NewCachedSessionStore(store, rdb, cfg.SessionCacheTTL())
		store, evictor = cached, cached
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := ws.NewHub(clog.Component("hub"))
	go hub.Run(hubCtx)

	limiter := mw.NewRateLimiter(rate.Every(time.Second/20), 40, 2*time.Minute)
	defer limiter.Stop()

	r := server.SetupRouter(server.Deps{
		Config:   cfg,
		DB:       gdb,
		Hub:      hub,
		Verifier: auth.NewVerifier(store, cfg.JWTSecret),
		Evictor:  evictor,
		Limiter:  limiter,
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	stopHub()
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("hub did not stop in time")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
