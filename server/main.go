package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spacedan/server/auth"
	"spacedan/server/config"
	"spacedan/server/currency"
	"spacedan/server/srv"
	"spacedan/server/store"
	"spacedan/shared/logging"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}
	log := logging.Setup(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Console: cfg.LogConsole})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("data dir")
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("store")
	}
	defer db.Close()

	a, err := auth.NewAuth(db, cfg.JWTKeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("auth")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := srv.NewHub(db, currency.NewLedger(db, nil))
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", a.HandleRegister)
	mux.HandleFunc("POST /api/login", a.HandleLogin)
	mux.Handle("/ws", hub.Handler(a))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })

	s := &http.Server{
		Addr:        cfg.Addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("server listening")
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("listen")
	}
}
