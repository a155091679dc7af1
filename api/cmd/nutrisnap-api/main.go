package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nutrisnap/api/internal/backend"
	"nutrisnap/api/internal/classify"
	"nutrisnap/api/internal/classify/gemini"
	"nutrisnap/api/internal/config"
	"nutrisnap/api/internal/httpserver"
	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/store"
)

func main() {
	cfg, err := config.LoadBackend()
	if err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("load config")
	}
	logx.Init(logx.LoggerOpts{Environment: logx.ParseEnvironment(cfg.Env)})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, dialect, err := store.Open(openCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logx.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()
	logx.Info().Str("dialect", string(dialect)).Msg("store ready")

	foods := backend.Foods()
	engines := []classify.Engine{}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		engines = append(engines, gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, foods))
	}
	engines = append(engines, classify.NewHint(foods, backend.DefaultFood))
	chain := &classify.Chain{Engines: engines, Foods: foods, Aliases: classify.DefaultAliases}
	logx.Info().Str("classifier", chain.Name()).Msg("classifier ready")

	h := backend.New(store.NewHistoryRepo(db, dialect), chain)
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("/healthz", httpserver.Healthz("db", db.PingContext))

	addr := ":" + cfg.Port
	if err := httpserver.Serve(ctx, addr, backend.CORS(cfg.AllowedOrigins, mux)); err != nil {
		logx.Fatal().Err(err).Msg("http server")
	}
}
