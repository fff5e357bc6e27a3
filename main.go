package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	llmx "github.com/wshadow/advisor-engine/engine/llm"
	orchestratorx "github.com/wshadow/advisor-engine/engine/orchestrator"
	providersx "github.com/wshadow/advisor-engine/engine/providers"
	reasoningx "github.com/wshadow/advisor-engine/engine/reasoning"
	configx "github.com/wshadow/advisor-engine/pkg/config"
	_ "github.com/wshadow/advisor-engine/pkg/logger/autoload"
	webhookx "github.com/wshadow/advisor-engine/pkg/webhook"
	scannerx "github.com/wshadow/advisor-engine/scanner"
	serverx "github.com/wshadow/advisor-engine/server"
	storex "github.com/wshadow/advisor-engine/store"
)

type AppConfig struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" split_words:"true" default:":8000"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" split_words:"true"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	scannerCfg := configx.MustNew[scannerx.Config]("SCANNER")
	webhookCfg := configx.MustNew[webhookx.Config]("WEBHOOK")

	store := newStore(ctx, appCfg.PostgresDSN)

	reasoners, err := reasoningx.NewRegistry(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build reasoning registry")
	}

	engine, err := orchestratorx.New(store, reasoners, providersx.NewRegistry())
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	notifier, err := webhookx.NewClient(*webhookCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build webhook client")
	}

	scanner := scannerx.New(store, notifier)
	if scannerCfg.Enabled {
		if err := scanner.Start(scannerCfg.Schedule); err != nil {
			log.Fatal().Err(err).Str("schedule", scannerCfg.Schedule).Msg("start alert scanner")
		}
		defer scanner.Stop()
	}

	hub := serverx.NewHub()
	api := serverx.NewAPI(store, scanner, serverx.NewWSHandler(hub, engine))

	srv := &http.Server{
		Addr:              appCfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", appCfg.ListenAddr).Msg("advisor engine listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}

// newStore picks Postgres when a DSN is configured, otherwise an in-memory
// store seeded with the demo book of business.
func newStore(ctx context.Context, dsn string) storex.Store {
	if dsn != "" {
		pg, err := storex.NewPostgresStore(storex.PostgresConfig{
			DSN:          dsn,
			DialTimeout:  10 * time.Second,
			MaxOpenConns: 8,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("open postgres store")
		}
		if err := pg.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("init postgres schema")
		}
		return pg
	}

	mem := storex.NewMemoryStore()
	if err := storex.Seed(ctx, mem); err != nil {
		log.Fatal().Err(err).Msg("seed memory store")
	}
	return mem
}
