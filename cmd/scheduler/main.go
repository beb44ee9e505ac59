package main

import (
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"reviewpulse/internal/adapters/observability"
	"reviewpulse/internal/adapters/places"
	redisad "reviewpulse/internal/adapters/redis"
	"reviewpulse/internal/app"
	"reviewpulse/internal/scheduler"
	"reviewpulse/internal/shared"
	mysqlrepo "reviewpulse/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	log.Info().
		Str("base", cfg.PlacesBase).
		Int("workers", cfg.Workers).
		Int("cap", cfg.ReviewCap).
		Str("tick", cfg.TickCron).
		Msg("scheduler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := places.New(cfg.PlacesBase, cfg.PlacesKey, cfg.ProviderRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize places client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	alerts := redisad.NewAlertPublisher(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.AlertChannel)

	capacity := app.NewCapacityManager(repo, cfg.ReviewCap)
	ing := app.NewIngestionService(client, repo, capacity, cache, alerts, app.IngestConfig{
		PageSize:    cfg.PageSize,
		MaxPages:    cfg.MaxFetchPages,
		KeywordTopN: cfg.KeywordTopN,
		ReplyMaxLen: cfg.ReplyMaxLen,
	})

	runner := scheduler.NewRunner(ing, repo, cfg.Workers, cfg.MaxAttempts, cfg.BackoffBase, cfg.BackoffCap)
	mgr := scheduler.NewManager(runner)
	if err := mgr.Register(cfg.TickCron); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.TickCron).Msg("invalid tick schedule")
	}
	mgr.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	mgr.Stop()
}
