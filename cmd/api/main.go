package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "reviewpulse/internal/adapters/http_server"
	"reviewpulse/internal/adapters/observability"
	"reviewpulse/internal/adapters/places"
	redisad "reviewpulse/internal/adapters/redis"
	"reviewpulse/internal/app"
	"reviewpulse/internal/shared"
	mysqlrepo "reviewpulse/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	alerts := redisad.NewAlertPublisher(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.AlertChannel)
	q := app.NewQueryService(repo, cache, cfg.CacheTTL, cfg.ReplyMaxLen)

	// manual fetch shares the scheduler's pipeline, minus the retry loop
	client, err := places.New(cfg.PlacesBase, cfg.PlacesKey, cfg.ProviderRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize places client")
	}
	capacity := app.NewCapacityManager(repo, cfg.ReviewCap)
	ing := app.NewIngestionService(client, repo, capacity, cache, alerts, app.IngestConfig{
		PageSize:    cfg.PageSize,
		MaxPages:    cfg.MaxFetchPages,
		KeywordTopN: cfg.KeywordTopN,
		ReplyMaxLen: cfg.ReplyMaxLen,
	})

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Ing: ing, Repo: repo})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
