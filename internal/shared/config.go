package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	PlacesBase string
	PlacesKey  string

	ReviewCap     int
	PageSize      int
	TickCron      string
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	Workers       int
	CacheTTL      time.Duration
	ReplyMaxLen   int
	KeywordTopN   int
	AlertChannel  string
	ProviderRPS   int
	MaxFetchPages int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviewpulse?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		PlacesBase: env("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesKey:  env("PLACES_API_KEY", ""),

		ReviewCap:     atoi("REVIEW_CAP", 500),
		PageSize:      atoi("FETCH_PAGE_SIZE", 25),
		TickCron:      env("TICK_CRON", "@every 1h"),
		MaxAttempts:   atoi("MAX_FETCH_ATTEMPTS", 4),
		BackoffBase:   time.Duration(atoi("BACKOFF_BASE_MS", 200)) * time.Millisecond,
		BackoffCap:    time.Duration(atoi("BACKOFF_CAP_MS", 30000)) * time.Millisecond,
		Workers:       atoi("INGEST_WORKERS", 8),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		ReplyMaxLen:   atoi("REPLY_MAX_LEN", 500),
		KeywordTopN:   atoi("KEYWORD_TOP_N", 5),
		AlertChannel:  env("ALERT_CHANNEL", "alerts:negative_review"),
		ProviderRPS:   atoi("PROVIDER_RPS", 5),
		MaxFetchPages: atoi("MAX_FETCH_PAGES", 10),
	}
	if c.PlacesKey == "" {
		log.Warn().Msg("PLACES_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
