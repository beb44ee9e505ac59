package redisad

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"reviewpulse/internal/adapters/observability"
	"reviewpulse/internal/domain"
)

// AlertPublisher pushes negative-review events onto a Redis channel for the
// external alerting service (email/webhook fan-out lives there, not here).
type AlertPublisher struct {
	c       *redis.Client
	channel string
}

func NewAlertPublisher(addr, pass string, db int, channel string) *AlertPublisher {
	return &AlertPublisher{
		c:       redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		channel: channel,
	}
}

func (p *AlertPublisher) PublishAlert(ctx context.Context, ev domain.AlertEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.c.Publish(ctx, p.channel, b).Err(); err != nil {
		return err
	}
	observability.AlertsPublished.Inc()
	return nil
}
