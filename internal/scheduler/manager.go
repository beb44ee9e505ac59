package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Manager drives periodic ticks through a cron engine.
type Manager struct {
	engine *cron.Cron
	runner *Runner
}

func NewManager(runner *Runner) *Manager {
	return &Manager{engine: cron.New(), runner: runner}
}

// Register schedules the ingestion tick (e.g. "@every 1h" or a cron expr).
func (m *Manager) Register(spec string) error {
	_, err := m.engine.AddFunc(spec, func() {
		m.runner.Tick(context.Background())
	})
	return err
}

func (m *Manager) Start() {
	log.Info().Msg("scheduler started")
	m.engine.Start()
}

// Stop halts scheduling and waits for a running tick to finish.
func (m *Manager) Stop() {
	ctx := m.engine.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}
