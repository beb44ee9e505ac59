package scheduler

import (
	"context"
	crand "crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"reviewpulse/internal/adapters/observability"
	"reviewpulse/internal/domain"
)

// CompanyIngestor is the single pipeline entry point the scheduler drives.
type CompanyIngestor interface {
	IngestCompany(ctx context.Context, c domain.Company) (int, error)
}

type Runner struct {
	ing         CompanyIngestor
	repo        domain.ReviewRepository
	workers     int
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

func NewRunner(ing CompanyIngestor, repo domain.ReviewRepository, workers, maxAttempts int, backoffBase, backoffCap time.Duration) *Runner {
	if workers <= 0 {
		workers = 8
	}
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	if backoffBase <= 0 {
		backoffBase = 200 * time.Millisecond
	}
	if backoffCap <= 0 {
		backoffCap = 30 * time.Second
	}
	return &Runner{
		ing:         ing,
		repo:        repo,
		workers:     workers,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
	}
}

// Tick runs one ingestion cycle over every active company. Companies are
// independent units of work: a degraded or disabled company never delays
// the rest of the set.
func (r *Runner) Tick(ctx context.Context) {
	companies, err := r.repo.ListActiveCompanies(ctx)
	if err != nil {
		log.Error().Err(err).Msg("tick: list companies failed")
		return
	}
	log.Info().Int("companies", len(companies)).Msg("tick starting")

	sem := semaphore.NewWeighted(int64(r.workers))
	var wg sync.WaitGroup
	for _, c := range companies {
		if err := sem.Acquire(ctx, 1); err != nil {
			break // shutdown
		}
		wg.Add(1)
		go func(c domain.Company) {
			defer wg.Done()
			defer sem.Release(1)
			r.runCompany(ctx, c)
		}(c)
	}
	wg.Wait()
	log.Info().Msg("tick completed")
}

// runCompany is the per-company state machine: Fetching, then on transient
// failure BackoffWait → Fetching up to maxAttempts, then degraded for this
// cycle. Permanent failures disable the company until reconfigured.
// Attempt state is scoped to this run, so a manual fetch between ticks
// cannot corrupt it.
func (r *Runner) runCompany(ctx context.Context, c domain.Company) {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		added, err := r.ing.IngestCompany(ctx, c)
		if err == nil {
			log.Info().Int64("company_id", c.ID).Int("added", added).Msg("ingest ok")
			return
		}

		switch {
		case errors.Is(err, domain.ErrProviderRejected):
			observability.FetchFailures.WithLabelValues("permanent").Inc()
			log.Warn().Int64("company_id", c.ID).Err(err).Msg("provider rejected; disabling company")
			if derr := r.repo.SetActive(ctx, c.ID, false); derr != nil {
				log.Error().Int64("company_id", c.ID).Err(derr).Msg("disable failed")
			}
			_ = r.repo.SetFetchStatus(ctx, c.ID, domain.FetchStatusDisabled)
			return

		case errors.Is(err, domain.ErrStorageUnavailable):
			// Abort this company's tick; nothing partial was written.
			observability.FetchFailures.WithLabelValues("storage").Inc()
			log.Error().Int64("company_id", c.ID).Err(err).Msg("storage unavailable; aborting tick")
			_ = r.repo.SetFetchStatus(ctx, c.ID, domain.FetchStatusStorage)
			return

		default:
			observability.FetchFailures.WithLabelValues("transient").Inc()
			if attempt+1 < r.maxAttempts {
				wait := Backoff(attempt, r.backoffBase, r.backoffCap)
				log.Warn().
					Int64("company_id", c.ID).
					Int("attempt", attempt+1).
					Dur("backoff", wait).
					Err(err).
					Msg("transient fetch failure")
				if !sleepCtx(ctx, wait) {
					return // shutdown during BackoffWait; nothing persisted
				}
				continue
			}
			log.Warn().Int64("company_id", c.ID).Err(err).Msg("retries exhausted; degraded until next tick")
			_ = r.repo.SetFetchStatus(ctx, c.ID, domain.FetchStatusDegraded)
			return
		}
	}
}

// Backoff returns the delay before retry attempt i (0-based): base doubled
// each attempt, capped, plus up to +50% jitter to avoid thundering herds.
func Backoff(i int, base, cap time.Duration) time.Duration {
	d := base << uint(i)
	if d > cap || d <= 0 {
		d = cap
	}
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return d
	}
	f := float64(b[0]) / 255.0
	return d + time.Duration(0.5*f*float64(d))
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
