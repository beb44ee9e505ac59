package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"reviewpulse/internal/adapters/observability"
	"reviewpulse/internal/domain"
)

type IngestConfig struct {
	PageSize    int
	MaxPages    int
	KeywordTopN int
	ReplyMaxLen int
}

// IngestionService runs one company through fetch → dedupe → score →
// suggest → admit → notify. It owns no retry policy; transient errors
// bubble up to the scheduler.
type IngestionService struct {
	provider domain.ProviderClient
	repo     domain.ReviewRepository
	capacity *CapacityManager
	cache    domain.Cache
	alerts   domain.AlertPublisher
	cfg      IngestConfig
}

func NewIngestionService(p domain.ProviderClient, r domain.ReviewRepository, cm *CapacityManager, c domain.Cache, a domain.AlertPublisher, cfg IngestConfig) *IngestionService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 25
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.KeywordTopN <= 0 {
		cfg.KeywordTopN = 5
	}
	if cfg.ReplyMaxLen <= 0 {
		cfg.ReplyMaxLen = DefaultReplyMaxLen
	}
	return &IngestionService{provider: p, repo: r, capacity: cm, cache: c, alerts: a, cfg: cfg}
}

// IngestCompany returns the number of newly admitted reviews.
func (s *IngestionService) IngestCompany(ctx context.Context, c domain.Company) (int, error) {
	existing, err := s.repo.ReviewIDs(ctx, c.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: load review ids: %v", domain.ErrStorageUnavailable, err)
	}

	// 1) Fetch all pages before persisting anything: a tick that dies
	// mid-fetch leaves no half-formed records behind.
	var raws []domain.RawReview
	token := ""
	for page := 0; page < s.cfg.MaxPages; page++ {
		recs, next, ferr := s.provider.FetchReviews(ctx, c.PlaceID, token, s.cfg.PageSize)
		if ferr != nil {
			return 0, ferr
		}
		raws = append(raws, recs...)
		if next == "" {
			break
		}
		token = next
	}

	fresh := Dedupe(existing, raws)
	if len(fresh) == 0 {
		if err := s.repo.SetFetchStatus(ctx, c.ID, domain.FetchStatusOK); err != nil {
			return 0, fmt.Errorf("%w: set status: %v", domain.ErrStorageUnavailable, err)
		}
		return 0, nil
	}

	// 2) Score and draft replies. Malformed records are skipped, the rest
	// of the batch continues.
	now := time.Now().UTC()
	batch := make([]domain.Review, 0, len(fresh))
	for _, raw := range fresh {
		if verr := ValidateRaw(raw); verr != nil {
			log.Warn().Int64("company_id", c.ID).Str("source_id", raw.SourceID).Msg("skipping malformed review")
			continue
		}
		label, score, keywords := Score(raw.Text, raw.Rating, s.cfg.KeywordTopN)
		batch = append(batch, domain.Review{
			CompanyID:      c.ID,
			SourceID:       raw.SourceID,
			Author:         raw.Author,
			Rating:         raw.Rating,
			Text:           raw.Text,
			ReviewedAt:     raw.ReviewedAt,
			Sentiment:      label,
			Score:          score,
			Keywords:       keywords,
			SuggestedReply: SuggestReply(c.Name, label, keywords, s.cfg.ReplyMaxLen),
			FetchedAt:      now,
		})
	}

	admitted, evicted, err := s.capacity.Admit(ctx, c.ID, batch)
	if err != nil {
		return 0, err
	}
	for _, rv := range admitted {
		observability.ReviewsIngested.WithLabelValues(rv.Sentiment).Inc()
	}
	observability.ReviewsEvicted.Add(float64(len(evicted)))

	if err := s.repo.SetFetchStatus(ctx, c.ID, domain.FetchStatusOK); err != nil {
		return len(admitted), fmt.Errorf("%w: set status: %v", domain.ErrStorageUnavailable, err)
	}

	s.invalidateCompany(ctx, c.ID)

	// 3) Alerts are best-effort: failures are logged, never rolled back.
	for _, rv := range admitted {
		if rv.Sentiment != domain.SentimentNegative {
			continue
		}
		ev := domain.AlertEvent{CompanyID: c.ID, ReviewID: rv.SourceID, Score: rv.Score}
		if aerr := s.alerts.PublishAlert(ctx, ev); aerr != nil {
			log.Warn().Int64("company_id", c.ID).Str("review_id", rv.SourceID).Err(aerr).Msg("alert publish failed")
		}
	}

	log.Info().
		Int64("company_id", c.ID).
		Int("fetched", len(raws)).
		Int("admitted", len(admitted)).
		Int("evicted", len(evicted)).
		Msg("company ingested")
	return len(admitted), nil
}

// Classify maps a pipeline error onto the company fetch status.
func Classify(err error) string {
	switch {
	case err == nil:
		return domain.FetchStatusOK
	case errors.Is(err, domain.ErrProviderRejected):
		return domain.FetchStatusDisabled
	case errors.Is(err, domain.ErrStorageUnavailable):
		return domain.FetchStatusStorage
	default:
		return domain.FetchStatusDegraded
	}
}

func (s *IngestionService) invalidateCompany(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, "kpis:all")
	_ = s.cache.Del(ctx, fmt.Sprintf("kpis:%d", id))
	for _, fill := range []string{"0", "1"} {
		_ = s.cache.Del(ctx, fmt.Sprintf("trend:%d:month:%s", id, fill))
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("reviews:%d:%d", id, defaultListLimit))
}
