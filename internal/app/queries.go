package app

import (
	"context"
	"fmt"
	"time"

	"reviewpulse/internal/domain"
)

// Only the default listing limit is cached; other limits always hit the
// store, so invalidation stays a single-key delete.
const defaultListLimit = 50

type QueryService struct {
	repo        domain.ReviewRepository
	cache       domain.Cache
	cacheTTL    time.Duration
	replyMaxLen int
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration, replyMaxLen int) *QueryService {
	if replyMaxLen <= 0 {
		replyMaxLen = DefaultReplyMaxLen
	}
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, replyMaxLen: replyMaxLen}
}

// KPIs computes counts, average rating and sentiment mix for one company,
// or across all companies when companyID is nil.
func (s *QueryService) KPIs(ctx context.Context, companyID *int64) (domain.KPIs, error) {
	key := "kpis:all"
	if companyID != nil {
		key = fmt.Sprintf("kpis:%d", *companyID)
	}
	var out domain.KPIs
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	out, err := s.repo.KPIs(ctx, companyID)
	if err != nil {
		return domain.KPIs{}, err
	}
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// Trend returns monthly (period, avg_rating) points, ascending. Periods with
// no reviews are omitted unless fill is set, which zero-fills the months
// between the first and last observed period for dense chart rendering.
func (s *QueryService) Trend(ctx context.Context, companyID int64, fill bool) ([]domain.TrendPoint, error) {
	key := fmt.Sprintf("trend:%d:month:%s", companyID, boolKey(fill))
	var out []domain.TrendPoint
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	pts, err := s.repo.Trend(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if fill {
		pts = denseFill(pts)
	}
	_ = s.cache.Set(ctx, key, pts, int(s.cacheTTL.Seconds()))
	return pts, nil
}

func (s *QueryService) ListReviews(ctx context.Context, companyID int64, limit int) ([]domain.Review, error) {
	if limit != defaultListLimit {
		return s.repo.ListReviews(ctx, companyID, limit)
	}
	key := fmt.Sprintf("reviews:%d:%d", companyID, limit)
	var out []domain.Review
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	rs, err := s.repo.ListReviews(ctx, companyID, limit)
	if err != nil {
		return nil, err
	}
	// copy to avoid aliasing the repo's backing array into the cache
	cp := make([]domain.Review, len(rs))
	copy(cp, rs)
	_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	return cp, nil
}

// EditReply stores a user-edited reply draft. Once edited, re-scoring never
// overwrites it.
func (s *QueryService) EditReply(ctx context.Context, companyID int64, sourceID, text string) error {
	if len(text) > s.replyMaxLen {
		text = truncateAtWord(text, s.replyMaxLen)
	}
	if err := s.repo.UpdateReply(ctx, companyID, sourceID, text, true); err != nil {
		return err
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("reviews:%d:%d", companyID, defaultListLimit))
	return nil
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// denseFill inserts zero points for months missing between the first and
// last observed periods. Input must already be ascending.
func denseFill(pts []domain.TrendPoint) []domain.TrendPoint {
	if len(pts) < 2 {
		return pts
	}
	first, err1 := time.Parse("2006-01", pts[0].Period)
	last, err2 := time.Parse("2006-01", pts[len(pts)-1].Period)
	if err1 != nil || err2 != nil {
		return pts
	}
	have := make(map[string]domain.TrendPoint, len(pts))
	for _, p := range pts {
		have[p.Period] = p
	}
	var out []domain.TrendPoint
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		period := m.Format("2006-01")
		if p, ok := have[period]; ok {
			out = append(out, p)
		} else {
			out = append(out, domain.TrendPoint{Period: period})
		}
	}
	return out
}
