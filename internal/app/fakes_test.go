package app_test

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"

	"reviewpulse/internal/domain"
)

// fakeRepo is an in-memory ReviewRepository good enough for pipeline tests:
// upsert-by-source-id semantics, oldest-first eviction, KPI math.
type fakeRepo struct {
	mu        sync.Mutex
	seq       int64
	reviews   map[int64][]domain.Review // keyed by company id
	companies map[int64]domain.Company
	statuses  map[int64]string
	failNext  error // returned by the next storage call when set
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		reviews:   make(map[int64][]domain.Review),
		companies: make(map[int64]domain.Company),
		statuses:  make(map[int64]string),
	}
}

func (f *fakeRepo) takeErr() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeRepo) UpsertCompany(ctx context.Context, c domain.Company) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		f.seq++
		c.ID = f.seq
	}
	f.companies[c.ID] = c
	return c.ID, nil
}

func (f *fakeRepo) SetFetchStatus(ctx context.Context, companyID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	f.statuses[companyID] = status
	return nil
}

func (f *fakeRepo) SetActive(ctx context.Context, companyID int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.companies[companyID]
	c.Active = active
	f.companies[companyID] = c
	return nil
}

func (f *fakeRepo) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[id]
	if !ok {
		return domain.Company{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) ListActiveCompanies(ctx context.Context) ([]domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Company
	for _, c := range f.companies {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) InsertReviews(ctx context.Context, rs []domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	f.insertLocked(rs)
	return nil
}

func (f *fakeRepo) insertLocked(rs []domain.Review) {
	for _, rv := range rs {
		stored := f.reviews[rv.CompanyID]
		replaced := false
		for i, old := range stored {
			if old.SourceID == rv.SourceID {
				rv.ID = old.ID
				if old.ReplyEdited {
					rv.SuggestedReply = old.SuggestedReply
					rv.ReplyEdited = true
				}
				stored[i] = rv
				replaced = true
				break
			}
		}
		if !replaced {
			f.seq++
			rv.ID = f.seq
			stored = append(stored, rv)
		}
		f.reviews[rv.CompanyID] = stored
	}
}

func (f *fakeRepo) ReviewIDs(ctx context.Context, companyID int64) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for _, rv := range f.reviews[companyID] {
		out[rv.SourceID] = struct{}{}
	}
	return out, nil
}

func (f *fakeRepo) CountReviews(ctx context.Context, companyID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reviews[companyID]), nil
}

// AdmitBatch mirrors the storage transaction: insert and evict together, and
// batch rows are never eviction candidates. A failure leaves nothing behind.
func (f *fakeRepo) AdmitBatch(ctx context.Context, companyID int64, rs []domain.Review, keep int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	f.insertLocked(rs)

	stored := f.reviews[companyID]
	excess := len(stored) - keep
	if excess <= 0 {
		return nil, nil
	}
	shielded := make(map[string]struct{}, len(rs))
	for _, rv := range rs {
		shielded[rv.SourceID] = struct{}{}
	}
	candidates := make([]domain.Review, 0, len(stored))
	for _, rv := range stored {
		if _, ok := shielded[rv.SourceID]; !ok {
			candidates = append(candidates, rv)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].ReviewedAt.Equal(candidates[j].ReviewedAt) {
			return candidates[i].ReviewedAt.Before(candidates[j].ReviewedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	evict := make(map[string]struct{}, excess)
	var evicted []string
	for _, rv := range candidates[:excess] {
		evict[rv.SourceID] = struct{}{}
		evicted = append(evicted, rv.SourceID)
	}
	var kept []domain.Review
	for _, rv := range stored {
		if _, gone := evict[rv.SourceID]; !gone {
			kept = append(kept, rv)
		}
	}
	f.reviews[companyID] = kept
	return evicted, nil
}

func (f *fakeRepo) ListReviews(ctx context.Context, companyID int64, limit int) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sorted := make([]domain.Review, len(f.reviews[companyID]))
	copy(sorted, f.reviews[companyID])
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ReviewedAt.Equal(sorted[j].ReviewedAt) {
			return sorted[i].ReviewedAt.After(sorted[j].ReviewedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (f *fakeRepo) UpdateReply(ctx context.Context, companyID int64, sourceID, text string, edited bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rv := range f.reviews[companyID] {
		if rv.SourceID == sourceID {
			rv.SuggestedReply = text
			rv.ReplyEdited = edited
			f.reviews[companyID][i] = rv
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeRepo) KPIs(ctx context.Context, companyID *int64) (domain.KPIs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Review
	if companyID != nil {
		all = f.reviews[*companyID]
	} else {
		for _, rs := range f.reviews {
			all = append(all, rs...)
		}
	}
	var k domain.KPIs
	var sum int
	for _, rv := range all {
		k.TotalReviews++
		sum += rv.Rating
		switch rv.Sentiment {
		case domain.SentimentPositive:
			k.SentimentMix.Positive++
		case domain.SentimentNegative:
			k.SentimentMix.Negative++
		default:
			k.SentimentMix.Neutral++
		}
	}
	if k.TotalReviews > 0 {
		k.AvgRating = math.Round(float64(sum)/float64(k.TotalReviews)*100) / 100
	}
	return k, nil
}

func (f *fakeRepo) Trend(ctx context.Context, companyID int64) ([]domain.TrendPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sums := make(map[string][2]int)
	for _, rv := range f.reviews[companyID] {
		p := rv.ReviewedAt.Format("2006-01")
		s := sums[p]
		sums[p] = [2]int{s[0] + rv.Rating, s[1] + 1}
	}
	var periods []string
	for p := range sums {
		periods = append(periods, p)
	}
	sort.Strings(periods)
	var out []domain.TrendPoint
	for _, p := range periods {
		s := sums[p]
		out = append(out, domain.TrendPoint{
			Period:    p,
			AvgRating: math.Round(float64(s[0])/float64(s[1])*100) / 100,
		})
	}
	return out, nil
}

// fakeCache is the teacher-style map-backed cache.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return false, nil
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeAlerts struct {
	mu     sync.Mutex
	events []domain.AlertEvent
	err    error
}

func (a *fakeAlerts) PublishAlert(ctx context.Context, ev domain.AlertEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, ev)
	return nil
}

// fakeProvider serves canned pages keyed by page token.
type fakeProvider struct {
	pages map[string]providerPage
	err   error
	calls int
}

type providerPage struct {
	records []domain.RawReview
	next    string
}

func (p *fakeProvider) FetchReviews(ctx context.Context, placeID, pageToken string, pageSize int) ([]domain.RawReview, string, error) {
	p.calls++
	if p.err != nil {
		return nil, "", p.err
	}
	pg := p.pages[pageToken]
	return pg.records, pg.next, nil
}
