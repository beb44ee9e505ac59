package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"reviewpulse/internal/domain"
	"reviewpulse/internal/scheduler"
)

// ---- fakes ----

type stubRepo struct {
	mu        sync.Mutex
	companies []domain.Company
	statuses  map[int64]string
	disabled  map[int64]bool
}

func newStubRepo(cs ...domain.Company) *stubRepo {
	return &stubRepo{companies: cs, statuses: map[int64]string{}, disabled: map[int64]bool{}}
}

func (s *stubRepo) ListActiveCompanies(ctx context.Context) ([]domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Company(nil), s.companies...), nil
}

func (s *stubRepo) SetFetchStatus(ctx context.Context, companyID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[companyID] = status
	return nil
}

func (s *stubRepo) SetActive(ctx context.Context, companyID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[companyID] = !active
	return nil
}

func (s *stubRepo) status(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id]
}

// unused interface surface
func (s *stubRepo) UpsertCompany(ctx context.Context, c domain.Company) (int64, error) {
	return 0, nil
}
func (s *stubRepo) AdmitBatch(ctx context.Context, companyID int64, rs []domain.Review, keep int) ([]string, error) {
	return nil, nil
}
func (s *stubRepo) UpdateReply(ctx context.Context, companyID int64, sourceID, text string, edited bool) error {
	return nil
}
func (s *stubRepo) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	return domain.Company{}, domain.ErrNotFound
}
func (s *stubRepo) ReviewIDs(ctx context.Context, companyID int64) (map[string]struct{}, error) {
	return nil, nil
}
func (s *stubRepo) CountReviews(ctx context.Context, companyID int64) (int, error) { return 0, nil }
func (s *stubRepo) ListReviews(ctx context.Context, companyID int64, limit int) ([]domain.Review, error) {
	return nil, nil
}
func (s *stubRepo) KPIs(ctx context.Context, companyID *int64) (domain.KPIs, error) {
	return domain.KPIs{}, nil
}
func (s *stubRepo) Trend(ctx context.Context, companyID int64) ([]domain.TrendPoint, error) {
	return nil, nil
}

// stubIngestor fails per-company according to errs, counting attempts.
type stubIngestor struct {
	mu       sync.Mutex
	errs     map[int64]error
	attempts map[int64]int
	done     map[int64]time.Time
}

func newStubIngestor(errs map[int64]error) *stubIngestor {
	return &stubIngestor{errs: errs, attempts: map[int64]int{}, done: map[int64]time.Time{}}
}

func (f *stubIngestor) IngestCompany(ctx context.Context, c domain.Company) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[c.ID]++
	if err := f.errs[c.ID]; err != nil {
		return 0, err
	}
	f.done[c.ID] = time.Now()
	return 1, nil
}

// ---- tests ----

func TestBackoff_IncreasingAndCapped(t *testing.T) {
	base := 100 * time.Millisecond
	cap := 10 * time.Second
	prev := time.Duration(0)
	for i := 0; i < 4; i++ {
		d := scheduler.Backoff(i, base, cap)
		min := base << uint(i)
		if d < min {
			t.Fatalf("attempt %d: delay %v below base %v", i, d, min)
		}
		if d > min+min/2 {
			t.Fatalf("attempt %d: delay %v beyond jitter bound", i, d)
		}
		// max jitter is +50%, so consecutive delays are strictly increasing
		if d <= prev {
			t.Fatalf("attempt %d: delay %v not greater than previous %v", i, d, prev)
		}
		prev = d
	}

	if d := scheduler.Backoff(30, base, cap); d > cap+cap/2 {
		t.Fatalf("delay %v exceeds cap %v (+jitter)", d, cap)
	}
}

func TestRunner_TransientFailureRetriesThenDegrades(t *testing.T) {
	repo := newStubRepo(domain.Company{ID: 1, Active: true})
	ing := newStubIngestor(map[int64]error{1: domain.ErrProviderUnavailable})
	r := scheduler.NewRunner(ing, repo, 2, 3, time.Millisecond, 10*time.Millisecond)

	r.Tick(context.Background())

	if got := ing.attempts[1]; got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if repo.status(1) != domain.FetchStatusDegraded {
		t.Fatalf("expected degraded, got %q", repo.status(1))
	}
	if repo.disabled[1] {
		t.Fatalf("transient failure must not disable the company")
	}
}

func TestRunner_PermanentFailureDisablesWithoutRetry(t *testing.T) {
	repo := newStubRepo(domain.Company{ID: 1, Active: true})
	ing := newStubIngestor(map[int64]error{1: domain.ErrProviderRejected})
	r := scheduler.NewRunner(ing, repo, 2, 3, time.Millisecond, 10*time.Millisecond)

	r.Tick(context.Background())

	if got := ing.attempts[1]; got != 1 {
		t.Fatalf("permanent failure must not be retried, got %d attempts", got)
	}
	if !repo.disabled[1] {
		t.Fatalf("expected company disabled")
	}
	if repo.status(1) != domain.FetchStatusDisabled {
		t.Fatalf("expected disabled status, got %q", repo.status(1))
	}
}

func TestRunner_StorageFailureAbortsWithoutRetry(t *testing.T) {
	repo := newStubRepo(domain.Company{ID: 1, Active: true})
	ing := newStubIngestor(map[int64]error{1: domain.ErrStorageUnavailable})
	r := scheduler.NewRunner(ing, repo, 2, 3, time.Millisecond, 10*time.Millisecond)

	r.Tick(context.Background())

	if got := ing.attempts[1]; got != 1 {
		t.Fatalf("storage failure aborts the tick, got %d attempts", got)
	}
	if repo.disabled[1] {
		t.Fatalf("storage failure must not disable the company")
	}
	if repo.status(1) != domain.FetchStatusStorage {
		t.Fatalf("expected storage status, got %q", repo.status(1))
	}
}

func TestRunner_FailingCompanyDoesNotBlockOthers(t *testing.T) {
	repo := newStubRepo(
		domain.Company{ID: 1, Active: true},
		domain.Company{ID: 2, Active: true},
	)
	ing := newStubIngestor(map[int64]error{1: domain.ErrProviderUnavailable})
	// company 1 burns ~3*25ms in backoff; company 2 must finish long before
	r := scheduler.NewRunner(ing, repo, 2, 4, 25*time.Millisecond, time.Second)

	start := time.Now()
	r.Tick(context.Background())

	if ing.attempts[2] != 1 {
		t.Fatalf("healthy company not processed: %d attempts", ing.attempts[2])
	}
	healthyDone := ing.done[2]
	if healthyDone.IsZero() {
		t.Fatalf("healthy company never completed")
	}
	if healthyDone.Sub(start) > 20*time.Millisecond {
		t.Fatalf("healthy company delayed by failing one: %v", healthyDone.Sub(start))
	}
	if repo.status(1) != domain.FetchStatusDegraded {
		t.Fatalf("failing company should end degraded, got %q", repo.status(1))
	}
}

func TestRunner_CancellableDuringBackoff(t *testing.T) {
	repo := newStubRepo(domain.Company{ID: 1, Active: true})
	ing := newStubIngestor(map[int64]error{1: domain.ErrProviderUnavailable})
	r := scheduler.NewRunner(ing, repo, 1, 5, time.Second, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	donec := make(chan struct{})
	go func() {
		r.Tick(ctx)
		close(donec)
	}()

	time.Sleep(50 * time.Millisecond) // let the first attempt fail into BackoffWait
	cancel()

	select {
	case <-donec:
	case <-time.After(time.Second):
		t.Fatalf("tick did not stop on cancellation during backoff")
	}
	if ing.attempts[1] != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", ing.attempts[1])
	}
}
