package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reviewpulse/internal/domain"
)

// CapacityManager enforces the per-company review cap. Admission is
// serialized per company so concurrent fetches for the same company can
// never jointly exceed the cap; different companies admit in parallel.
type CapacityManager struct {
	repo domain.ReviewRepository
	cap  int

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewCapacityManager(repo domain.ReviewRepository, cap int) *CapacityManager {
	return &CapacityManager{repo: repo, cap: cap, locks: make(map[int64]*sync.Mutex)}
}

func (m *CapacityManager) lockFor(companyID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[companyID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[companyID] = l
	}
	return l
}

// Admit inserts the batch (fetch order preserved) and evicts the oldest
// stored reviews until the company is back at the cap. A batch larger than
// the cap is trimmed to its most recent cap records before insertion. Insert
// and eviction happen in one storage transaction, and a just-admitted review
// is never an eviction candidate: only previously stored rows are evicted.
func (m *CapacityManager) Admit(ctx context.Context, companyID int64, batch []domain.Review) (admitted []domain.Review, evicted []string, err error) {
	l := m.lockFor(companyID)
	l.Lock()
	defer l.Unlock()

	admitted = batch
	if len(admitted) > m.cap {
		admitted = mostRecent(admitted, m.cap)
	}
	evicted, err = m.repo.AdmitBatch(ctx, companyID, admitted, m.cap)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: admit batch: %v", domain.ErrStorageUnavailable, err)
	}
	return admitted, evicted, nil
}

// mostRecent keeps the n most recent reviews by provider timestamp, ties
// broken by insertion order, without disturbing the batch's relative order.
func mostRecent(batch []domain.Review, n int) []domain.Review {
	idx := make([]int, len(batch))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, tb := batch[idx[a]].ReviewedAt, batch[idx[b]].ReviewedAt
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return idx[a] < idx[b]
	})
	keep := make(map[int]struct{}, n)
	for _, i := range idx[:n] {
		keep[i] = struct{}{}
	}
	out := make([]domain.Review, 0, n)
	for i, r := range batch {
		if _, ok := keep[i]; ok {
			out = append(out, r)
		}
	}
	return out
}
