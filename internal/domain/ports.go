package domain

import "context"

type ReviewRepository interface {
	// Write paths
	UpsertCompany(ctx context.Context, c Company) (int64, error)
	SetFetchStatus(ctx context.Context, companyID int64, status string) error
	SetActive(ctx context.Context, companyID int64, active bool) error
	// AdmitBatch inserts the batch and evicts the oldest stored reviews
	// beyond keep in one transaction. Rows from the batch itself are never
	// eviction candidates. Returns the evicted source ids.
	AdmitBatch(ctx context.Context, companyID int64, rs []Review, keep int) ([]string, error)
	UpdateReply(ctx context.Context, companyID int64, sourceID, text string, edited bool) error

	// Read paths
	GetCompany(ctx context.Context, id int64) (Company, error)
	ListActiveCompanies(ctx context.Context) ([]Company, error)
	ReviewIDs(ctx context.Context, companyID int64) (map[string]struct{}, error)
	CountReviews(ctx context.Context, companyID int64) (int, error)
	ListReviews(ctx context.Context, companyID int64, limit int) ([]Review, error)
	KPIs(ctx context.Context, companyID *int64) (KPIs, error)
	Trend(ctx context.Context, companyID int64) ([]TrendPoint, error)
}

type ProviderClient interface {
	FetchReviews(ctx context.Context, placeID, pageToken string, pageSize int) ([]RawReview, string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// AlertPublisher receives negative-review events. Delivery is best-effort:
// a publish failure never rolls back an admitted review.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, ev AlertEvent) error
}
