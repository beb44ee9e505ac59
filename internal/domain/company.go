package domain

import "time"

type Company struct {
	ID              int64
	PlaceID         string
	Name            string
	City            *string
	Active          bool
	LastFetchAt     *time.Time
	LastFetchStatus string // ok|degraded|disabled|storage_error
}

// Fetch status values recorded on a company after each pipeline run.
const (
	FetchStatusOK       = "ok"
	FetchStatusDegraded = "degraded"
	FetchStatusDisabled = "disabled"
	FetchStatusStorage  = "storage_error"
)
