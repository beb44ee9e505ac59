package domain

import "errors"

var (
	// ErrProviderUnavailable covers network failures and provider 5xx/429;
	// retryable by the scheduler.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected covers bad credentials and invalid place ids;
	// permanent, disables the company until reconfigured.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrStorageUnavailable aborts the current tick without partial writes.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidReview marks a malformed raw record; the record is skipped,
	// the rest of the batch continues.
	ErrInvalidReview = errors.New("invalid raw review")

	ErrNotFound = errors.New("not found")
)
