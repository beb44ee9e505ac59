package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"reviewpulse/internal/adapters/observability"
	"reviewpulse/internal/domain"
)

// Client fetches public reviews from the places provider, one page per call.
// It classifies failures into the pipeline's error taxonomy; retry and
// backoff are the scheduler's job, not the client's.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Wire shapes of the provider's review listing endpoint.
type reviewPayload struct {
	Status string `json:"status"`
	Result struct {
		Reviews []rawEntry `json:"reviews"`
	} `json:"result"`
	NextPageToken string `json:"next_page_token"`
}

type rawEntry struct {
	ID         string  `json:"review_id"`
	AuthorName string  `json:"author_name"`
	Rating     float64 `json:"rating"`
	Text       string  `json:"text"`
	Time       int64   `json:"time"` // unix seconds
}

func (c *Client) FetchReviews(ctx context.Context, placeID, pageToken string, pageSize int) ([]domain.RawReview, string, error) {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return nil, "", err
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "reviews")
	q.Set("key", c.key)
	if pageSize > 0 {
		q.Set("pagesize", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		q.Set("pagetoken", pageToken)
	}
	u := c.base + "/details/json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "reviewpulse/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		observability.ObserveExternal("places", "details", 0, time.Since(start))
		return nil, "", fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("places", "details", resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return nil, "", fmt.Errorf("%w: status %d", domain.ErrProviderRejected, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, "", fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(b))
	}

	var p reviewPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, "", fmt.Errorf("%w: decode: %v", domain.ErrProviderUnavailable, err)
	}

	// The provider reports key/place problems in-band with a 200.
	switch p.Status {
	case "", "OK", "ZERO_RESULTS":
	case "REQUEST_DENIED", "INVALID_REQUEST", "NOT_FOUND":
		return nil, "", fmt.Errorf("%w: %s", domain.ErrProviderRejected, p.Status)
	default:
		return nil, "", fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, p.Status)
	}

	out := make([]domain.RawReview, 0, len(p.Result.Reviews))
	for _, e := range p.Result.Reviews {
		out = append(out, domain.RawReview{
			SourceID:   e.ID,
			Author:     e.AuthorName,
			Rating:     int(e.Rating),
			Text:       e.Text,
			ReviewedAt: time.Unix(e.Time, 0).UTC(),
		})
	}
	return out, p.NextPageToken, nil
}
