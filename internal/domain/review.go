package domain

import "time"

// RawReview is one record as returned by the provider, before scoring.
type RawReview struct {
	SourceID   string
	Author     string
	Rating     int
	Text       string
	ReviewedAt time.Time
}

type Review struct {
	ID             int64
	CompanyID      int64
	SourceID       string // provider review id; unique per (company_id, source_id)
	Author         string
	Rating         int // 1..5
	Text           string
	ReviewedAt     time.Time
	Sentiment      string  // positive|neutral|negative
	Score          float64 // [0,1]
	Keywords       []string
	SuggestedReply string
	ReplyEdited    bool
	FetchedAt      time.Time
}

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

type KPIs struct {
	TotalReviews int          `json:"total_reviews"`
	AvgRating    float64      `json:"avg_rating"`
	SentimentMix SentimentMix `json:"sentiment_mix"`
}

type SentimentMix struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// TrendPoint is one calendar bucket of the rating time series.
type TrendPoint struct {
	Period    string  `json:"period"` // YYYY-MM
	AvgRating float64 `json:"avg_rating"`
}

// AlertEvent is emitted when a negative review is admitted.
type AlertEvent struct {
	CompanyID int64   `json:"company_id"`
	ReviewID  string  `json:"review_id"`
	Score     float64 `json:"score"`
}
