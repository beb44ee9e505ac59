package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"strings"

	"reviewpulse/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func (r *Repo) UpsertCompany(ctx context.Context, c domain.Company) (int64, error) {
	res, err := r.db.ExecContext(ctx, upsertCompanySQL, c.PlaceID, c.Name, valStr(c.City), c.Active)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) SetFetchStatus(ctx context.Context, companyID int64, status string) error {
	_, err := r.db.ExecContext(ctx, setFetchStatusSQL, status, companyID)
	return err
}

func (r *Repo) SetActive(ctx context.Context, companyID int64, active bool) error {
	_, err := r.db.ExecContext(ctx, setActiveSQL, active, companyID)
	return err
}

func (r *Repo) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	c, err := scanCompany(r.db.QueryRowContext(ctx, getCompanySQL, id))
	if err == sql.ErrNoRows {
		return domain.Company{}, domain.ErrNotFound
	}
	return c, err
}

func (r *Repo) ListActiveCompanies(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.db.QueryContext(ctx, listActiveCompaniesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanCompany(row rowScanner) (domain.Company, error) {
	var c domain.Company
	var city sql.NullString
	var lastAt sql.NullTime
	var lastStatus sql.NullString
	if err := row.Scan(&c.ID, &c.PlaceID, &c.Name, &city, &c.Active, &lastAt, &lastStatus); err != nil {
		return domain.Company{}, err
	}
	if city.Valid {
		s := city.String
		c.City = &s
	}
	if lastAt.Valid {
		t := lastAt.Time
		c.LastFetchAt = &t
	}
	if lastStatus.Valid {
		c.LastFetchStatus = lastStatus.String
	}
	return c, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repo) InsertReviews(ctx context.Context, rs []domain.Review) error {
	return insertReviews(ctx, r.db, rs)
}

func insertReviews(ctx context.Context, ex execer, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*12)
	for _, rv := range rs {
		kw, _ := json.Marshal(rv.Keywords)
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			rv.CompanyID,
			rv.SourceID,
			rv.Author,
			rv.Rating,
			rv.Text,
			rv.ReviewedAt,
			rv.Sentiment,
			rv.Score,
			string(kw),
			rv.SuggestedReply,
			rv.ReplyEdited,
			rv.FetchedAt,
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	_, err := ex.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) ReviewIDs(ctx context.Context, companyID int64) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, reviewIDsSQL, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (r *Repo) CountReviews(ctx context.Context, companyID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countReviewsSQL, companyID).Scan(&n)
	return n, err
}

// AdmitBatch inserts the batch and evicts the oldest stored reviews beyond
// keep in a single transaction, returning the evicted source ids. The batch's
// own rows are excluded from eviction: even a review with an older provider
// timestamp than everything stored survives its own admission.
func (r *Repo) AdmitBatch(ctx context.Context, companyID int64, rs []domain.Review, keep int) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := insertReviews(ctx, tx, rs); err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, countReviewsSQL, companyID).Scan(&count); err != nil {
		return nil, err
	}
	excess := count - keep
	if excess <= 0 {
		return nil, tx.Commit()
	}

	q := oldestBeyondCapSQL
	args := []any{companyID}
	if len(rs) > 0 {
		ph := make([]string, len(rs))
		for i, rv := range rs {
			ph[i] = "?"
			args = append(args, rv.SourceID)
		}
		q += " AND source_id NOT IN (" + strings.Join(ph, ",") + ")"
	}
	q += oldestBeyondCapOrder
	args = append(args, excess)

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var ids []int64
	var sourceIDs []string
	for rows.Next() {
		var id int64
		var sid string
		if err := rows.Scan(&id, &sid); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		sourceIDs = append(sourceIDs, sid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, tx.Commit()
	}
	ph := make([]string, len(ids))
	delArgs := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		delArgs[i] = id
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM reviews WHERE id IN ("+strings.Join(ph, ",")+")", delArgs...); err != nil {
		return nil, err
	}
	return sourceIDs, tx.Commit()
}

func (r *Repo) ListReviews(ctx context.Context, companyID int64, limit int) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		var kw []byte
		if err := rows.Scan(
			&rv.ID,
			&rv.CompanyID,
			&rv.SourceID,
			&rv.Author,
			&rv.Rating,
			&rv.Text,
			&rv.ReviewedAt,
			&rv.Sentiment,
			&rv.Score,
			&kw,
			&rv.SuggestedReply,
			&rv.ReplyEdited,
			&rv.FetchedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(kw, &rv.Keywords)
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateReply(ctx context.Context, companyID int64, sourceID, text string, edited bool) error {
	res, err := r.db.ExecContext(ctx, updateReplySQL, text, edited, companyID, sourceID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// RowsAffected is 0 both for a missing row and an unchanged one;
		// distinguish with an existence probe.
		var one int
		err := r.db.QueryRowContext(ctx,
			"SELECT 1 FROM reviews WHERE company_id = ? AND source_id = ?", companyID, sourceID).Scan(&one)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *Repo) KPIs(ctx context.Context, companyID *int64) (domain.KPIs, error) {
	var row *sql.Row
	if companyID != nil {
		row = r.db.QueryRowContext(ctx, kpisCompanySQL, *companyID)
	} else {
		row = r.db.QueryRowContext(ctx, kpisAllSQL)
	}
	var k domain.KPIs
	var avg float64
	if err := row.Scan(&k.TotalReviews, &avg, &k.SentimentMix.Positive, &k.SentimentMix.Neutral, &k.SentimentMix.Negative); err != nil {
		return domain.KPIs{}, err
	}
	k.AvgRating = round2(avg)
	return k, nil
}

func (r *Repo) Trend(ctx context.Context, companyID int64) ([]domain.TrendPoint, error) {
	rows, err := r.db.QueryContext(ctx, trendSQL, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrendPoint
	for rows.Next() {
		var p domain.TrendPoint
		var avg float64
		if err := rows.Scan(&p.Period, &avg); err != nil {
			return nil, err
		}
		p.AvgRating = round2(avg)
		out = append(out, p)
	}
	return out, rows.Err()
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
