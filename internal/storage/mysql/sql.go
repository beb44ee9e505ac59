package mysql

// The LAST_INSERT_ID(id) trick makes the upsert return the existing row's id
// on duplicate place_id.
const upsertCompanySQL = `
INSERT INTO companies
  (place_id, name, city, active)
VALUES
  (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id     = LAST_INSERT_ID(id),
  name   = VALUES(name),
  city   = VALUES(city),
  active = VALUES(active),
  updated_at = CURRENT_TIMESTAMP
`

const setFetchStatusSQL = `
UPDATE companies
SET last_fetch_status = ?, last_fetch_at = CURRENT_TIMESTAMP
WHERE id = ?
`

const setActiveSQL = `UPDATE companies SET active = ? WHERE id = ?`

const getCompanySQL = `
SELECT id, place_id, name, city, active, last_fetch_at, last_fetch_status
FROM companies
WHERE id = ?
`

const listActiveCompaniesSQL = `
SELECT id, place_id, name, city, active, last_fetch_at, last_fetch_status
FROM companies
WHERE active = 1
ORDER BY id
`

// Note: the text column name is reserved; keep it backtick-quoted everywhere.
const insertReviewsPrefix = "INSERT INTO reviews\n  (company_id, source_id, author, rating, `text`, reviewed_at, sentiment, score, keywords, suggested_reply, reply_edited, fetched_at)\nVALUES "

// Re-fetching the same source id refreshes the scored fields but never
// clobbers a user-edited reply.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  author          = VALUES(author),\n" +
	"  rating          = VALUES(rating),\n" +
	"  `text`          = VALUES(`text`),\n" +
	"  reviewed_at     = VALUES(reviewed_at),\n" +
	"  sentiment       = VALUES(sentiment),\n" +
	"  score           = VALUES(score),\n" +
	"  keywords        = VALUES(keywords),\n" +
	"  suggested_reply = IF(reviews.reply_edited, reviews.suggested_reply, VALUES(suggested_reply))\n"

const reviewIDsSQL = `SELECT source_id FROM reviews WHERE company_id = ?`

const countReviewsSQL = `SELECT COUNT(*) FROM reviews WHERE company_id = ?`

// Oldest first by provider timestamp, insertion order breaking ties;
// matches the (company_id, reviewed_at) index. AdmitBatch appends a
// source_id NOT IN clause between these two fragments to shield the
// just-inserted batch from eviction.
const oldestBeyondCapSQL = `SELECT id, source_id FROM reviews WHERE company_id = ?`

const oldestBeyondCapOrder = ` ORDER BY reviewed_at ASC, id ASC LIMIT ?`

const listReviewsSQL = `
SELECT id, company_id, source_id, author, rating, ` + "`text`" + `, reviewed_at,
       sentiment, score, keywords, suggested_reply, reply_edited, fetched_at
FROM reviews
WHERE company_id = ?
ORDER BY reviewed_at DESC, id DESC
LIMIT ?
`

const updateReplySQL = `
UPDATE reviews
SET suggested_reply = ?, reply_edited = ?
WHERE company_id = ? AND source_id = ?
`

const kpisCompanySQL = `
SELECT COUNT(*),
       COALESCE(AVG(rating), 0),
       COALESCE(SUM(sentiment = 'positive'), 0),
       COALESCE(SUM(sentiment = 'neutral'), 0),
       COALESCE(SUM(sentiment = 'negative'), 0)
FROM reviews
WHERE company_id = ?
`

const kpisAllSQL = `
SELECT COUNT(*),
       COALESCE(AVG(rating), 0),
       COALESCE(SUM(sentiment = 'positive'), 0),
       COALESCE(SUM(sentiment = 'neutral'), 0),
       COALESCE(SUM(sentiment = 'negative'), 0)
FROM reviews
`

const trendSQL = `
SELECT DATE_FORMAT(reviewed_at, '%Y-%m') AS period, AVG(rating)
FROM reviews
WHERE company_id = ?
GROUP BY period
ORDER BY period
`
