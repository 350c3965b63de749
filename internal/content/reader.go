// Package content provides read-only views over the content pipeline
// and publishing collaborators.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
)

// ErrNotFound is returned when a content item does not exist.
var ErrNotFound = errors.New("content item not found")

// Reader fetches candidates and posted records from the shared content
// database. It never writes.
type Reader struct {
	db     *sql.DB
	logger logging.Logger
}

// NewReader creates a content reader over the given connection.
func NewReader(db *sql.DB, logger logging.Logger) *Reader {
	return &Reader{db: db, logger: logger}
}

// FetchCandidates returns the approved, not-yet-posted pool ordered by
// confidence descending with oldest-approved-first as tiebreak, so low
// scorers are not starved forever.
func (r *Reader) FetchCandidates(ctx context.Context) ([]models.ContentCandidate, error) {
	query := `
		SELECT id, platform, content_type, COALESCE(author, ''), COALESCE(title_snippet, ''), confidence_score, approved_at
		FROM content_items
		WHERE is_approved = TRUE AND is_posted = FALSE
		ORDER BY confidence_score DESC, approved_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, models.NewDataSourceError("candidate pool", err)
	}
	defer rows.Close()

	var pool []models.ContentCandidate
	for rows.Next() {
		var c models.ContentCandidate
		if err := rows.Scan(&c.ID, &c.Platform, &c.ContentType, &c.Author, &c.TitleSnippet, &c.ConfidenceScore, &c.ApprovedAt); err != nil {
			return nil, models.NewDataSourceError("candidate pool", err)
		}
		pool = append(pool, c)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDataSourceError("candidate pool", err)
	}

	r.logger.WithField("candidates", len(pool)).Debug("Fetched candidate pool")
	return pool, nil
}

// FetchPostedRecords returns ground-truth published records within the
// half-open [start, end) window.
func (r *Reader) FetchPostedRecords(ctx context.Context, start, end time.Time) ([]models.PostedRecord, error) {
	query := `
		SELECT content_id, platform, COALESCE(content_type, ''), posted_at
		FROM posted_content
		WHERE posted_at >= $1 AND posted_at < $2
		ORDER BY posted_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, models.NewDataSourceError("posted records", err)
	}
	defer rows.Close()

	var records []models.PostedRecord
	for rows.Next() {
		var rec models.PostedRecord
		if err := rows.Scan(&rec.ContentID, &rec.Platform, &rec.ContentType, &rec.PostedAt); err != nil {
			return nil, models.NewDataSourceError("posted records", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDataSourceError("posted records", err)
	}

	r.logger.WithFields(logging.Fields{
		"records":      len(records),
		"window_start": start,
		"window_end":   end,
	}).Debug("Fetched posted records")
	return records, nil
}

// Enrich loads the full candidate-shaped record for a content id. Used
// by the orchestrator to attach detail to committed slots.
func (r *Reader) Enrich(ctx context.Context, contentID int64) (*models.ContentCandidate, error) {
	query := `
		SELECT id, platform, content_type, COALESCE(author, ''), COALESCE(title_snippet, ''), confidence_score, COALESCE(approved_at, NOW())
		FROM content_items
		WHERE id = $1
	`
	var c models.ContentCandidate
	err := r.db.QueryRowContext(ctx, query, contentID).Scan(
		&c.ID, &c.Platform, &c.ContentType, &c.Author, &c.TitleSnippet, &c.ConfidenceScore, &c.ApprovedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("enrich content %d: %w", contentID, ErrNotFound)
	}
	if err != nil {
		return nil, models.NewDataSourceError("content enrichment", err)
	}
	return &c, nil
}
