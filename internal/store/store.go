// Package store persists schedule assignments. It is the only
// component with an atomicity contract: concurrent callers addressing
// the same (day_key, slot_index) are serialized by a row lock, so two
// racing upserts on an empty slot cannot both win with different
// content.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
)

// Store reads and writes schedule assignments.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// NewStore creates a schedule store over the given connection.
func NewStore(db *sql.DB, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const assignmentColumns = `day_key, slot_index, content_id, platform, content_type, source, title_snippet, scheduled_instant, actual_posted_instant, status, rationale, created_at, updated_at`

// ReadDay returns all assignments for a day ordered by slot index.
func (s *Store) ReadDay(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM schedule_assignments
		WHERE day_key = $1
		ORDER BY slot_index ASC
	`
	rows, err := s.db.QueryContext(ctx, query, dayKey)
	if err != nil {
		return nil, models.NewDataSourceError("schedule store", err)
	}
	defer rows.Close()

	var assignments []models.ScheduleAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, models.NewDataSourceError("schedule store", err)
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDataSourceError("schedule store", err)
	}
	return assignments, nil
}

// UpsertAssignment writes a patch onto a (day_key, slot_index) row
// inside a single transaction and reports what happened:
//
//   - created: no row existed; the patch became the row
//   - preserved: the row already carried a content id, which survives;
//     only the actual posted instant and status were stamped
//   - updated: the row existed without content and took the patch
//
// The read and conditional write share one transaction with a row
// lock, which is the engine's only synchronization point.
func (s *Store) UpsertAssignment(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", models.NewPersistenceError(dayKey, slotIndex, err)
	}
	defer func() { _ = tx.Rollback() }()

	action, err := s.upsertInTx(ctx, tx, dayKey, slotIndex, patch)
	if err != nil {
		return "", models.NewPersistenceError(dayKey, slotIndex, err)
	}

	if err := tx.Commit(); err != nil {
		return "", models.NewPersistenceError(dayKey, slotIndex, err)
	}

	s.logger.WithFields(logging.Fields{
		"day_key":    dayKey,
		"slot_index": slotIndex,
		"action":     action,
	}).Debug("Schedule upsert")
	return action, nil
}

func (s *Store) upsertInTx(ctx context.Context, tx *sql.Tx, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
	current, err := lockCurrentRow(ctx, tx, dayKey, slotIndex)
	if err != nil {
		return "", err
	}

	if current == nil {
		inserted, err := insertAssignment(ctx, tx, dayKey, slotIndex, patch)
		if err != nil {
			return "", err
		}
		if inserted {
			return models.ActionCreated, nil
		}
		// Lost the insert race: another caller created the row between
		// our read and write. Re-read under lock and patch that row.
		current, err = lockCurrentRow(ctx, tx, dayKey, slotIndex)
		if err != nil {
			return "", err
		}
		if current == nil {
			return "", errors.New("row vanished after conflicting insert")
		}
	}

	if current.contentID.Valid {
		if err := stampActual(ctx, tx, dayKey, slotIndex, patch.ActualPostedInstant); err != nil {
			return "", err
		}
		return models.ActionPreserved, nil
	}

	if err := updateAssignment(ctx, tx, dayKey, slotIndex, patch); err != nil {
		return "", err
	}
	return models.ActionUpdated, nil
}

type currentRow struct {
	contentID sql.NullInt64
}

func lockCurrentRow(ctx context.Context, tx *sql.Tx, dayKey string, slotIndex int) (*currentRow, error) {
	var row currentRow
	err := tx.QueryRowContext(ctx, `
		SELECT content_id
		FROM schedule_assignments
		WHERE day_key = $1 AND slot_index = $2
		FOR UPDATE
	`, dayKey, slotIndex).Scan(&row.contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func insertAssignment(ctx context.Context, tx *sql.Tx, dayKey string, slotIndex int, patch models.AssignmentPatch) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO schedule_assignments
			(day_key, slot_index, content_id, platform, content_type, source, title_snippet, scheduled_instant, actual_posted_instant, status, rationale, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (day_key, slot_index) DO NOTHING
	`, dayKey, slotIndex,
		nullInt64(patch.ContentID), nullString(patch.Platform), nullString(patch.ContentType),
		nullString(patch.Source), nullString(patch.TitleSnippet),
		patch.ScheduledInstant, nullTime(patch.ActualPostedInstant), patch.Status, patch.Rationale)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// stampActual is the degraded write for rows that already carry a
// content reference: only the actual posted instant and the derived
// status move, regardless of what the caller requested.
func stampActual(ctx context.Context, tx *sql.Tx, dayKey string, slotIndex int, actual *time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE schedule_assignments
		SET actual_posted_instant = COALESCE($3, actual_posted_instant),
		    status = CASE WHEN COALESCE($3, actual_posted_instant) IS NOT NULL THEN 'posted' ELSE status END,
		    updated_at = NOW()
		WHERE day_key = $1 AND slot_index = $2
	`, dayKey, slotIndex, nullTime(actual))
	return err
}

func updateAssignment(ctx context.Context, tx *sql.Tx, dayKey string, slotIndex int, patch models.AssignmentPatch) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE schedule_assignments
		SET content_id = $3,
		    platform = $4,
		    content_type = $5,
		    source = $6,
		    title_snippet = $7,
		    scheduled_instant = $8,
		    actual_posted_instant = COALESCE($9, actual_posted_instant),
		    status = $10,
		    rationale = $11,
		    updated_at = NOW()
		WHERE day_key = $1 AND slot_index = $2
	`, dayKey, slotIndex,
		nullInt64(patch.ContentID), nullString(patch.Platform), nullString(patch.ContentType),
		nullString(patch.Source), nullString(patch.TitleSnippet),
		patch.ScheduledInstant, nullTime(patch.ActualPostedInstant), patch.Status, patch.Rationale)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssignment(scanner rowScanner) (models.ScheduleAssignment, error) {
	var (
		a           models.ScheduleAssignment
		day         time.Time
		contentID   sql.NullInt64
		platform    sql.NullString
		contentType sql.NullString
		source      sql.NullString
		snippet     sql.NullString
		actual      sql.NullTime
	)
	err := scanner.Scan(&day, &a.SlotIndex, &contentID, &platform, &contentType, &source, &snippet,
		&a.ScheduledInstant, &actual, &a.Status, &a.Rationale, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	a.DayKey = day.Format("2006-01-02")
	if contentID.Valid {
		id := contentID.Int64
		a.ContentID = &id
	}
	a.Platform = platform.String
	a.ContentType = contentType.String
	a.Source = source.String
	a.TitleSnippet = snippet.String
	if actual.Valid {
		t := actual.Time
		a.ActualPostedInstant = &t
	}
	return a, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
