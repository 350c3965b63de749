package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
)

func newMockReader(t *testing.T) (*Reader, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return NewReader(db, logging.NewLogger()), mock, func() { db.Close() }
}

func TestFetchCandidatesOrdering(t *testing.T) {
	reader, mock, closeDB := newMockReader(t)
	defer closeDB()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "platform", "content_type", "author", "title_snippet", "confidence_score", "approved_at"}).
		AddRow(1, "reddit", "image", "u/dog", "glizzy supreme", 0.9, now.Add(-2*time.Hour)).
		AddRow(3, "imgur", "gif", "", "spinning dog", 0.7, now.Add(-time.Hour))

	mock.ExpectQuery(`FROM content_items\s+WHERE is_approved = TRUE AND is_posted = FALSE\s+ORDER BY confidence_score DESC, approved_at ASC`).
		WillReturnRows(rows)

	pool, err := reader.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(pool))
	}
	if pool[0].ID != 1 || pool[0].Platform != "reddit" {
		t.Fatalf("unexpected head of pool: %+v", pool[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFetchCandidatesQueryFailureIsDataSourceError(t *testing.T) {
	reader, mock, closeDB := newMockReader(t)
	defer closeDB()

	mock.ExpectQuery(`FROM content_items`).WillReturnError(errors.New("connection refused"))

	_, err := reader.FetchCandidates(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var dsErr *models.DataSourceError
	if !errors.As(err, &dsErr) {
		t.Fatalf("expected DataSourceError, got %T: %v", err, err)
	}
}

func TestFetchPostedRecordsWindow(t *testing.T) {
	reader, mock, closeDB := newMockReader(t)
	defer closeDB()

	start := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	rows := sqlmock.NewRows([]string{"content_id", "platform", "content_type", "posted_at"}).
		AddRow(100, "reddit", "image", start.Add(7*time.Hour))

	mock.ExpectQuery(`FROM posted_content\s+WHERE posted_at >= \$1 AND posted_at < \$2`).
		WithArgs(start, end).
		WillReturnRows(rows)

	records, err := reader.FetchPostedRecords(context.Background(), start, end)
	if err != nil {
		t.Fatalf("FetchPostedRecords: %v", err)
	}
	if len(records) != 1 || records[0].ContentID != 100 {
		t.Fatalf("unexpected records: %+v", records)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnrichNotFound(t *testing.T) {
	reader, mock, closeDB := newMockReader(t)
	defer closeDB()

	mock.ExpectQuery(`FROM content_items\s+WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "platform", "content_type", "author", "title_snippet", "confidence_score", "approved_at"}))

	_, err := reader.Enrich(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
