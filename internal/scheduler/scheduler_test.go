package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
)

type fakeStore struct {
	readDay func(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error)
	upsert  func(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error)
}

func (f *fakeStore) ReadDay(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error) {
	return f.readDay(ctx, dayKey)
}

func (f *fakeStore) UpsertAssignment(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
	return f.upsert(ctx, dayKey, slotIndex, patch)
}

type fakeSource struct {
	candidates func(ctx context.Context) ([]models.ContentCandidate, error)
	posted     func(ctx context.Context, start, end time.Time) ([]models.PostedRecord, error)
	enrich     func(ctx context.Context, contentID int64) (*models.ContentCandidate, error)
}

func (f *fakeSource) FetchCandidates(ctx context.Context) ([]models.ContentCandidate, error) {
	return f.candidates(ctx)
}

func (f *fakeSource) FetchPostedRecords(ctx context.Context, start, end time.Time) ([]models.PostedRecord, error) {
	return f.posted(ctx, start, end)
}

func (f *fakeSource) Enrich(ctx context.Context, contentID int64) (*models.ContentCandidate, error) {
	return f.enrich(ctx, contentID)
}

const testDay = "2026-06-15"

var testLabels = []string{"07:00", "10:00", "13:00"}

func testNow() time.Time {
	return time.Date(2026, 6, 15, 5, 0, 0, 0, time.UTC)
}

func newTestEngine(store *fakeStore, source *fakeSource) *Engine {
	return NewEngine(store, source, logging.NewLogger(), Options{
		Location:   time.UTC,
		SlotLabels: testLabels,
		Now:        testNow,
	})
}

func emptyDay(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error) {
	return nil, nil
}

func noEnrich(ctx context.Context, contentID int64) (*models.ContentCandidate, error) {
	return nil, errors.New("not wired in this test")
}

func TestForecastFillsEmptyDay(t *testing.T) {
	approved := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	pool := []models.ContentCandidate{
		{ID: 1, Platform: "reddit", ContentType: "image", ConfidenceScore: 0.9, ApprovedAt: approved},
		{ID: 2, Platform: "imgur", ContentType: "gif", ConfidenceScore: 0.8, ApprovedAt: approved},
		{ID: 3, Platform: "pixabay", ContentType: "image", ConfidenceScore: 0.7, ApprovedAt: approved},
	}
	enrichByID := map[int64]models.ContentCandidate{1: pool[0], 2: pool[1], 3: pool[2]}

	var upserts []models.AssignmentPatch
	store := &fakeStore{
		readDay: emptyDay,
		upsert: func(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
			if dayKey != testDay {
				t.Fatalf("unexpected day key %s", dayKey)
			}
			upserts = append(upserts, patch)
			return models.ActionCreated, nil
		},
	}
	source := &fakeSource{
		candidates: func(ctx context.Context) ([]models.ContentCandidate, error) { return pool, nil },
		enrich: func(ctx context.Context, contentID int64) (*models.ContentCandidate, error) {
			c := enrichByID[contentID]
			return &c, nil
		},
	}

	result, err := newTestEngine(store, source).Forecast(context.Background(), testDay)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("expected a run id")
	}
	if len(upserts) != 3 {
		t.Fatalf("expected 3 upserts, got %d", len(upserts))
	}
	if len(result.Slots) != 3 {
		t.Fatalf("expected 3 slot views, got %d", len(result.Slots))
	}
	for i, view := range result.Slots {
		if view.Content == nil {
			t.Fatalf("slot %d has no content", i)
		}
		if view.Status != models.StatusUpcoming {
			t.Fatalf("slot %d status %s, want upcoming", i, view.Status)
		}
	}
	if result.Summary.Upcoming != 3 {
		t.Fatalf("expected 3 upcoming, got %+v", result.Summary)
	}
	if result.Summary.DiversityScore != 100 {
		t.Fatalf("expected diversity 100 for 3 platforms and 2 types, got %d", result.Summary.DiversityScore)
	}
}

func TestForecastSkipsCommittedSlots(t *testing.T) {
	committedID := int64(99)
	existing := []models.ScheduleAssignment{{
		DayKey:           testDay,
		SlotIndex:        0,
		ContentID:        &committedID,
		Platform:         "tumblr",
		ContentType:      "image",
		ScheduledInstant: time.Date(2026, 6, 15, 7, 0, 0, 0, time.UTC),
		Status:           models.StatusUpcoming,
	}}
	pool := []models.ContentCandidate{
		{ID: 1, Platform: "reddit", ContentType: "image", ConfidenceScore: 0.9},
	}

	var upsertedSlots []int
	store := &fakeStore{
		readDay: func(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error) {
			return existing, nil
		},
		upsert: func(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
			if slotIndex == 0 {
				t.Fatal("committed slot 0 must not be rewritten")
			}
			upsertedSlots = append(upsertedSlots, slotIndex)
			return models.ActionCreated, nil
		},
	}
	source := &fakeSource{
		candidates: func(ctx context.Context) ([]models.ContentCandidate, error) { return pool, nil },
		enrich:     noEnrich,
	}

	result, err := newTestEngine(store, source).Forecast(context.Background(), testDay)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(upsertedSlots) != 2 {
		t.Fatalf("expected slots 1 and 2 upserted, got %v", upsertedSlots)
	}
	// Committed slot keeps its identity even though enrichment failed.
	if result.Slots[0].Content == nil || result.Slots[0].Content.ID != committedID {
		t.Fatalf("slot 0 lost its committed content: %+v", result.Slots[0])
	}
	if result.Slots[0].Content.Platform != "tumblr" {
		t.Fatalf("fallback enrichment should carry assignment platform, got %q", result.Slots[0].Content.Platform)
	}
}

func TestForecastSummaryMatchesSlotViewStatuses(t *testing.T) {
	// Slot 0 is committed but unposted and its instant has passed; the
	// stored row still says upcoming. Summary and slot view must agree
	// that it is missed.
	committedID := int64(3)
	existing := []models.ScheduleAssignment{{
		DayKey:           testDay,
		SlotIndex:        0,
		ContentID:        &committedID,
		Platform:         "reddit",
		ContentType:      "image",
		ScheduledInstant: time.Date(2026, 6, 15, 7, 0, 0, 0, time.UTC),
		Status:           models.StatusUpcoming,
	}}

	store := &fakeStore{
		readDay: func(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error) {
			return existing, nil
		},
		upsert: func(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
			return models.ActionCreated, nil
		},
	}
	source := &fakeSource{
		candidates: func(ctx context.Context) ([]models.ContentCandidate, error) { return nil, nil },
		enrich:     noEnrich,
	}

	engine := NewEngine(store, source, logging.NewLogger(), Options{
		Location:   time.UTC,
		SlotLabels: testLabels,
		Now:        func() time.Time { return time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC) },
	})

	result, err := engine.Forecast(context.Background(), testDay)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if result.Slots[0].Status != models.StatusMissed {
		t.Fatalf("slot 0 view should be missed, got %s", result.Slots[0].Status)
	}
	if result.Summary.Missed != 1 || result.Summary.Upcoming != 2 {
		t.Fatalf("summary must count slot 0 as missed: %+v", result.Summary)
	}
}

func TestForecastAbortsOnPersistenceFailure(t *testing.T) {
	store := &fakeStore{
		readDay: emptyDay,
		upsert: func(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
			return "", models.NewPersistenceError(dayKey, slotIndex, errors.New("disk on fire"))
		},
	}
	source := &fakeSource{
		candidates: func(ctx context.Context) ([]models.ContentCandidate, error) {
			return []models.ContentCandidate{{ID: 1, Platform: "reddit", ContentType: "image"}}, nil
		},
		enrich: noEnrich,
	}

	_, err := newTestEngine(store, source).Forecast(context.Background(), testDay)
	if err == nil {
		t.Fatal("expected forecast to abort")
	}
	var pErr *models.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PersistenceError, got %T: %v", err, err)
	}
}

func TestReconcileDryRunWritesNothing(t *testing.T) {
	committedID := int64(7)
	existing := []models.ScheduleAssignment{{
		DayKey:           testDay,
		SlotIndex:        1,
		ContentID:        &committedID,
		Platform:         "reddit",
		ContentType:      "image",
		ScheduledInstant: time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC),
		Status:           models.StatusUpcoming,
	}}
	posted := []models.PostedRecord{{
		ContentID: 7,
		Platform:  "reddit",
		PostedAt:  time.Date(2026, 6, 15, 10, 12, 0, 0, time.UTC),
	}}

	store := &fakeStore{
		readDay: func(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error) {
			return existing, nil
		},
		upsert: func(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
			t.Fatal("dry run must not write")
			return "", nil
		},
	}
	source := &fakeSource{
		posted: func(ctx context.Context, start, end time.Time) ([]models.PostedRecord, error) {
			return posted, nil
		},
		enrich: noEnrich,
	}

	report, err := newTestEngine(store, source).Reconcile(context.Background(), testDay, false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Mode != models.ModeDryRun {
		t.Fatalf("expected dry run mode, got %s", report.Mode)
	}
	if report.Note == "" {
		t.Fatal("dry run report should carry a note")
	}
	if report.MatchedExact != 1 || report.UpdatesApplied != 0 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	// The record's content id is already committed to slot 1, so it is
	// a confirmation, not an orphan.
	if report.TotalOrphans != 0 {
		t.Fatalf("expected 0 orphans, got %d", report.TotalOrphans)
	}
	if len(report.Details) != 1 || report.Details[0].Decision != models.DecisionExactContentID {
		t.Fatalf("unexpected details: %+v", report.Details)
	}
}

func TestReconcileWriteAppliesPatches(t *testing.T) {
	// Empty day plus one orphan record: the nearest empty slot adopts it.
	posted := []models.PostedRecord{{
		ContentID:   42,
		Platform:    "imgur",
		ContentType: "gif",
		PostedAt:    time.Date(2026, 6, 15, 10, 5, 0, 0, time.UTC),
	}}

	var applied []models.AssignmentPatch
	var appliedSlots []int
	store := &fakeStore{
		readDay: emptyDay,
		upsert: func(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
			applied = append(applied, patch)
			appliedSlots = append(appliedSlots, slotIndex)
			return models.ActionUpdated, nil
		},
	}
	source := &fakeSource{
		posted: func(ctx context.Context, start, end time.Time) ([]models.PostedRecord, error) {
			return posted, nil
		},
		enrich: noEnrich,
	}

	report, err := newTestEngine(store, source).Reconcile(context.Background(), testDay, true)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Mode != models.ModeWrite {
		t.Fatalf("expected write mode, got %s", report.Mode)
	}
	if report.MatchedPlatform != 1 || report.UpdatesApplied != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.TotalOrphans != 1 {
		t.Fatalf("record with no assignment is an orphan, got %d", report.TotalOrphans)
	}
	if len(applied) != 1 || appliedSlots[0] != 1 {
		t.Fatalf("expected one patch on slot 1, got slots %v", appliedSlots)
	}
	patch := applied[0]
	if patch.ContentID == nil || *patch.ContentID != 42 {
		t.Fatalf("patch should carry the record's content id: %+v", patch)
	}
	if patch.Status != models.StatusPosted || patch.ActualPostedInstant == nil {
		t.Fatalf("patch should stamp the posted instant: %+v", patch)
	}
	if report.Details[0].Action != models.ActionUpdated {
		t.Fatalf("detail should record the store action: %+v", report.Details[0])
	}
}

func TestReconcileRecordsUpsertFailureAndContinues(t *testing.T) {
	posted := []models.PostedRecord{
		{ContentID: 1, Platform: "reddit", PostedAt: time.Date(2026, 6, 15, 7, 2, 0, 0, time.UTC)},
		{ContentID: 2, Platform: "imgur", PostedAt: time.Date(2026, 6, 15, 10, 2, 0, 0, time.UTC)},
	}

	calls := 0
	store := &fakeStore{
		readDay: emptyDay,
		upsert: func(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error) {
			calls++
			if calls == 1 {
				return "", models.NewPersistenceError(dayKey, slotIndex, errors.New("deadlock detected"))
			}
			return models.ActionUpdated, nil
		},
	}
	source := &fakeSource{
		posted: func(ctx context.Context, start, end time.Time) ([]models.PostedRecord, error) {
			return posted, nil
		},
		enrich: noEnrich,
	}

	report, err := newTestEngine(store, source).Reconcile(context.Background(), testDay, true)
	if err != nil {
		t.Fatalf("one failed upsert must not abort the run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both records attempted, got %d calls", calls)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %v", report.Errors)
	}
	if report.Details[0].Error == "" || report.Details[1].Action != models.ActionUpdated {
		t.Fatalf("unexpected details: %+v", report.Details)
	}
	if report.UpdatesApplied != 1 {
		t.Fatalf("expected 1 applied update, got %d", report.UpdatesApplied)
	}
}

func TestDayViewComposesStoredSnapshot(t *testing.T) {
	committedID := int64(5)
	actual := time.Date(2026, 6, 15, 7, 3, 0, 0, time.UTC)
	existing := []models.ScheduleAssignment{{
		DayKey:              testDay,
		SlotIndex:           0,
		ContentID:           &committedID,
		Platform:            "reddit",
		ContentType:         "image",
		ScheduledInstant:    time.Date(2026, 6, 15, 7, 0, 0, 0, time.UTC),
		ActualPostedInstant: &actual,
		Status:              models.StatusPosted,
	}}

	store := &fakeStore{
		readDay: func(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error) {
			return existing, nil
		},
	}
	source := &fakeSource{enrich: noEnrich}

	// Fix now past slot 0 but before slots 1 and 2.
	engine := NewEngine(store, source, logging.NewLogger(), Options{
		Location:   time.UTC,
		SlotLabels: testLabels,
		Now:        func() time.Time { return time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC) },
	})

	view, err := engine.DayView(context.Background(), testDay)
	if err != nil {
		t.Fatalf("DayView: %v", err)
	}
	if len(view.Slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(view.Slots))
	}
	if view.Slots[0].Status != models.StatusPosted {
		t.Fatalf("slot 0 should be posted, got %s", view.Slots[0].Status)
	}
	if view.Slots[1].Status != models.StatusUpcoming || view.Slots[2].Status != models.StatusUpcoming {
		t.Fatalf("unplanned future slots should be upcoming: %+v", view.Slots)
	}
	if view.Slots[1].Content != nil {
		t.Fatalf("unplanned slot should have no content: %+v", view.Slots[1])
	}
	if view.Summary.Posted != 1 || view.Summary.Upcoming != 2 {
		t.Fatalf("unexpected summary: %+v", view.Summary)
	}
}
