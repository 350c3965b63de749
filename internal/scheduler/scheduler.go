// Package scheduler orchestrates forecast and reconcile runs over the
// planning, matching, and persistence layers.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/reconcile"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/selection"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/slots"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
)

// ScheduleStore is the persistence surface the engine drives.
type ScheduleStore interface {
	ReadDay(ctx context.Context, dayKey string) ([]models.ScheduleAssignment, error)
	UpsertAssignment(ctx context.Context, dayKey string, slotIndex int, patch models.AssignmentPatch) (string, error)
}

// ContentSource provides the candidate pool, published ground truth,
// and per-item detail.
type ContentSource interface {
	FetchCandidates(ctx context.Context) ([]models.ContentCandidate, error)
	FetchPostedRecords(ctx context.Context, start, end time.Time) ([]models.PostedRecord, error)
	Enrich(ctx context.Context, contentID int64) (*models.ContentCandidate, error)
}

// Invalidator drops a cached day view after writes touch the day.
type Invalidator interface {
	Invalidate(ctx context.Context, dayKey string)
}

// Metrics holds the engine's Prometheus instruments. A nil Metrics
// disables instrumentation.
type Metrics struct {
	ForecastRuns  *prometheus.CounterVec
	ReconcileRuns *prometheus.CounterVec
	UpsertActions *prometheus.CounterVec
	SlotsFilled   *prometheus.GaugeVec
	Diversity     *prometheus.GaugeVec
}

// Options configure an Engine.
type Options struct {
	Location   *time.Location
	SlotLabels []string
	Selection  selection.Options
	Tolerance  time.Duration
	Metrics    *Metrics
	Cache      Invalidator
	Now        func() time.Time
}

// Engine runs forecast and reconcile passes for single days.
type Engine struct {
	store     ScheduleStore
	source    ContentSource
	logger    logging.Logger
	loc       *time.Location
	labels    []string
	selOpts   selection.Options
	tolerance time.Duration
	metrics   *Metrics
	cache     Invalidator
	now       func() time.Time
}

// NewEngine creates an engine over the given store and content source.
func NewEngine(store ScheduleStore, source ContentSource, logger logging.Logger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = reconcile.DefaultTolerance
	}
	return &Engine{
		store:     store,
		source:    source,
		logger:    logger,
		loc:       opts.Location,
		labels:    opts.SlotLabels,
		selOpts:   opts.Selection,
		tolerance: opts.Tolerance,
		metrics:   opts.Metrics,
		cache:     opts.Cache,
		now:       opts.Now,
	}
}

// Forecast plans the given day and persists the plan. Slots already
// committed in the stored snapshot are left untouched; the run aborts
// on the first persistence failure so a half-written day is visible as
// an error rather than a silently partial plan.
func (e *Engine) Forecast(ctx context.Context, dayKey string) (*models.ForecastResult, error) {
	runID := uuid.NewString()
	log := e.logger.WithFields(logging.Fields{"run_id": runID, "day_key": dayKey})

	daySlots, err := slots.BuildSlots(dayKey, e.labels, e.loc)
	if err != nil {
		e.countForecast("error")
		return nil, err
	}

	existing, err := e.store.ReadDay(ctx, dayKey)
	if err != nil {
		e.countForecast("error")
		return nil, err
	}

	pool, err := e.source.FetchCandidates(ctx)
	if err != nil {
		e.countForecast("error")
		return nil, err
	}

	now := e.now()
	plan := selection.AssignDay(daySlots, existing, pool, e.selOpts, now)

	committedBefore := make(map[int]bool, len(existing))
	for i := range existing {
		if existing[i].Committed() {
			committedBefore[existing[i].SlotIndex] = true
		}
	}

	wrote := 0
	for i := range plan {
		if committedBefore[plan[i].SlotIndex] {
			continue
		}
		action, err := e.store.UpsertAssignment(ctx, dayKey, plan[i].SlotIndex, patchFromAssignment(&plan[i]))
		if err != nil {
			e.countForecast("error")
			return nil, err
		}
		e.countUpsert(action)
		wrote++
	}

	if wrote > 0 && e.cache != nil {
		e.cache.Invalidate(ctx, dayKey)
	}

	views := e.buildSlotViews(ctx, daySlots, plan, now)
	// Committed slots pass through planning with their stored status;
	// summarize over the same derived statuses the slot views show.
	summary := selection.Summarize(reclassify(plan, now), e.selOpts)
	e.gaugeDay(dayKey, plan, summary)
	e.countForecast("ok")

	log.WithFields(logging.Fields{
		"writes":    wrote,
		"diversity": summary.DiversityScore,
	}).Info("Forecast run complete")

	return &models.ForecastResult{
		RunID:   runID,
		Date:    dayKey,
		Slots:   views,
		Summary: summary,
	}, nil
}

// Reconcile aligns the day's published ground truth with its stored
// assignments. In dry-run mode the report carries the full decision
// trail with zero writes; in write mode each matched decision is
// applied independently, so one failed upsert is recorded and the run
// continues.
func (e *Engine) Reconcile(ctx context.Context, dayKey string, write bool) (*models.ReconcileReport, error) {
	runID := uuid.NewString()
	mode := models.ModeDryRun
	if write {
		mode = models.ModeWrite
	}
	log := e.logger.WithFields(logging.Fields{"run_id": runID, "day_key": dayKey, "mode": mode})

	daySlots, err := slots.BuildSlots(dayKey, e.labels, e.loc)
	if err != nil {
		e.countReconcile(mode, "error")
		return nil, err
	}

	existing, err := e.store.ReadDay(ctx, dayKey)
	if err != nil {
		e.countReconcile(mode, "error")
		return nil, err
	}

	start, end, err := slots.DayWindow(dayKey, e.loc)
	if err != nil {
		e.countReconcile(mode, "error")
		return nil, err
	}

	posted, err := e.source.FetchPostedRecords(ctx, start, end)
	if err != nil {
		e.countReconcile(mode, "error")
		return nil, err
	}

	existingBySlot := make(map[int]*models.ScheduleAssignment, len(existing))
	for i := range existing {
		existingBySlot[existing[i].SlotIndex] = &existing[i]
	}

	decisions := reconcile.MatchDay(daySlots, posted, existing, e.tolerance)

	// Orphans are records no assignment references yet; records whose
	// content id is already committed are just confirmations.
	committedIDs := make(map[int64]bool, len(existing))
	for i := range existing {
		if existing[i].Committed() {
			committedIDs[*existing[i].ContentID] = true
		}
	}
	orphans := 0
	for _, record := range posted {
		if !committedIDs[record.ContentID] {
			orphans++
		}
	}

	report := &models.ReconcileReport{
		RunID:        runID,
		Date:         dayKey,
		Mode:         mode,
		TotalOrphans: orphans,
		Details:      make([]models.ReconcileDetail, 0, len(decisions)),
		Errors:       make([]string, 0),
	}
	if !write {
		report.Note = "dry run; no writes applied"
	}

	wrote := 0
	for _, decision := range decisions {
		detail := models.ReconcileDetail{MatchDecision: decision}

		switch decision.Decision {
		case models.DecisionExactContentID:
			report.MatchedExact++
		case models.DecisionPlatformNearest:
			report.MatchedPlatform++
		default:
			report.NoMatch++
		}

		if write && decision.SlotIndex >= 0 && decision.SlotIndex < len(daySlots) {
			slot := daySlots[decision.SlotIndex]
			patch := reconcile.ApplyPatch(decision, slot, existingBySlot[decision.SlotIndex])
			action, err := e.store.UpsertAssignment(ctx, dayKey, decision.SlotIndex, patch)
			if err != nil {
				detail.Error = err.Error()
				report.Errors = append(report.Errors, err.Error())
				log.WithError(err).WithField("slot_index", decision.SlotIndex).Error("Reconcile upsert failed")
			} else {
				detail.Action = action
				report.UpdatesApplied++
				wrote++
				e.countUpsert(action)
			}
		}

		report.Details = append(report.Details, detail)
	}

	if wrote > 0 && e.cache != nil {
		e.cache.Invalidate(ctx, dayKey)
	}

	e.countReconcile(mode, "ok")
	log.WithFields(logging.Fields{
		"orphans":          report.TotalOrphans,
		"matched_exact":    report.MatchedExact,
		"matched_platform": report.MatchedPlatform,
		"no_match":         report.NoMatch,
		"updates_applied":  report.UpdatesApplied,
	}).Info("Reconcile run complete")

	return report, nil
}

// DayView composes the read-only view of a day from the stored
// snapshot, bypassing selection entirely.
func (e *Engine) DayView(ctx context.Context, dayKey string) (*models.DayView, error) {
	daySlots, err := slots.BuildSlots(dayKey, e.labels, e.loc)
	if err != nil {
		return nil, err
	}
	existing, err := e.store.ReadDay(ctx, dayKey)
	if err != nil {
		return nil, err
	}

	existingBySlot := make(map[int]*models.ScheduleAssignment, len(existing))
	for i := range existing {
		existingBySlot[existing[i].SlotIndex] = &existing[i]
	}

	now := e.now()
	assignments := make([]models.ScheduleAssignment, 0, len(daySlots))
	for _, slot := range daySlots {
		if prior := existingBySlot[slot.SlotIndex]; prior != nil {
			assignments = append(assignments, *prior)
			continue
		}
		assignments = append(assignments, models.ScheduleAssignment{
			DayKey:           dayKey,
			SlotIndex:        slot.SlotIndex,
			ScheduledInstant: slot.Instant,
			Rationale:        selection.RationaleNoContent,
		})
	}

	return &models.DayView{
		Date:    dayKey,
		Slots:   e.buildSlotViews(ctx, daySlots, assignments, now),
		Summary: selection.Summarize(reclassify(assignments, now), e.selOpts),
	}, nil
}

// buildSlotViews attaches per-slot detail, enriching committed slots
// from the content source. Enrichment is best effort: on failure the
// view falls back to the fields the assignment itself carries.
func (e *Engine) buildSlotViews(ctx context.Context, daySlots []models.TimeSlot, assignments []models.ScheduleAssignment, now time.Time) []models.SlotView {
	bySlot := make(map[int]*models.ScheduleAssignment, len(assignments))
	for i := range assignments {
		bySlot[assignments[i].SlotIndex] = &assignments[i]
	}

	views := make([]models.SlotView, 0, len(daySlots))
	for _, slot := range daySlots {
		view := models.SlotView{
			SlotIndex:  slot.SlotIndex,
			CivilLabel: slot.CivilLabel,
			Instant:    slot.Instant,
			Status:     models.StatusUpcoming,
		}
		if assignment := bySlot[slot.SlotIndex]; assignment != nil {
			view.Status = selection.ClassifyStatus(assignment, now)
			view.Rationale = assignment.Rationale
			if assignment.Committed() {
				view.Content = e.enrichAssignment(ctx, assignment)
			}
		}
		views = append(views, view)
	}
	return views
}

func (e *Engine) enrichAssignment(ctx context.Context, assignment *models.ScheduleAssignment) *models.ContentCandidate {
	candidate, err := e.source.Enrich(ctx, *assignment.ContentID)
	if err != nil {
		e.logger.WithError(err).WithFields(logging.Fields{
			"content_id": *assignment.ContentID,
			"slot_index": assignment.SlotIndex,
		}).Warn("Content enrichment failed; using assignment fields")
		return &models.ContentCandidate{
			ID:           *assignment.ContentID,
			Platform:     assignment.Platform,
			ContentType:  assignment.ContentType,
			Author:       assignment.Source,
			TitleSnippet: assignment.TitleSnippet,
		}
	}
	return candidate
}

func patchFromAssignment(a *models.ScheduleAssignment) models.AssignmentPatch {
	return models.AssignmentPatch{
		ContentID:           a.ContentID,
		Platform:            a.Platform,
		ContentType:         a.ContentType,
		Source:              a.Source,
		TitleSnippet:        a.TitleSnippet,
		ScheduledInstant:    a.ScheduledInstant,
		ActualPostedInstant: a.ActualPostedInstant,
		Status:              a.Status,
		Rationale:           a.Rationale,
	}
}

func reclassify(assignments []models.ScheduleAssignment, now time.Time) []models.ScheduleAssignment {
	out := make([]models.ScheduleAssignment, len(assignments))
	copy(out, assignments)
	for i := range out {
		out[i].Status = selection.ClassifyStatus(&out[i], now)
	}
	return out
}

func (e *Engine) countForecast(status string) {
	if e.metrics != nil && e.metrics.ForecastRuns != nil {
		e.metrics.ForecastRuns.WithLabelValues(status).Inc()
	}
}

func (e *Engine) countReconcile(mode, status string) {
	if e.metrics != nil && e.metrics.ReconcileRuns != nil {
		e.metrics.ReconcileRuns.WithLabelValues(mode, status).Inc()
	}
}

func (e *Engine) countUpsert(action string) {
	if e.metrics != nil && e.metrics.UpsertActions != nil {
		e.metrics.UpsertActions.WithLabelValues(action).Inc()
	}
}

func (e *Engine) gaugeDay(dayKey string, plan []models.ScheduleAssignment, summary models.ForecastSummary) {
	if e.metrics == nil {
		return
	}
	filled := 0
	for i := range plan {
		if plan[i].Committed() {
			filled++
		}
	}
	if e.metrics.SlotsFilled != nil {
		e.metrics.SlotsFilled.WithLabelValues(dayKey).Set(float64(filled))
	}
	if e.metrics.Diversity != nil {
		e.metrics.Diversity.WithLabelValues(dayKey).Set(float64(summary.DiversityScore))
	}
}
