// Package worker drives the scheduling engine on an interval so the
// schedule stays current without operator action.
package worker

import (
	"context"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/slots"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
)

// Engine is the subset of the scheduling engine the worker drives.
type Engine interface {
	Forecast(ctx context.Context, dayKey string) (*models.ForecastResult, error)
	Reconcile(ctx context.Context, dayKey string, write bool) (*models.ReconcileReport, error)
}

// Worker plans upcoming days and reconciles recent ones on a fixed
// interval. Errors are logged and the loop keeps running; a bad cycle
// never takes the worker down.
type Worker struct {
	engine   Engine
	logger   logging.Logger
	loc      *time.Location
	interval time.Duration
	now      func() time.Time
}

// New creates a worker over the given engine.
func New(engine Engine, logger logging.Logger, loc *time.Location, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Worker{
		engine:   engine,
		logger:   logger,
		loc:      loc,
		interval: interval,
		now:      time.Now,
	}
}

// Run executes cycles until the context is cancelled. The first cycle
// fires immediately.
func (w *Worker) Run(ctx context.Context) {
	w.logger.WithField("interval", w.interval.String()).Info("Schedule worker started")

	w.runCycle(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Schedule worker stopped")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle forecasts today and tomorrow, then write-reconciles
// yesterday and today. Yesterday is included so posts landing near
// midnight are still matched after the day rolls over.
func (w *Worker) runCycle(ctx context.Context) {
	now := w.now().In(w.loc)
	today := now.Format(slots.DayKeyFormat)
	tomorrow := now.AddDate(0, 0, 1).Format(slots.DayKeyFormat)
	yesterday := now.AddDate(0, 0, -1).Format(slots.DayKeyFormat)

	for _, day := range []string{today, tomorrow} {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.engine.Forecast(ctx, day); err != nil {
			w.logger.WithError(err).WithField("day_key", day).Error("Worker forecast failed")
		}
	}

	for _, day := range []string{yesterday, today} {
		if ctx.Err() != nil {
			return
		}
		report, err := w.engine.Reconcile(ctx, day, true)
		if err != nil {
			w.logger.WithError(err).WithField("day_key", day).Error("Worker reconcile failed")
			continue
		}
		if len(report.Errors) > 0 {
			w.logger.WithFields(logging.Fields{
				"day_key": day,
				"errors":  len(report.Errors),
			}).Warn("Worker reconcile completed with errors")
		}
	}
}
