// Package handlers exposes the scheduling engine over the admin HTTP
// surface.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/slots"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/middleware"
)

// SchedulingEngine is the engine surface the handlers drive.
type SchedulingEngine interface {
	Forecast(ctx context.Context, dayKey string) (*models.ForecastResult, error)
	Reconcile(ctx context.Context, dayKey string, write bool) (*models.ReconcileReport, error)
	DayView(ctx context.Context, dayKey string) (*models.DayView, error)
}

// ViewCache is the optional read-through cache for composed day views.
type ViewCache interface {
	Get(ctx context.Context, dayKey string) *models.DayView
	Set(ctx context.Context, dayKey string, view *models.DayView)
}

// Handlers bundles the admin endpoints and their collaborators.
type Handlers struct {
	engine SchedulingEngine
	cache  ViewCache
	logger logging.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewHandlers creates the admin handler set. Cache may be nil.
func NewHandlers(engine SchedulingEngine, cache ViewCache, logger logging.Logger, loc *time.Location) *Handlers {
	return &Handlers{
		engine: engine,
		cache:  cache,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// RegisterRoutes mounts the admin surface under /api/admin, guarded by
// the bearer token.
func (h *Handlers) RegisterRoutes(router *gin.Engine, adminToken string) {
	admin := router.Group("/api/admin", middleware.TokenAuthMiddleware(adminToken, h.logger))
	admin.GET("/schedule", h.GetSchedule)
	admin.GET("/schedule/forecast", h.RunForecast)
	admin.POST("/schedule/reconcile", h.RunReconcile)
}

// GetSchedule returns the composed day view, served from cache when
// possible.
func (h *Handlers) GetSchedule(c *gin.Context) {
	dayKey, ok := h.dayKeyParam(c)
	if !ok {
		return
	}

	if h.cache != nil {
		if view := h.cache.Get(c.Request.Context(), dayKey); view != nil {
			c.JSON(http.StatusOK, view)
			return
		}
	}

	view, err := h.engine.DayView(c.Request.Context(), dayKey)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if h.cache != nil {
		h.cache.Set(c.Request.Context(), dayKey, view)
	}
	c.JSON(http.StatusOK, view)
}

// RunForecast plans the requested day and returns the full result.
func (h *Handlers) RunForecast(c *gin.Context) {
	dayKey, ok := h.dayKeyParam(c)
	if !ok {
		return
	}

	result, err := h.engine.Forecast(c.Request.Context(), dayKey)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reconcileRequest struct {
	Date  string `json:"date"`
	Write bool   `json:"write"`
}

// RunReconcile reconciles the requested day. Dry run unless the body
// asks for writes.
func (h *Handlers) RunReconcile(c *gin.Context) {
	var req reconcileRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, middleware.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	dayKey := req.Date
	if dayKey == "" {
		dayKey = h.today()
	}
	if !validDayKey(dayKey) {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	report, err := h.engine.Reconcile(c.Request.Context(), dayKey, req.Write)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) dayKeyParam(c *gin.Context) (string, bool) {
	dayKey := c.Query("date")
	if dayKey == "" {
		return h.today(), true
	}
	if !validDayKey(dayKey) {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "date must be YYYY-MM-DD"})
		return "", false
	}
	return dayKey, true
}

func (h *Handlers) today() string {
	return h.now().In(h.loc).Format(slots.DayKeyFormat)
}

func validDayKey(dayKey string) bool {
	_, err := time.Parse(slots.DayKeyFormat, dayKey)
	return err == nil
}

func (h *Handlers) renderError(c *gin.Context, err error) {
	var cfgErr *models.ConfigurationError
	if errors.As(err, &cfgErr) {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}
	h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Admin request failed")
	c.JSON(http.StatusInternalServerError, middleware.H{"error": err.Error()})
}
