package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/cache"
	appconfig "github.com/ashaw315/hotdog-diaries-sub006/internal/config"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/content"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/handlers"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/scheduler"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/selection"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/slots"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/store"
	"github.com/ashaw315/hotdog-diaries-sub006/internal/worker"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/config"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/database"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/monitoring"
	pkgredis "github.com/ashaw315/hotdog-diaries-sub006/pkg/redis"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/server"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/version"
)

const serviceName = "almanac"

func main() {
	root := &cobra.Command{
		Use:   "almanac",
		Short: "Daily content scheduling and reconciliation engine",
	}

	var date string
	var write bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	forecastCmd := &cobra.Command{
		Use:   "forecast",
		Short: "Plan a day's schedule and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(date, func(ctx context.Context, engine *scheduler.Engine, dayKey string) (interface{}, error) {
				return engine.Forecast(ctx, dayKey)
			})
		},
	}
	forecastCmd.Flags().StringVar(&date, "date", "", "day to plan (YYYY-MM-DD, default today)")

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a day against published records and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(date, func(ctx context.Context, engine *scheduler.Engine, dayKey string) (interface{}, error) {
				return engine.Reconcile(ctx, dayKey, write)
			})
		},
	}
	reconcileCmd.Flags().StringVar(&date, "date", "", "day to reconcile (YYYY-MM-DD, default today)")
	reconcileCmd.Flags().BoolVar(&write, "write", false, "apply updates instead of a dry run")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetInfo()
			fmt.Printf("%s %s (%s, built %s)\n", serviceName, info.Version, version.GetShortCommit(), info.BuildDate)
		},
	}

	root.AddCommand(serveCmd, forecastCmd, reconcileCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads config and connects the shared collaborators. The
// Redis client is optional; everything else is required.
func bootstrap(logger logging.Logger) (*appconfig.Config, *sql.DB, *goredis.Client, error) {
	config.LoadEnv(logger)

	cfg, err := appconfig.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	db, err := database.Connect(dbCfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := database.ApplySchema(context.Background(), db, logger); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkgredis.NewClientFromURL(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable; running without day view cache")
			redisClient = nil
		}
	}

	return cfg, db, redisClient, nil
}

func buildEngine(cfg *appconfig.Config, db *sql.DB, dayCache *cache.DayViewCache, metrics *scheduler.Metrics, logger logging.Logger) *scheduler.Engine {
	scheduleStore := store.NewStore(db, logger)
	reader := content.NewReader(db, logger)

	var invalidator scheduler.Invalidator
	if dayCache != nil {
		invalidator = dayCache
	}

	return scheduler.NewEngine(scheduleStore, reader, logger, scheduler.Options{
		Location:   cfg.Location(),
		SlotLabels: cfg.SlotLabels,
		Selection: selection.Options{
			PlatformDailyCap:   cfg.PlatformDailyCap,
			TargetPlatforms:    cfg.TargetPlatforms,
			TargetContentTypes: cfg.TargetContentTypes,
		},
		Tolerance: cfg.Tolerance(),
		Metrics:   metrics,
		Cache:     invalidator,
	})
}

func runServe() error {
	logger := logging.NewLoggerWithService(serviceName)

	cfg, db, redisClient, err := bootstrap(logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsCollector := monitoring.NewMetricsCollector(serviceName, version.Version, version.GetShortCommit())
	forecastRuns, reconcileRuns, upsertActions, slotsFilled, diversity := metricsCollector.CreateSchedulingMetrics()
	metrics := &scheduler.Metrics{
		ForecastRuns:  forecastRuns,
		ReconcileRuns: reconcileRuns,
		UpsertActions: upsertActions,
		SlotsFilled:   slotsFilled,
		Diversity:     diversity,
	}

	var dayCache *cache.DayViewCache
	if redisClient != nil {
		dayCache = cache.NewDayViewCache(redisClient, logger)
	}

	engine := buildEngine(cfg, db, dayCache, metrics, logger)

	healthChecker := monitoring.NewHealthChecker(serviceName, version.Version)
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	healthChecker.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
	}))

	router := server.SetupServiceRouter(logger, serviceName, healthChecker, metricsCollector)

	var viewCache handlers.ViewCache
	if dayCache != nil {
		viewCache = dayCache
	}
	h := handlers.NewHandlers(engine, viewCache, logger, cfg.Location())
	h.RegisterRoutes(router, cfg.AdminToken)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if cfg.WorkerEnabled {
		w := worker.New(engine, logger, cfg.Location(), cfg.WorkerInterval)
		go w.Run(workerCtx)
	}

	serverCfg := server.DefaultConfig(serviceName, cfg.Port)
	return server.Start(serverCfg, router, logger)
}

func runOneShot(date string, run func(ctx context.Context, engine *scheduler.Engine, dayKey string) (interface{}, error)) error {
	logger := logging.NewLoggerWithService(serviceName)

	cfg, db, redisClient, err := bootstrap(logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	var dayCache *cache.DayViewCache
	if redisClient != nil {
		dayCache = cache.NewDayViewCache(redisClient, logger)
	}

	engine := buildEngine(cfg, db, dayCache, nil, logger)

	dayKey := date
	if dayKey == "" {
		dayKey = time.Now().In(cfg.Location()).Format(slots.DayKeyFormat)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := run(ctx, engine, dayKey)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
