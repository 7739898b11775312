// Package main - точка входа фонового процесса (Worker) движка квестов Recyclify.
//
// Worker отвечает за:
// - Схему журнала очков (миграции PostgreSQL)
// - Еженедельную замену устаревших квестов классов (cron)
// - Доставку уведомлений и обновление лидерборда классов после коммита
//
// Команды VerifyTask, RejectTask, RegenerateClassQuests и запросы собираются
// здесь же и доступны транспортному слою через Application.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/RecyclifyApp/Backend-sub000/config"

	// Application layer
	"github.com/RecyclifyApp/Backend-sub000/internal/application/command"
	"github.com/RecyclifyApp/Backend-sub000/internal/application/eventhandler"
	"github.com/RecyclifyApp/Backend-sub000/internal/application/progress"
	"github.com/RecyclifyApp/Backend-sub000/internal/application/query"

	// Domain layer
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"

	// Infrastructure layer
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/external/assets"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/messaging"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/persistence/catalog"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/persistence/memory"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/persistence/postgres"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/persistence/redis"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/scheduler"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/scheduler/jobs"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/service"

	// Interface layer
	probe "github.com/RecyclifyApp/Backend-sub000/internal/interface/http"

	// Packages
	"github.com/RecyclifyApp/Backend-sub000/pkg/logger"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// Application - собранные обработчики команд и запросов.
type Application struct {
	VerifyTask            *command.VerifyTaskHandler
	RejectTask            *command.RejectTaskHandler
	AttachTaskEvidence    *command.AttachTaskEvidenceHandler
	RegenerateClassQuests *command.RegenerateClassQuestsHandler
	SeedClassQuests       *command.SeedClassQuestsHandler
	RefreshClassQuests    *command.RefreshClassQuestsHandler

	RecommendQuests      *query.RecommendQuestsHandler
	GetClassQuests       *query.GetClassQuestsHandler
	GetVerificationQueue *query.GetVerificationQueueHandler
	GetClassLeaderboard  *query.GetClassLeaderboardHandler
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.Setup(logger.Options{
		Level:   cfg.Observability.LogLevel,
		Format:  logger.Format(cfg.Observability.LogFormat),
		Output:  os.Stdout,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
	log.Info("starting quest engine worker",
		"env", cfg.App.Environment,
		"timezone", cfg.Engine.Timezone,
		"window_days", cfg.Engine.WindowDays,
	)
	probeCfg := probe.DefaultConfig()
	probeCfg.Addr = cfg.Observability.HealthAddr
	checker := probe.NewHealthChecker(cfg.App.Version, probeCfg.CheckTimeout)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ЖУРНАЛ ОЧКОВ (PostgreSQL через pgx)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to ledger database...")
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout

	dbConn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	checker.AddCheck("postgres", probe.PingCheck(dbConn))

	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	uow := postgres.NewUnitOfWork(dbConn)
	contacts := postgres.NewContactDirectory(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. КАТАЛОГ КВЕСТОВ И ЗАДАНИЙ (GORM)
	// ─────────────────────────────────────────────────────────────────────────
	catalogDB, err := catalog.Open(catalog.Config{
		DSN:             cfg.Catalog.URL,
		MaxIdleConns:    cfg.Catalog.MaxIdleConns,
		MaxOpenConns:    cfg.Catalog.MaxOpenConns,
		ConnMaxLifetime: cfg.Catalog.ConnMaxLifetime,
		LogLevel:        cfg.Catalog.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer closeCatalog(log, catalogDB)

	gormCatalog := catalog.NewGormCatalog(catalogDB)
	seeded := false
	if cfg.Catalog.SeedFile != "" {
		seed, err := catalog.LoadSeed(cfg.Catalog.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, gormCatalog); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		log.Info("catalog seeded", "file", cfg.Catalog.SeedFile, "quests", len(seed.Quests), "tasks", len(seed.Tasks))
		seeded = true
	}

	var catalogSource redis.CatalogSource = gormCatalog

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (кеш каталога, блокировки, лидерборд)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		locker      command.Locker
		leaderboard ledger.Leaderboard = memory.NewLeaderboard()
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCache, err := redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, running without cache", "error", err)
		} else {
			defer redisCache.Close()
			checker.AddCheck("redis", probe.PingCheck(redisCache))

			if cfg.Features.IsEnabled(config.FeatureCatalogCache, nil) {
				catalogSource = newCatalogCache(ctx, redisCache, catalogSource, cfg.Catalog.CacheTTL, seeded, log)
			}
			locker = redis.NewRegenerationLock(redisCache, cfg.Redis.LockTTL, log)
			leaderboard = redis.NewClassLeaderboard(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ХРАНИЛИЩЕ ФАЙЛОВ (S3/R2)
	// ─────────────────────────────────────────────────────────────────────────
	assetStore, err := newAssetStore(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to init asset store: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	dispatcher, err := newDispatcher(eventBus, cfg, contacts, leaderboard, log)
	if err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ДВИЖОК И ОБРАБОТЧИКИ КОМАНД
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.NewSystemClock(cfg.Engine.Location)
	engine := progress.NewEngine(catalogSource, catalogSource, progress.Config{
		WindowDays:             cfg.Engine.WindowDays,
		DefaultRecommendations: cfg.Engine.DefaultRecommendations,
	}, log)

	deps := command.Dependencies{
		UnitOfWork: uow,
		Engine:     engine,
		Publisher:  eventBus,
		Clock:      clock,
		Timeout:    cfg.Engine.OperationTimeout,
		Logger:     log,
	}
	app := newApplication(deps, locker, assetStore, catalogSource, leaderboard)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.Engine.Location,
	})
	sched.OnJobError(func(jobName string, err error) {
		log.Error("scheduled job failed", "job", jobName, logger.Err(err))
	})

	if cfg.Scheduler.Enabled && cfg.Features.IsEnabled(config.FeatureScheduledRegeneration, nil) {
		job := jobs.NewRegenerateStaleQuestsJob(uow, app.RefreshClassQuests, clock, log, jobs.RegenerateStaleQuestsConfig{
			WindowDays: cfg.Engine.WindowDays,
			Target:     cfg.Engine.DefaultRecommendations,
			Timeout:    cfg.Scheduler.JobTimeout,
		})
		if err := sched.Register(job, cfg.Scheduler.RegenerateStaleCron); err != nil {
			return fmt.Errorf("failed to register job: %w", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	for _, info := range sched.ListJobs() {
		log.Info("job scheduled", "job", info.Name, "schedule", info.Schedule, "next_run", info.NextRun)
	}
	var probes *probe.Server
	if probeCfg.Addr != "" {
		probes = probe.NewServer(probeCfg, checker, deliveryStats(eventBus, dispatcher), log)
		probes.Start()
	}
	log.Info("quest engine worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()

	select {
	case err := <-stopped:
		if err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Warn("scheduler stopped with error", logger.Err(err))
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("scheduler did not stop in time")
	}

	if probes != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := probes.Shutdown(shutdownCtx); err != nil {
			log.Warn("probe server shutdown failed", logger.Err(err))
		}
		cancel()
	}

	eventBus.Drain()
	dispatcher.Stop()
	if dlq := dispatcher.DeadLetterQueue(); dlq != nil && dlq.Size() > 0 {
		log.Warn("events left in dead letter queue", "count", dlq.Size())
	}
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func deliveryStats(bus *messaging.InMemoryEventBus, dispatcher *messaging.Dispatcher) probe.DeliveryStats {
	return func() probe.DeliveryReport {
		var report probe.DeliveryReport
		if m := bus.Metrics(); m != nil {
			snap := m.Snapshot()
			report.Published = snap.TotalPublished
			report.HandlerRuns = snap.TotalHandlerExecs
			report.HandlerFailures = snap.HandlerFailures
			report.SuccessRate = snap.HandlerSuccessRate
		}
		if dlq := dispatcher.DeadLetterQueue(); dlq != nil {
			report.DeadLetters = dlq.Size()
		}
		return report
	}
}

func newApplication(
	deps command.Dependencies,
	locker command.Locker,
	assetStore evidenceStore,
	taskCatalog task.Catalog,
	leaderboard ledger.Leaderboard,
) *Application {
	return &Application{
		VerifyTask:            command.NewVerifyTaskHandler(deps),
		RejectTask:            command.NewRejectTaskHandler(deps),
		AttachTaskEvidence:    command.NewAttachTaskEvidenceHandler(deps, assetStore),
		RegenerateClassQuests: command.NewRegenerateClassQuestsHandler(deps, locker),
		SeedClassQuests:       command.NewSeedClassQuestsHandler(deps),
		RefreshClassQuests:    command.NewRefreshClassQuestsHandler(deps, locker),

		RecommendQuests:      query.NewRecommendQuestsHandler(deps.UnitOfWork, deps.Engine, deps.Clock),
		GetClassQuests:       query.NewGetClassQuestsHandler(deps.UnitOfWork, deps.Engine, deps.Clock),
		GetVerificationQueue: query.NewGetVerificationQueueHandler(deps.UnitOfWork, taskCatalog, assetStore),
		GetClassLeaderboard:  query.NewGetClassLeaderboardHandler(leaderboard),
	}
}

// newDispatcher routes post-commit events to their handlers.
// Notifications are not retried here: the Notifier retries per recipient.
func newDispatcher(
	bus *messaging.InMemoryEventBus,
	cfg *config.Config,
	contacts *postgres.ContactDirectory,
	leaderboard ledger.Leaderboard,
	log *slog.Logger,
) (*messaging.Dispatcher, error) {
	notifier := eventhandler.NewNotifier(service.NewLogNotificationSender(log), eventhandler.NotifierConfig{
		MaxAttempts:     cfg.Notification.MaxAttempts,
		SendTimeout:     cfg.Notification.SendTimeout,
		BreakerFailures: cfg.Notification.BreakerFailures,
		BreakerCooldown: cfg.Notification.BreakerCooldown,
	}, log)

	reviewed := eventhandler.NewOnTaskReviewedHandler(contacts, notifier, log)
	questCompleted := eventhandler.NewOnQuestCompletedHandler(contacts, notifier, log)
	pointsAwarded := eventhandler.NewOnPointsAwardedHandler(leaderboard, log)

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		Bus:                 bus,
		RetryConfig:         messaging.DefaultRetryConfig(),
		DeadLetterQueueSize: 500,
		Logger:              log,
	})
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	routes := []struct {
		feature   string
		eventType shared.EventType
		route     messaging.Route
	}{
		{config.FeatureNotifyTaskVerified, shared.EventTaskVerified, messaging.Route{Name: "notify_task_verified", Handler: reviewed.Handle, MaxAttempts: 1}},
		{config.FeatureNotifyTaskRejected, shared.EventTaskRejected, messaging.Route{Name: "notify_task_rejected", Handler: reviewed.Handle, MaxAttempts: 1}},
		{config.FeatureNotifyQuestCompleted, shared.EventQuestCompleted, messaging.Route{Name: "notify_quest_completed", Handler: questCompleted.Handle, MaxAttempts: 1}},
		{config.FeatureClassLeaderboard, shared.EventStudentPointsAwarded, messaging.Route{Name: "class_leaderboard", Handler: pointsAwarded.Handle}},
	}

	for _, r := range routes {
		if !cfg.Features.IsEnabled(r.feature, nil) {
			log.Info("event handler disabled", "feature", r.feature)
			continue
		}
		if err := dispatcher.Route(r.eventType, r.route); err != nil {
			return nil, err
		}
	}

	if err := dispatcher.Start(); err != nil {
		return nil, err
	}
	return dispatcher, nil
}

// newCatalogCache wraps source with the Redis cache. After a seed the cached
// entries are from the previous catalog, so they are dropped.
func newCatalogCache(
	ctx context.Context,
	cache *redis.Cache,
	source redis.CatalogSource,
	ttl time.Duration,
	seeded bool,
	log *slog.Logger,
) *redis.CatalogCache {
	cc := redis.NewCatalogCache(cache, source, ttl, log)
	if seeded {
		if err := cc.Invalidate(ctx); err != nil {
			log.Warn("failed to invalidate catalog cache", logger.Err(err))
		}
	}
	return cc
}

// evidenceStore stores durable photo references and signs them for viewing.
type evidenceStore interface {
	task.AssetStore
	task.EvidenceLinker
}

func newAssetStore(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (evidenceStore, error) {
	switch cfg.Provider {
	case "r2", "s3":
		return assets.NewS3Store(ctx, assets.S3Config{
			AccountID:       cfg.AccountID,
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Prefix:          cfg.Prefix,
			URLExpiry:       cfg.URLExpiry,
		}, log)
	default:
		return assets.NewStaticStore(cfg.PublicBaseURL)
	}
}

func closeCatalog(log *slog.Logger, db *gorm.DB) {
	if err := catalog.Close(db); err != nil {
		log.Warn("failed to close catalog connection", logger.Err(err))
	}
}
