package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasktrack-api/internal/config"
	"github.com/phrazzld/tasktrack-api/internal/dispatch"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/events"
	"github.com/phrazzld/tasktrack-api/internal/notify"
	"github.com/phrazzld/tasktrack-api/internal/platform/postgres"
	"github.com/phrazzld/tasktrack-api/internal/platform/redis"
	"github.com/phrazzld/tasktrack-api/internal/scheduler"
	"github.com/phrazzld/tasktrack-api/internal/service"
	"github.com/phrazzld/tasktrack-api/internal/service/auth"
	"github.com/phrazzld/tasktrack-api/internal/store"
	"github.com/phrazzld/tasktrack-api/internal/store/memory"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when the memory driver is configured.
	db *sql.DB
	// statsCache is nil when no Redis address is configured.
	statsCache *redis.StatsCache

	tasks store.TaskStore
	users store.UserDirectory

	jwtService  auth.JWTService
	taskService service.TaskService

	eventEmitter *events.InMemoryEventEmitter
	dispatcher   *dispatch.Dispatcher
	engine       *scheduler.Engine
}

// newApplication creates a new application instance with all dependencies initialized.
// The notification dispatcher is started here; the scheduler starts in Run.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	loc, err := cfg.Tasks.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid task timezone: %w", err)
	}

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	if err := app.setupStores(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	var stats service.StatsCache = service.NopStatsCache{}
	if cache := app.setupStatsCache(ctx); cache != nil {
		app.statsCache = cache
		stats = cache
	}

	app.dispatcher = dispatch.New(dispatch.Config{
		WorkerCount: cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
	}, logger)
	app.dispatcher.Start()

	notifier := notify.NewLogNotifier(logger)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(
		notify.NewEventHandler(notifier, app.users, app.dispatcher, logger),
		notify.EventTypes()...)

	app.taskService, err = service.NewTaskService(service.Deps{
		Tasks:  app.tasks,
		Events: app.eventEmitter,
		Stats:  stats,
	}, service.Options{
		Location:         loc,
		DefaultPageLimit: cfg.Tasks.DefaultPageLimit,
		MaxPageLimit:     cfg.Tasks.MaxPageLimit,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.engine = scheduler.NewEngine(scheduler.Deps{
		Tasks:    app.tasks,
		Users:    app.users,
		Notifier: notifier,
		Jobs:     app.dispatcher,
	}, scheduler.Config{
		Enabled:      cfg.Scheduler.Enabled,
		ReminderCron: cfg.Scheduler.ReminderCron,
		OverdueCron:  cfg.Scheduler.OverdueCron,
		Location:     loc,
	}, logger)

	logger.Info("Application initialized successfully",
		"database_driver", cfg.Database.Driver,
		"stats_cache", app.statsCache != nil,
		"timezone", loc.String())
	return app, nil
}

// setupStores selects the task repository and user directory for the
// configured driver.
func (app *application) setupStores(ctx context.Context) error {
	if app.config.Database.Driver != "postgres" {
		app.tasks = memory.NewTaskStore()
		app.users = memory.NewUserDirectory(directoryUsers(app.config.Users)...)
		app.logger.Warn("Using in-memory task store; data is lost on restart",
			"directory_users", len(app.config.Users))
		return nil
	}

	if len(app.config.Users) > 0 {
		app.logger.Warn("Configured users are ignored by the postgres driver",
			"directory_users", len(app.config.Users))
	}

	db, err := setupAppDatabase(ctx, app.config, app.logger)
	if err != nil {
		return err
	}
	app.db = db
	app.tasks = postgres.NewPostgresTaskStore(db)
	app.users = postgres.NewPostgresUserStore(db)
	return nil
}

func directoryUsers(entries []config.UserConfig) []domain.User {
	users := make([]domain.User, 0, len(entries))
	for _, u := range entries {
		users = append(users, domain.User{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	return users
}

// setupStatsCache connects to Redis when an address is configured. An
// unreachable Redis disables caching rather than failing startup.
func (app *application) setupStatsCache(ctx context.Context) *redis.StatsCache {
	if app.config.Cache.RedisAddr == "" {
		return nil
	}

	cache := redis.NewStatsCache(redis.NewClient(app.config.Cache), "", app.config.Cache.TTL())

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		app.logger.Warn("Redis unavailable, statistics cache disabled", "error", err)
		_ = cache.Close()
		return nil
	}

	app.logger.Info("Statistics cache connected", "ttl", app.config.Cache.TTL())
	return cache
}

// Run starts the scheduler and the HTTP server, blocking until shutdown.
func (app *application) Run(ctx context.Context) error {
	if err := app.engine.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// stopBackground stops the scheduler, then drains the notification queue.
func (app *application) stopBackground(ctx context.Context) error {
	var firstErr error
	if app.engine != nil {
		if err := app.engine.Stop(ctx); err != nil {
			firstErr = fmt.Errorf("stop scheduler: %w", err)
		}
	}
	if app.dispatcher != nil {
		if err := app.dispatcher.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop dispatcher: %w", err)
		}
	}
	return firstErr
}

// cleanup releases connections. Background workers must already be stopped.
func (app *application) cleanup() {
	if app.statsCache != nil {
		if err := app.statsCache.Close(); err != nil {
			app.logger.Error("Error closing Redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
