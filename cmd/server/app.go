package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/requiemhq/requiem-api/internal/analytics"
	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/events"
	"github.com/requiemhq/requiem-api/internal/generation"
	"github.com/requiemhq/requiem-api/internal/platform/gemini"
	"github.com/requiemhq/requiem-api/internal/platform/postgres"
	"github.com/requiemhq/requiem-api/internal/service"
	"github.com/requiemhq/requiem-api/internal/service/auth"
	"github.com/requiemhq/requiem-api/internal/store"
	"github.com/requiemhq/requiem-api/internal/telemetry"
)

// application holds the shared application dependencies so that wiring
// and cleanup live in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	userStore    store.UserStore
	taskStore    store.TaskStore
	eventStore   store.TaskEventStore
	messageStore store.MessageStore

	// Services
	jwtService      auth.JWTService
	userService     *service.UserService
	progressService service.ProgressService
	generator       generation.Generator

	// Event system
	eventEmitter *events.InMemoryEmitter

	// Observability
	registry *prometheus.Registry

	// Background telemetry
	advancer *telemetry.Advancer
}

// newApplication creates an application instance with all dependencies
// initialized. Configuration, logger and database connection must be
// established by the caller first.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.eventStore = postgres.NewPostgresTaskEventStore(db, logger)
	app.messageStore = postgres.NewPostgresMessageStore(db, logger)

	app.eventEmitter = events.NewInMemoryEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewLoggingHandler(logger))

	app.progressService, err = service.NewProgressService(
		service.DBTxRunner{DB: db},
		app.taskStore,
		app.eventStore,
		app.eventEmitter,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress service: %w", err)
	}

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	app.userService, err = service.NewUserService(app.userStore, hasher, hasher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	app.generator, err = setupGenerator(ctx, cfg.Chat, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reply generator: %w", err)
	}
	logger.Info("reply generator initialized",
		"backend", cfg.Chat.Generator,
		"persona", cfg.Chat.Persona)

	app.registry = setupMetrics(app.taskStore, app.eventStore, logger)

	app.advancer = telemetry.NewAdvancer(cfg.Telemetry, app.progressService, logger)

	// Reconcile configured seed tasks with the stored set so renamed or
	// newly added entries take effect on restart.
	if err := app.progressService.SeedTasks(ctx, cfg.Progress.SeedTasks); err != nil {
		return nil, fmt.Errorf("failed to seed tasks: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupGenerator selects the reply generator backend. The Gemini
// backend degrades to the persona template on call failures so chat
// stays available when the upstream model is not.
func setupGenerator(
	ctx context.Context,
	cfg config.ChatConfig,
	logger *slog.Logger,
) (generation.Generator, error) {
	template := generation.NewTemplateGenerator(cfg.Persona)

	switch cfg.Generator {
	case "gemini":
		primary, err := gemini.NewGenerator(ctx, logger.With("component", "gemini_generator"), cfg)
		if err != nil {
			return nil, err
		}
		return generation.NewFallbackGenerator(primary, template, logger), nil
	default:
		return template, nil
	}
}

// setupMetrics builds the Prometheus registry with runtime collectors
// and the analytics collector that recomputes the progress summary on
// every scrape.
func setupMetrics(
	taskStore store.TaskStore,
	eventStore store.TaskEventStore,
	logger *slog.Logger,
) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		analytics.NewCollector(analytics.NewService(taskStore, eventStore), logger),
	)
	return registry
}

// Run starts the background telemetry advancer and the HTTP server,
// blocking until shutdown completes.
func (app *application) Run(ctx context.Context) error {
	app.advancer.Start()

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.advancer != nil {
		app.advancer.Stop()
	}

	closeDatabase(app.db, app.logger)

	app.logger.Info("application shutdown completed")
}
