package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/eventsignup/internal/app/controllers"
	appMigrations "github.com/yigit/eventsignup/internal/app/migrations"
	appRepos "github.com/yigit/eventsignup/internal/app/repositories"
	"github.com/yigit/eventsignup/internal/app/repositories/sqlite"
	appRoutes "github.com/yigit/eventsignup/internal/app/routes"
	appServices "github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/app/window"
	"github.com/yigit/eventsignup/internal/config"
	"github.com/yigit/eventsignup/internal/db"
	appMiddleware "github.com/yigit/eventsignup/internal/middleware"
	"github.com/yigit/eventsignup/internal/pkg/email"
	"github.com/yigit/eventsignup/internal/pkg/helpers"
	"github.com/yigit/eventsignup/internal/pkg/logger"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Store              appServices.Store
	Notifier           appServices.Notifier
	Clock              window.Clock
	EventService       appServices.EventService
	RsvpService        appServices.RsvpService
	ReminderService    appServices.ReminderService
	Scheduler          *appServices.Scheduler
	EventController    *appControllers.EventController
	RsvpController     *appControllers.RsvpController
	ReminderController *appControllers.ReminderController
	Logger             zerolog.Logger
}

// Database is an opened store plus the function that releases it
type Database struct {
	Store appServices.Store
	Close func()
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	lgr := logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase opens the configured store and brings its schema up to date.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*Database, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		lgr.Info().Str("path", cfg.Database.SQLitePath).Msg("Opening SQLite store...")
		store, err := sqlite.Open(cfg.Database.SQLitePath, logger.Component("migrations"))
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to open SQLite store")
			return nil, err
		}
		return &Database{
			Store: store,
			Close: func() {
				if err := store.Close(); err != nil {
					lgr.Error().Err(err).Msg("Failed to close SQLite store")
				}
			},
		}, nil

	case config.DriverPostgres:
		lgr.Info().Msg("Establishing database connection...")
		database, err := db.NewPostgresDB(cfg.Database)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to connect to database")
			return nil, err
		}
		lgr.Info().Msg("Database connection successfully established.")

		migrationsDir := cfg.Database.MigrationsDir
		if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
			database.Close()
			lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
			return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
		}

		lgr.Info().Msg("Running database migrations...")
		migrator := appMigrations.NewMigrator(appMigrations.PostgresTarget(database.Pool), logger.Component("migrations"))
		if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
			database.Close()
			lgr.Error().Err(err).Msg("Database migration error")
			return nil, fmt.Errorf("database migrations failed: %w", err)
		}
		lgr.Info().Msg("Database migrations successfully applied.")

		return &Database{
			Store: appRepos.NewStore(database),
			Close: database.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// BuildDependencies initializes the notifier, services, scheduler and controllers.
func BuildDependencies(cfg *config.Config, store appServices.Store, lgr zerolog.Logger) *Dependencies {
	deps := &Dependencies{
		Store:  store,
		Clock:  window.SystemClock{},
		Logger: lgr,
	}

	deps.Notifier = email.NewNotifier(email.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromName:  cfg.SMTP.FromName,
		FromEmail: cfg.SMTP.From,
		UseTLS:    cfg.SMTP.UseTLS,
		BaseURL:   cfg.Server.PublicURL,
	}, logger.Component("email"))

	lead := helpers.ParseDuration(cfg.Reminders.Lead, window.ReminderLead)
	interval := helpers.ParseDuration(cfg.Reminders.Interval, appServices.DefaultReminderInterval)

	deps.EventService = appServices.NewEventService(store, deps.Notifier, cfg.Notifications.Publishers, deps.Clock, cfg.Engine.MaxAttempts, logger.Component("events"))
	deps.RsvpService = appServices.NewRsvpService(store, deps.Clock, cfg.Engine.MaxAttempts, logger.Component("rsvps"))
	deps.ReminderService = appServices.NewReminderService(store, deps.Notifier, lead, logger.Component("reminders"))
	deps.Scheduler = appServices.NewScheduler(deps.ReminderService, deps.Clock, interval, logger.Component("scheduler"))

	deps.EventController = appControllers.NewEventController(deps.EventService)
	deps.RsvpController = appControllers.NewRsvpController(deps.RsvpService)
	deps.ReminderController = appControllers.NewReminderController(deps.ReminderService, deps.Clock)

	return deps
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(appMiddleware.RequestLogger(logger.Component("http")))

	appRoutes.SetupRouter(router,
		deps.EventController,
		deps.RsvpController,
		deps.ReminderController,
	)
	return router
}
