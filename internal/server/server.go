package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/bootstrap"
	"github.com/yigit/eventsignup/internal/config"
	"github.com/yigit/eventsignup/internal/seed"
)

// Server holds the state for the HTTP server and the reminder scheduler.
type Server struct {
	config   *config.Config
	router   *gin.Engine
	database *bootstrap.Database
	deps     *bootstrap.Dependencies
	logger   zerolog.Logger
	http     *http.Server

	stopScheduler context.CancelFunc
	schedulerDone sync.WaitGroup
}

// NewServer creates and initializes a new server instance by calling bootstrap functions.
func NewServer() (*Server, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to load config or setup logger: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	database, err := bootstrap.SetupDatabase(ctx, cfg, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	deps := bootstrap.BuildDependencies(cfg, database.Store, lgr)
	if cfg.Database.SeedDemo {
		if err := seed.CreateDemoData(ctx, deps.EventService, deps.Clock.Now(), lgr); err != nil {
			// Demo data is optional
			lgr.Error().Err(err).Msg("Failed to create demo data, proceeding anyway...")
		}
	}
	router := bootstrap.SetupRouter(cfg, deps, lgr)

	return &Server{
		config:   cfg,
		router:   router,
		database: database,
		deps:     deps,
		logger:   lgr,
	}, nil
}

// Run starts the HTTP server and the reminder scheduler and handles graceful shutdown.
func (s *Server) Run() error {
	s.logger.Info().Str("port", s.config.Server.Port).Msg("Starting server...")

	s.http = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if s.config.Reminders.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopScheduler = cancel
		s.schedulerDone.Add(1)
		go func() {
			defer s.schedulerDone.Done()
			s.deps.Scheduler.Run(ctx)
		}()
	} else {
		s.logger.Info().Msg("Reminder scheduler disabled")
	}

	// Channel to listen for errors starting the server
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
		serverErrors <- s.http.ListenAndServe()
	}()

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)

	// Block until we receive either a server error or an OS signal
	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("error starting server: %w", err)
		}
	case sig := <-osSignals:
		s.logger.Info().Str("signal", sig.String()).Msg("Received OS signal, initiating shutdown...")
	}

	if err := s.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown gracefully stops the server, waits for the scheduler and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	shutdownError := false

	if s.http != nil {
		s.logger.Info().Msg("Shutting down HTTP server...")
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("HTTP server shutdown error")
			shutdownError = true
		} else {
			s.logger.Info().Msg("HTTP server gracefully stopped.")
		}
	}

	if s.stopScheduler != nil {
		s.logger.Info().Msg("Stopping reminder scheduler...")
		s.stopScheduler()
		s.schedulerDone.Wait()
	}

	if s.database != nil {
		s.logger.Info().Msg("Closing database...")
		s.database.Close()
		s.logger.Info().Msg("Database closed.")
	}

	s.logger.Info().Msg("Server shutdown process complete.")
	if shutdownError {
		return errors.New("server shutdown completed with errors")
	}
	return nil
}
