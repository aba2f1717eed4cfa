package main

import (
	"os"

	"github.com/yigit/eventsignup/internal/pkg/logger"
	"github.com/yigit/eventsignup/internal/server"
)

// @title Event Signup API
// @version 1.0
// @description Event submission, rsvp waitlists and reminders
// @BasePath /api/v1
// @schemes http https

func main() {
	srv, err := server.NewServer()
	if err != nil {
		// Setup functions log their own details
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	// Blocks until shutdown
	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
