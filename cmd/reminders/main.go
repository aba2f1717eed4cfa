// Command reminders runs a single reminder tick and prints what it sent.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yigit/eventsignup/internal/bootstrap"
	"github.com/yigit/eventsignup/internal/pkg/logger"
)

func main() {
	nowFlag := flag.String("now", "", "run the tick as of this RFC 3339 instant instead of the current time")
	flag.Parse()

	now := time.Now().UTC()
	if *nowFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			logger.Error().Err(err).Str("now", *nowFlag).Msg("Invalid --now value")
			os.Exit(2)
		}
		now = parsed.UTC()
	}

	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger()
	if err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := bootstrap.SetupDatabase(ctx, cfg, lgr)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to setup database")
		os.Exit(1)
	}
	defer database.Close()

	deps := bootstrap.BuildDependencies(cfg, database.Store, lgr)
	result, err := deps.ReminderService.RunTick(ctx, now)
	if err != nil {
		lgr.Error().Err(err).Msg("Reminder tick failed")
		database.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		lgr.Error().Err(err).Msg("Failed to print tick result")
	}
}
