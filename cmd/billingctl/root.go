package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"backoffice/internal/app"
	"backoffice/internal/config"
	"backoffice/internal/database"
	"backoffice/internal/events"
	"backoffice/internal/logger"
	"backoffice/internal/model"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var (
	asOfFlag   string
	actorFlag  string
	eventsFlag bool
)

var rootCmd = &cobra.Command{
	Use:     "billingctl",
	Short:   "Run contract billing jobs",
	Long:    "billingctl generates due invoices, renews or expires contracts and previews billing schedules against the configured database.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return logger.Setup(logger.Config{Level: cfg.LogLevel, Format: "console"})
	},
}

func Execute() {
	log := logger.WithComponent("cmd")
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", events.SystemActor, "Actor recorded in the audit log")
	rootCmd.PersistentFlags().BoolVar(&eventsFlag, "events", false, "Print a count of published events per action")
}

// session holds what a command needs to call the services.
type session struct {
	ctx      context.Context
	services *app.Services
	recorder *events.Recorder
	close    func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.NewConnection(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	ctx := events.WithActor(cmd.Context(), actorFlag)
	priceCache, closeCache := app.NewPriceCache(ctx, cfg)
	recorder := &events.Recorder{}
	rt := &session{
		ctx:      ctx,
		services: app.NewServices(cfg, db, priceCache, events.Multi{recorder, events.LogPublisher{}}),
		recorder: recorder,
		close: func() {
			closeCache()
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}
	return rt, nil
}

func (rt *session) finish(cmd *cobra.Command) {
	if eventsFlag {
		counts := map[string]int{}
		for _, action := range rt.recorder.Actions() {
			counts[action]++
		}
		actions := make([]string, 0, len(counts))
		for a := range counts {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		for _, a := range actions {
			fmt.Fprintf(cmd.ErrOrStderr(), "%-28s %d\n", a, counts[a])
		}
	}
	rt.close()
}

func parseAsOf() (time.Time, error) {
	if asOfFlag == "" {
		return model.DateOnly(time.Now()), nil
	}
	t, err := time.Parse(model.DateLayout, asOfFlag)
	if err != nil {
		return time.Time{}, fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
