package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"snake-dqn/config"
	"snake-dqn/history"
	"snake-dqn/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	episodes := flag.Int("episodes", 0, "override train.episodes")
	seed := flag.Uint64("seed", 0, "override train.seed (0 picks a time-based seed)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *episodes > 0 {
		cfg.Train.Episodes = *episodes
	}
	if *seed != 0 {
		cfg.Train.Seed = *seed
	}
	if cfg.Train.Seed == 0 {
		cfg.Train.Seed = uint64(time.Now().UnixNano())
	}

	log := logging.New("snake-dqn", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("training failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	store, err := history.NewStore(cfg.History.Store, cfg.History.Path)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init history store: %w", err)
	}
	defer store.Close()

	runID := uuid.NewString()
	log = log.With().Str("run", runID).Logger()
	log.Info().Uint64("seed", cfg.Train.Seed).Int("episodes", cfg.Train.Episodes).
		Str("history", cfg.History.Store).Msg("training started")

	trainer, err := NewTrainer(cfg, log, store, runID)
	if err != nil {
		return err
	}
	if err := trainer.Run(ctx); err != nil {
		return err
	}

	if cfg.Train.StatsFile != "" {
		if err := trainer.Stats().SaveToFile(cfg.Train.StatsFile); err != nil {
			return err
		}
	}

	syncs, err := store.ListSyncs(context.WithoutCancel(ctx), runID)
	if err != nil {
		return fmt.Errorf("read sync history: %w", err)
	}
	log.Info().
		Int("games", trainer.Stats().GetGamesPlayed()).
		Float64("avg_score", trainer.Stats().GetAverageScore()).
		Int("best_score", trainer.Stats().GetMaxScore()).
		Int("syncs", len(syncs)).
		Msg("training finished")
	return nil
}
