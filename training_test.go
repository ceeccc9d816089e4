package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"snake-dqn/callback"
	"snake-dqn/config"
	"snake-dqn/history"
)

func smallConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Train.Episodes = 3
	cfg.Train.MaxSteps = 20
	cfg.Train.GridWidth = 8
	cfg.Train.GridHeight = 8
	cfg.Train.BatchSize = 4
	cfg.Train.ReplaySize = 32
	cfg.Train.Seed = 11
	cfg.Train.SaveEvery = 0
	cfg.Train.WeightsFile = filepath.Join(t.TempDir(), "weights.gob")
	cfg.Sync.Every = 5
	return cfg
}

func TestTrainerRunsAndMirrors(t *testing.T) {
	ctx := context.Background()
	cfg := smallConfig(t)
	store := history.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}

	trainer, err := NewTrainer(cfg, zerolog.Nop(), store, "test-run")
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	if err := trainer.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := trainer.Stats().GetGamesPlayed(); got != cfg.Train.Episodes {
		t.Fatalf("games played = %d", got)
	}
	steps := trainer.Agent().Steps
	events, err := store.ListSyncs(ctx, "test-run")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != steps/cfg.Sync.Every {
		t.Fatalf("%d sync events for %d steps", len(events), steps)
	}
	for _, ev := range events {
		if ev.Step%cfg.Sync.Every != 0 || ev.From != "online" || ev.To != "target" {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	if _, err := os.Stat(cfg.Train.WeightsFile); err != nil {
		t.Fatalf("final checkpoint missing: %v", err)
	}
}

func TestTrainerStopsOnCancelledContext(t *testing.T) {
	cfg := smallConfig(t)
	trainer, err := NewTrainer(cfg, zerolog.Nop(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := trainer.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if trainer.Stats().GetGamesPlayed() != 0 {
		t.Fatal("episodes played after cancellation")
	}
	if _, err := os.Stat(cfg.Train.WeightsFile); err != nil {
		t.Fatalf("final checkpoint missing: %v", err)
	}
}

func TestTrainerFinishesEpisodeWhenCancelledMidStep(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Sync.Every = 2
	trainer, err := NewTrainer(cfg, zerolog.Nop(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err = trainer.Agent().Scheduler().Register(callback.StepStart, 1, callback.Func(func(_ context.Context, step int) error {
		if step == 1 {
			cancel()
		}
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	if err := trainer.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := trainer.Stats().GetGamesPlayed(); got != 1 {
		t.Fatalf("games played = %d, want 1", got)
	}
	if trainer.Agent().Steps >= 2 && trainer.Agent().Mirror().Fired() == 0 {
		t.Fatal("mirror skipped after cancellation")
	}
	if _, err := os.Stat(cfg.Train.WeightsFile); err != nil {
		t.Fatalf("final checkpoint missing: %v", err)
	}
}
