package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"snake-dqn/callback"
	"snake-dqn/config"
	"snake-dqn/history"
	"snake-dqn/qlearning"
)

const logEvery = 50

// Trainer runs episodes of the snake game against one DQN agent.
type Trainer struct {
	cfg   config.TrainConfig
	log   zerolog.Logger
	agent *qlearning.Agent
	stats *GameStats
	rng   *rand.Rand
}

func NewTrainer(cfg config.Config, log zerolog.Logger, rec history.Recorder, runID string) (*Trainer, error) {
	agent, err := qlearning.NewAgent(qlearning.Options{
		LearningRate: cfg.Train.LearningRate,
		Discount:     cfg.Train.Discount,
		BatchSize:    cfg.Train.BatchSize,
		ReplaySize:   cfg.Train.ReplaySize,
		Seed:         cfg.Train.Seed,
		Sync: callback.MirrorConfig{
			Every:       cfg.Sync.Every,
			From:        cfg.Sync.From,
			To:          cfg.Sync.To,
			AtStepStart: cfg.Sync.AtStepStart,
		},
		Logger:   log,
		Recorder: rec,
		RunID:    runID,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Train.WeightsFile != "" {
		if err := agent.LoadWeights(cfg.Train.WeightsFile); err != nil {
			return nil, err
		}
	}

	t := &Trainer{
		cfg:   cfg.Train,
		log:   log,
		agent: agent,
		stats: NewGameStats(),
		rng:   rand.New(rand.NewSource(cfg.Train.Seed + 1)),
	}

	sched := agent.Scheduler()
	if cfg.Train.SaveEvery > 0 {
		if err := sched.Register(callback.StepEnd, cfg.Train.SaveEvery, callback.Func(t.checkpoint)); err != nil {
			return nil, err
		}
	}
	if err := sched.Register(callback.TrainEnd, 0, callback.Func(t.checkpoint)); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trainer) Stats() *GameStats { return t.stats }

func (t *Trainer) Agent() *qlearning.Agent { return t.agent }

func (t *Trainer) checkpoint(_ context.Context, step int) error {
	if t.cfg.WeightsFile == "" {
		return nil
	}
	if err := t.agent.SaveWeights(t.cfg.WeightsFile); err != nil {
		return err
	}
	t.log.Debug().Str("step", humanize.Comma(int64(step))).Str("file", t.cfg.WeightsFile).Msg("weights saved")
	return nil
}

// Run plays the configured number of episodes. Cancelling ctx stops after the
// current episode; the final checkpoint still runs.
func (t *Trainer) Run(ctx context.Context) error {
	sched := t.agent.Scheduler()
	if err := sched.Begin(ctx); err != nil {
		return err
	}

	for episode := 1; episode <= t.cfg.Episodes; episode++ {
		if ctx.Err() != nil {
			t.log.Warn().Int("episode", episode).Msg("training interrupted")
			break
		}
		if err := t.playEpisode(ctx); err != nil {
			return fmt.Errorf("episode %d: %w", episode, err)
		}
		if episode%logEvery == 0 || episode == t.cfg.Episodes {
			t.log.Info().
				Int("episode", episode).
				Str("steps", humanize.Comma(int64(t.agent.Steps))).
				Float64("avg_score", t.stats.GetAverageScore()).
				Int("best_score", t.stats.GetMaxScore()).
				Float64("epsilon", t.agent.Epsilon).
				Int("syncs", t.agent.Mirror().Fired()).
				Int("sync_every", t.agent.Mirror().Config().Every).
				Msg("training progress")
		}
	}

	return sched.End(context.WithoutCancel(ctx), t.agent.Steps)
}

func (t *Trainer) playEpisode(ctx context.Context) error {
	game := NewGame(t.cfg.GridWidth, t.cfg.GridHeight, t.rng)
	sa := NewSnakeAgent(t.agent, game)
	start := time.Now()
	// The episode always runs to completion; Run checks ctx between episodes.
	stepCtx := context.WithoutCancel(ctx)

	for game.Steps < t.cfg.MaxSteps && !game.GetSnake().Dead {
		if err := sa.Update(stepCtx); err != nil {
			return err
		}
	}

	snake := game.GetSnake()
	t.stats.AddGame(snake.Score, game.Steps, start, time.Now())
	t.agent.IncrementEpisode()
	t.log.Trace().Int("score", snake.Score).Int("steps", game.Steps).
		Stringer("collision", snake.LastCollisionType).Msg("episode finished")
	return nil
}
