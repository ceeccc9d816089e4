package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"

	"snake-dqn/logging"
)

type Config struct {
	Train   TrainConfig    `toml:"train"`
	Sync    SyncConfig     `toml:"sync"`
	Log     logging.Config `toml:"log"`
	History HistoryConfig  `toml:"history"`
}

type TrainConfig struct {
	Episodes     int     `toml:"episodes"`
	MaxSteps     int     `toml:"max_steps"`
	GridWidth    int     `toml:"grid_width"`
	GridHeight   int     `toml:"grid_height"`
	LearningRate float64 `toml:"learning_rate"`
	Discount     float64 `toml:"discount"`
	BatchSize    int     `toml:"batch_size"`
	ReplaySize   int     `toml:"replay_size"`
	WeightsFile  string  `toml:"weights_file"`
	StatsFile    string  `toml:"stats_file"`

	// SaveEvery is the step interval between weight checkpoints; 0 saves only at the end.
	SaveEvery int    `toml:"save_every"`
	Seed      uint64 `toml:"seed"`
}

// SyncConfig drives the target network mirror.
type SyncConfig struct {
	Every       int    `toml:"every"`
	From        string `toml:"from"`
	To          string `toml:"to"`
	AtStepStart bool   `toml:"step_start"`
}

type HistoryConfig struct {
	Store string `toml:"store"`
	Path  string `toml:"path"`
}

func Default() Config {
	return Config{
		Train: TrainConfig{
			Episodes:     500,
			MaxSteps:     1000,
			GridWidth:    20,
			GridHeight:   20,
			LearningRate: 0.005,
			Discount:     0.95,
			BatchSize:    32,
			ReplaySize:   5000,
			WeightsFile:  "data/dqn_weights.gob",
			StatsFile:    "data/stats.json",
			SaveEvery:    5000,
		},
		Sync: SyncConfig{
			Every: 100,
			From:  "online",
			To:    "target",
		},
		Log: logging.Config{Level: "info"},
		History: HistoryConfig{
			Store: "memory",
		},
	}
}

// Load decodes path on top of Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Train.Episodes <= 0 {
		errs = append(errs, errors.New("train.episodes must be positive"))
	}
	if c.Train.MaxSteps <= 0 {
		errs = append(errs, errors.New("train.max_steps must be positive"))
	}
	if c.Train.GridWidth < 4 || c.Train.GridHeight < 4 {
		errs = append(errs, errors.New("train grid must be at least 4x4"))
	}
	if c.Train.BatchSize <= 0 || c.Train.ReplaySize < c.Train.BatchSize {
		errs = append(errs, errors.New("train.replay_size must hold at least one batch"))
	}
	if c.Train.SaveEvery < 0 {
		errs = append(errs, errors.New("train.save_every must not be negative"))
	}
	if c.Sync.Every <= 0 {
		errs = append(errs, errors.New("sync.every must be positive"))
	}
	if c.Sync.To == "" {
		errs = append(errs, errors.New("sync.to is required"))
	}
	if c.Sync.From == c.Sync.To {
		errs = append(errs, errors.New("sync.from and sync.to must differ"))
	}
	switch c.History.Store {
	case "", "memory":
	case "sqlite":
		if c.History.Path == "" {
			errs = append(errs, errors.New("history.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported history.store %q", c.History.Store))
	}
	return errors.Join(errs...)
}
