package history

import (
	"context"
	"time"
)

// Event records one completed parameter sync.
type Event struct {
	RunID      string    `json:"run_id"`
	Step       int       `json:"step"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Directives int       `json:"directives"`
	At         time.Time `json:"at"`
}

// Recorder is the write side used by callbacks.
type Recorder interface {
	AppendSync(ctx context.Context, ev Event) error
}

// Store persists sync events per training run.
type Store interface {
	Recorder
	Init(ctx context.Context) error
	ListSyncs(ctx context.Context, runID string) ([]Event, error)
	Close() error
}
