package callback

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"snake-dqn/history"
	"snake-dqn/params"
)

// Runtime is the parameter store a ParameterMirror reads from and writes to.
type Runtime interface {
	Trainable(prefix string) []*params.Param
	ExecuteBatch(ctx context.Context, batch []params.Assign) error
}

// MirrorConfig selects the two parameter groups and the trigger schedule.
type MirrorConfig struct {
	// Every is the step interval between copies.
	Every int
	// From is the source scope; empty means unscoped root parameters.
	From string
	// To is the destination scope.
	To string
	// AtStepStart fires before the step body instead of after it.
	AtStepStart bool
}

// MissingSourceError reports a destination parameter without a counterpart in the source scope.
type MissingSourceError struct {
	Destination string
	Source      string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("missing source parameter: %s (from %s)", e.Source, e.Destination)
}

// ParameterMirror copies every trainable parameter of one scope into the
// matching parameter of another scope on a fixed step interval. The copy list
// is resolved once at construction and never changes.
type ParameterMirror struct {
	cfg        MirrorConfig
	rt         Runtime
	directives []params.Assign
	log        zerolog.Logger
	recorder   history.Recorder
	runID      string
	fired      int
}

type MirrorOption func(*ParameterMirror)

func WithLogger(log zerolog.Logger) MirrorOption {
	return func(m *ParameterMirror) { m.log = log }
}

// WithRecorder appends a history event for every completed copy.
func WithRecorder(rec history.Recorder, runID string) MirrorOption {
	return func(m *ParameterMirror) {
		m.recorder = rec
		m.runID = runID
	}
}

// NewParameterMirror resolves the copy list and registers the mirror on reg.
// Construction is all-or-nothing: any unresolved destination fails it and
// nothing is registered.
func NewParameterMirror(reg Registrar, rt Runtime, cfg MirrorConfig, opts ...MirrorOption) (*ParameterMirror, error) {
	if cfg.Every <= 0 {
		return nil, errors.Wrapf(ErrInvalidInterval, "mirror every %d", cfg.Every)
	}
	m := &ParameterMirror{cfg: cfg, rt: rt, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("component", "model_sync").Str("from", cfg.From).Str("to", cfg.To).Logger()

	directives, err := resolve(rt, cfg.From, cfg.To)
	if err != nil {
		return nil, err
	}
	m.directives = directives

	m.log.Info().Int("every", cfg.Every).Bool("step_start", cfg.AtStepStart).
		Msgf("add callback: sync model from namescope %q to namescope %q", cfg.From, cfg.To)
	for _, d := range directives {
		m.log.Info().Msgf("add op for syncing from var %s to var %s", d.Src.Name, d.Dst.Name)
	}
	if len(directives) == 0 {
		m.log.Warn().Msg("destination scope has no trainable parameters; sync is a no-op")
	}

	phase := StepEnd
	if cfg.AtStepStart {
		phase = StepStart
	}
	if err := reg.Register(phase, cfg.Every, m); err != nil {
		return nil, errors.Wrap(err, "register model sync")
	}
	return m, nil
}

// resolve pairs each destination with the source of the same relative name.
// Sources are looked up among trainable parameters only, so a frozen parameter
// under from never satisfies a destination.
func resolve(rt Runtime, from, to string) ([]params.Assign, error) {
	sources := make(map[string]*params.Param)
	for _, p := range rt.Trainable(from) {
		sources[p.Name] = p
	}

	dsts := rt.Trainable(to)
	out := make([]params.Assign, 0, len(dsts))
	for _, dst := range dsts {
		rel, ok := params.Rel(to, dst.Name)
		if !ok {
			return nil, errors.Errorf("parameter %s is outside scope %q", dst.Name, to)
		}
		name := params.Join(from, rel)
		src, ok := sources[name]
		if !ok {
			return nil, &MissingSourceError{Destination: dst.Name, Source: name}
		}
		out = append(out, params.Assign{Src: src, Dst: dst})
	}
	return out, nil
}

// Run copies all source values into their destinations as one batch.
func (m *ParameterMirror) Run(ctx context.Context, step int) error {
	if err := m.rt.ExecuteBatch(ctx, m.directives); err != nil {
		return errors.Wrapf(err, "sync %q -> %q", m.cfg.From, m.cfg.To)
	}
	m.fired++
	m.log.Debug().Int("step", step).Int("params", len(m.directives)).Msg("model synced")

	if m.recorder != nil {
		ev := history.Event{
			RunID:      m.runID,
			Step:       step,
			From:       m.cfg.From,
			To:         m.cfg.To,
			Directives: len(m.directives),
			At:         time.Now().UTC(),
		}
		if err := m.recorder.AppendSync(ctx, ev); err != nil {
			return errors.Wrap(err, "record sync")
		}
	}
	return nil
}

// Directives returns a copy of the resolved copy list, in destination order.
func (m *ParameterMirror) Directives() []params.Assign {
	return append([]params.Assign(nil), m.directives...)
}

// Fired reports how many copies have completed.
func (m *ParameterMirror) Fired() int { return m.fired }

func (m *ParameterMirror) Config() MirrorConfig { return m.cfg }
