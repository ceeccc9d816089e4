// Package callback schedules hooks around the steps of a training loop.
package callback

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Phase is the point in the training lifecycle at which a callback runs.
type Phase int

const (
	TrainStart Phase = iota
	StepStart
	StepEnd
	TrainEnd
)

func (p Phase) String() string {
	switch p {
	case TrainStart:
		return "train_start"
	case StepStart:
		return "step_start"
	case StepEnd:
		return "step_end"
	case TrainEnd:
		return "train_end"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Callback is invoked by a Scheduler.
type Callback interface {
	Run(ctx context.Context, step int) error
}

// Func adapts a plain function to Callback.
type Func func(ctx context.Context, step int) error

func (f Func) Run(ctx context.Context, step int) error { return f(ctx, step) }

// Registrar is the registration half of a Scheduler.
type Registrar interface {
	Register(phase Phase, every int, cb Callback) error
}

var ErrInvalidInterval = errors.New("callback interval must be positive")

type entry struct {
	every int
	cb    Callback
}

// Scheduler fires registered callbacks in registration order. It is not safe
// for concurrent use; the training loop owns it.
type Scheduler struct {
	hooks map[Phase][]entry
}

func NewScheduler() *Scheduler {
	return &Scheduler{hooks: make(map[Phase][]entry)}
}

// Register adds cb to phase. Step phases fire on steps divisible by every;
// train phases ignore every.
func (s *Scheduler) Register(phase Phase, every int, cb Callback) error {
	if cb == nil {
		return errors.New("nil callback")
	}
	switch phase {
	case StepStart, StepEnd:
		if every <= 0 {
			return errors.Wrapf(ErrInvalidInterval, "%s every %d", phase, every)
		}
	case TrainStart, TrainEnd:
		every = 1
	default:
		return errors.Errorf("unknown phase %s", phase)
	}
	s.hooks[phase] = append(s.hooks[phase], entry{every: every, cb: cb})
	return nil
}

// Len reports how many callbacks are registered for phase.
func (s *Scheduler) Len(phase Phase) int {
	return len(s.hooks[phase])
}

// Begin fires TrainStart callbacks.
func (s *Scheduler) Begin(ctx context.Context) error {
	return s.fire(ctx, TrainStart, 0)
}

// End fires TrainEnd callbacks with the last completed step.
func (s *Scheduler) End(ctx context.Context, step int) error {
	return s.fire(ctx, TrainEnd, step)
}

// Step runs one training step: due StepStart callbacks, body, then due StepEnd
// callbacks. Steps are 1-based. The first error stops the step.
func (s *Scheduler) Step(ctx context.Context, step int, body func(ctx context.Context) error) error {
	if step <= 0 {
		return errors.Errorf("step must be positive, got %d", step)
	}
	if err := s.fire(ctx, StepStart, step); err != nil {
		return err
	}
	if body != nil {
		if err := body(ctx); err != nil {
			return errors.Wrapf(err, "step %d", step)
		}
	}
	return s.fire(ctx, StepEnd, step)
}

func (s *Scheduler) fire(ctx context.Context, phase Phase, step int) error {
	for _, e := range s.hooks[phase] {
		if (phase == StepStart || phase == StepEnd) && step%e.every != 0 {
			continue
		}
		if err := e.cb.Run(ctx, step); err != nil {
			return errors.Wrapf(err, "%s callback at step %d", phase, step)
		}
	}
	return nil
}
