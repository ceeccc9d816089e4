package callback

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestSchedulerFiresOnInterval(t *testing.T) {
	s := NewScheduler()
	var fired []int
	if err := s.Register(StepStart, 5, Func(func(_ context.Context, step int) error {
		fired = append(fired, step)
		return nil
	})); err != nil {
		t.Fatalf("register: %v", err)
	}

	for step := 1; step <= 16; step++ {
		if err := s.Step(context.Background(), step, nil); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}

	want := []int{5, 10, 15}
	if len(fired) != len(want) {
		t.Fatalf("fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	}
}

func TestSchedulerPhaseOrder(t *testing.T) {
	s := NewScheduler()
	var trace []string
	record := func(name string) Callback {
		return Func(func(context.Context, int) error {
			trace = append(trace, name)
			return nil
		})
	}
	_ = s.Register(StepEnd, 1, record("end"))
	_ = s.Register(StepStart, 1, record("start"))
	_ = s.Register(TrainStart, 0, record("begin"))
	_ = s.Register(TrainEnd, 0, record("finish"))

	ctx := context.Background()
	if err := s.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Step(ctx, 1, func(context.Context) error {
		trace = append(trace, "body")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.End(ctx, 1); err != nil {
		t.Fatal(err)
	}

	want := []string{"begin", "start", "body", "end", "finish"}
	if len(trace) != len(want) {
		t.Fatalf("trace %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace %v, want %v", trace, want)
		}
	}
}

func TestSchedulerRejectsBadRegistrations(t *testing.T) {
	s := NewScheduler()
	noop := Func(func(context.Context, int) error { return nil })
	if err := s.Register(StepEnd, 0, noop); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if err := s.Register(StepStart, -3, noop); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if err := s.Register(StepStart, 1, nil); err == nil {
		t.Fatal("expected nil callback error")
	}
	if err := s.Step(context.Background(), 0, nil); err == nil {
		t.Fatal("expected error for step 0")
	}
}

func TestSchedulerStopsAtFirstError(t *testing.T) {
	s := NewScheduler()
	boom := errors.New("boom")
	calls := 0
	_ = s.Register(StepEnd, 1, Func(func(context.Context, int) error { return boom }))
	_ = s.Register(StepEnd, 1, Func(func(context.Context, int) error {
		calls++
		return nil
	}))

	err := s.Step(context.Background(), 3, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("second callback ran %d times after failure", calls)
	}
}
