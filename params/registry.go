package params

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	ErrNotFound      = errors.New("parameter not found")
	ErrDuplicate     = errors.New("parameter already registered")
	ErrShapeMismatch = errors.New("parameter shape mismatch")
)

// Param is a named value cell owned by a Registry.
type Param struct {
	Name      string
	Value     *tensor.Dense
	Trainable bool
}

// Assign copies the current value of Src into Dst.
type Assign struct {
	Src *Param
	Dst *Param
}

// Registry owns the parameters of one or more networks, addressed by name.
type Registry struct {
	mu     sync.RWMutex
	order  []*Param
	byName map[string]*Param
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Param)}
}

// Add registers value under name. The registry keeps the pointer, it does not copy.
func (r *Registry) Add(name string, value *tensor.Dense, trainable bool) (*Param, error) {
	name = Canonical(name)
	if name == "" {
		return nil, errors.New("parameter name is required")
	}
	if value == nil {
		return nil, errors.Errorf("parameter %s has no value", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return nil, errors.Wrap(ErrDuplicate, name)
	}
	p := &Param{Name: name, Value: value, Trainable: trainable}
	r.order = append(r.order, p)
	r.byName[name] = p
	return p, nil
}

// MustAdd is Add for network constructors with fixed, known-unique names.
func (r *Registry) MustAdd(name string, value *tensor.Dense, trainable bool) *Param {
	p, err := r.Add(name, value, trainable)
	if err != nil {
		panic(err)
	}
	return p
}

// Lookup accepts canonical names and names carrying an output suffix.
func (r *Registry) Lookup(name string) (*Param, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[Canonical(name)]
	return p, ok
}

// Trainable lists trainable parameters under prefix in registration order.
func (r *Registry) Trainable(prefix string) []*Param {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Param
	for _, p := range r.order {
		if !p.Trainable {
			continue
		}
		if _, ok := Rel(prefix, p.Name); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	for i, p := range r.order {
		names[i] = p.Name
	}
	return names
}

// ExecuteBatch applies every assignment against one snapshot of the sources:
// all sources are read before any destination is written, so chained or
// swapped pairs behave as if copied simultaneously. Validation covers the whole
// batch first and a failure leaves every destination untouched.
func (r *Registry) ExecuteBatch(ctx context.Context, batch []Assign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range batch {
		if err := r.validate(a); err != nil {
			return errors.Wrapf(err, "assign %d", i)
		}
	}

	snapshot := make([]*tensor.Dense, len(batch))
	for i, a := range batch {
		snapshot[i] = a.Src.Value.Clone().(*tensor.Dense)
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "execute batch")
	}

	for i, a := range batch {
		if err := tensor.Copy(a.Dst.Value, snapshot[i]); err != nil {
			return errors.Wrapf(err, "copy %s -> %s", a.Src.Name, a.Dst.Name)
		}
	}
	return nil
}

func (r *Registry) validate(a Assign) error {
	if a.Src == nil || a.Dst == nil {
		return errors.New("assignment has a nil parameter")
	}
	if r.byName[a.Src.Name] != a.Src {
		return errors.Wrap(ErrNotFound, a.Src.Name)
	}
	if r.byName[a.Dst.Name] != a.Dst {
		return errors.Wrap(ErrNotFound, a.Dst.Name)
	}
	if a.Src.Value.Dtype() != a.Dst.Value.Dtype() {
		return errors.Errorf("dtype mismatch: %s is %v, %s is %v",
			a.Src.Name, a.Src.Value.Dtype(), a.Dst.Name, a.Dst.Value.Dtype())
	}
	if !a.Src.Value.Shape().Eq(a.Dst.Value.Shape()) {
		return errors.Wrapf(ErrShapeMismatch, "%s %v, %s %v",
			a.Src.Name, a.Src.Value.Shape(), a.Dst.Name, a.Dst.Value.Shape())
	}
	return nil
}
