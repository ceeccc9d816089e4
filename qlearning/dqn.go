package qlearning

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"snake-dqn/callback"
	"snake-dqn/history"
	"snake-dqn/params"
)

func init() {
	gob.Register(&tensor.Dense{})
	gob.Register(map[string]*tensor.Dense{})
}

const (
	InitialEpsilon = 1.0
	EpsilonDecay   = 0.99
	MinEpsilon     = 0.01

	HiddenLayerSize = 12
	InputFeatures   = 7 // 4 food direction one-hot + 3 danger flags
	OutputActions   = 3
	GradientClip    = 0.5
	L2Reg           = 1e-6
)

// Local parameter names shared by the online and target networks.
var layerNames = []string{"w1", "b1", "w2", "b2"}

// Transition is a single environment step.
type Transition struct {
	State     []float64
	Action    int
	Reward    float64
	NextState []float64
	Done      bool
}

// ReplayBuffer stores experience for training.
type ReplayBuffer struct {
	buffer   []Transition
	maxSize  int
	position int
	size     int
}

func NewReplayBuffer(maxSize int) *ReplayBuffer {
	return &ReplayBuffer{
		buffer:  make([]Transition, maxSize),
		maxSize: maxSize,
	}
}

func (b *ReplayBuffer) Add(t Transition) {
	b.buffer[b.position] = t
	b.position = (b.position + 1) % b.maxSize
	if b.size < b.maxSize {
		b.size++
	}
}

func (b *ReplayBuffer) Len() int { return b.size }

// Sample draws a batch with replacement.
func (b *ReplayBuffer) Sample(rng *rand.Rand, batchSize int) []Transition {
	if batchSize > b.size {
		batchSize = b.size
	}

	batch := make([]Transition, batchSize)
	for i := 0; i < batchSize; i++ {
		batch[i] = b.buffer[rng.Intn(b.size)]
	}
	return batch
}

// DQN is a two layer network whose weights live in a params.Registry under one scope.
type DQN struct {
	w1, b1, w2, b2 *params.Param
}

// NewDQN registers scope/w1, scope/b1, scope/w2 and scope/b2 in reg.
func NewDQN(reg *params.Registry, scope string) (*DQN, error) {
	layout := map[string]struct {
		shape []int
		fn    gorgonia.InitWFn
	}{
		"w1": {[]int{InputFeatures, HiddenLayerSize}, gorgonia.GlorotU(1.0)},
		"b1": {[]int{1, HiddenLayerSize}, gorgonia.Zeroes()},
		"w2": {[]int{HiddenLayerSize, OutputActions}, gorgonia.GlorotU(1.0)},
		"b2": {[]int{1, OutputActions}, gorgonia.Zeroes()},
	}

	layers := make(map[string]*params.Param, len(layerNames))
	for _, name := range layerNames {
		l := layout[name]
		value := tensor.New(
			tensor.WithShape(l.shape...),
			tensor.WithBacking(l.fn(tensor.Float64, l.shape...)),
		)
		p, err := reg.Add(params.Join(scope, name), value, true)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		layers[name] = p
	}

	return &DQN{
		w1: layers["w1"],
		b1: layers["b1"],
		w2: layers["w2"],
		b2: layers["b2"],
	}, nil
}

func (dqn *DQN) Params() []*params.Param {
	return []*params.Param{dqn.w1, dqn.b1, dqn.w2, dqn.b2}
}

// Forward evaluates the network on a flattened batch of states.
func (dqn *DQN) Forward(states []float64) ([]float64, error) {
	if len(states) == 0 || len(states)%InputFeatures != 0 {
		return nil, fmt.Errorf("state batch of %d values is not a multiple of %d", len(states), InputFeatures)
	}
	batchSize := len(states) / InputFeatures

	x := tensor.New(tensor.WithShape(batchSize, InputFeatures), tensor.WithBacking(append([]float64(nil), states...)))

	h, err := x.MatMul(dqn.w1.Value)
	if err != nil {
		return nil, fmt.Errorf("hidden layer: %v", err)
	}
	addBias(h.Data().([]float64), dqn.b1.Value.Data().([]float64))
	for i, v := range h.Data().([]float64) {
		if v < 0 {
			h.Data().([]float64)[i] = 0
		}
	}

	out, err := h.MatMul(dqn.w2.Value)
	if err != nil {
		return nil, fmt.Errorf("output layer: %v", err)
	}
	addBias(out.Data().([]float64), dqn.b2.Value.Data().([]float64))

	predictions := make([]float64, batchSize*OutputActions)
	copy(predictions, out.Data().([]float64))
	return predictions, nil
}

func addBias(rows, bias []float64) {
	for i := range rows {
		rows[i] += bias[i%len(bias)]
	}
}

// Options configures an Agent.
type Options struct {
	LearningRate float64
	Discount     float64
	BatchSize    int
	ReplaySize   int
	Seed         uint64

	// Sync maps the online network (From) onto the target network (To).
	Sync callback.MirrorConfig

	Logger   zerolog.Logger
	Recorder history.Recorder
	RunID    string
}

// Agent is a DQN agent. Its target network is refreshed by a ParameterMirror
// registered on the agent's scheduler; Observe drives one scheduler step.
type Agent struct {
	reg          *params.Registry
	dqn          *DQN
	targetDQN    *DQN
	replayBuffer *ReplayBuffer
	solver       gorgonia.Solver
	sched        *callback.Scheduler
	mirror       *callback.ParameterMirror
	rng          *rand.Rand
	log          zerolog.Logger

	Discount        float64
	BatchSize       int
	Epsilon         float64
	InitialEpsilon  float64
	MinEpsilon      float64
	EpsilonDecay    float64
	TrainingEpisode int
	Steps           int
}

func NewAgent(opts Options) (*Agent, error) {
	if opts.BatchSize <= 0 || opts.ReplaySize < opts.BatchSize {
		return nil, fmt.Errorf("replay size %d cannot hold a batch of %d", opts.ReplaySize, opts.BatchSize)
	}

	reg := params.NewRegistry()
	online, err := NewDQN(reg, opts.Sync.From)
	if err != nil {
		return nil, fmt.Errorf("online network: %w", err)
	}
	target, err := NewDQN(reg, opts.Sync.To)
	if err != nil {
		return nil, fmt.Errorf("target network: %w", err)
	}

	sched := callback.NewScheduler()
	mirrorOpts := []callback.MirrorOption{callback.WithLogger(opts.Logger)}
	if opts.Recorder != nil {
		mirrorOpts = append(mirrorOpts, callback.WithRecorder(opts.Recorder, opts.RunID))
	}
	mirror, err := callback.NewParameterMirror(sched, reg, opts.Sync, mirrorOpts...)
	if err != nil {
		return nil, fmt.Errorf("target sync: %w", err)
	}

	// start from identical networks
	if err := reg.ExecuteBatch(context.Background(), mirror.Directives()); err != nil {
		return nil, fmt.Errorf("initial target sync: %w", err)
	}

	return &Agent{
		reg:          reg,
		dqn:          online,
		targetDQN:    target,
		replayBuffer: NewReplayBuffer(opts.ReplaySize),
		solver: gorgonia.NewAdamSolver(
			gorgonia.WithLearnRate(opts.LearningRate),
			gorgonia.WithClip(GradientClip),
			gorgonia.WithL2Reg(L2Reg),
		),
		sched:          sched,
		mirror:         mirror,
		rng:            rand.New(rand.NewSource(opts.Seed)),
		log:            opts.Logger.With().Str("component", "dqn").Logger(),
		Discount:       opts.Discount,
		BatchSize:      opts.BatchSize,
		Epsilon:        InitialEpsilon,
		InitialEpsilon: InitialEpsilon,
		MinEpsilon:     MinEpsilon,
		EpsilonDecay:   EpsilonDecay,
	}, nil
}

// Scheduler exposes the step scheduler so callers can attach more callbacks.
func (a *Agent) Scheduler() *callback.Scheduler { return a.sched }

func (a *Agent) Mirror() *callback.ParameterMirror { return a.mirror }

func (a *Agent) QValues(state []float64) ([]float64, error) {
	return a.dqn.Forward(state)
}

// TargetQValues evaluates the target network.
func (a *Agent) TargetQValues(state []float64) ([]float64, error) {
	return a.targetDQN.Forward(state)
}

// GetAction picks an action with an epsilon-greedy policy.
func (a *Agent) GetAction(state []float64) int {
	if a.rng.Float64() < a.Epsilon {
		return a.rng.Intn(OutputActions)
	}

	qValues, err := a.dqn.Forward(state)
	if err != nil {
		a.log.Warn().Err(err).Msg("forward failed, acting randomly")
		return a.rng.Intn(OutputActions)
	}
	return argmax(qValues)
}

func argmax(values []float64) int {
	best := 0
	maxQ := math.Inf(-1)
	for i, v := range values {
		if v > maxQ {
			maxQ = v
			best = i
		}
	}
	return best
}

// Observe stores t and runs one scheduler step around a training update.
func (a *Agent) Observe(ctx context.Context, t Transition) error {
	a.Steps++
	return a.sched.Step(ctx, a.Steps, func(ctx context.Context) error {
		a.replayBuffer.Add(t)
		if a.replayBuffer.Len() < a.BatchSize {
			return nil
		}
		_, err := a.trainOnBatch(a.replayBuffer.Sample(a.rng, a.BatchSize))
		return err
	})
}

// trainOnBatch runs one gradient step on the online network and returns the loss.
func (a *Agent) trainOnBatch(batch []Transition) (float64, error) {
	n := len(batch)
	states := make([]float64, 0, n*InputFeatures)
	nextStates := make([]float64, 0, n*InputFeatures)
	for _, tr := range batch {
		states = append(states, tr.State...)
		nextStates = append(nextStates, tr.NextState...)
	}

	currentQValues, err := a.dqn.Forward(states)
	if err != nil {
		return 0, err
	}
	nextQValues, err := a.targetDQN.Forward(nextStates)
	if err != nil {
		return 0, err
	}

	targetQValues := make([]float64, n*OutputActions)
	copy(targetQValues, currentQValues)
	for i, tr := range batch {
		target := tr.Reward
		if !tr.Done {
			row := nextQValues[i*OutputActions : (i+1)*OutputActions]
			target += a.Discount * row[argmax(row)]
		}
		targetQValues[i*OutputActions+tr.Action] = target
	}

	g := gorgonia.NewGraph()
	learnables := make(gorgonia.Nodes, 0, len(layerNames))
	nodes := make(map[string]*gorgonia.Node, len(layerNames))
	for _, p := range a.dqn.Params() {
		_, local := params.Split(p.Name)
		node := gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(p.Value.Shape()...),
			gorgonia.WithName(local),
			gorgonia.WithValue(p.Value),
		)
		nodes[local] = node
		learnables = append(learnables, node)
	}

	x := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(n, InputFeatures), gorgonia.WithName("x"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(n, InputFeatures), tensor.WithBacking(states))))
	y := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(n, OutputActions), gorgonia.WithName("y"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(n, OutputActions), tensor.WithBacking(targetQValues))))

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	onesNode := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(n, 1), gorgonia.WithName("ones"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(ones))))

	h1 := gorgonia.Must(gorgonia.Mul(x, nodes["w1"]))
	h1 = gorgonia.Must(gorgonia.Add(h1, gorgonia.Must(gorgonia.Mul(onesNode, nodes["b1"]))))
	h1 = gorgonia.Must(gorgonia.Rectify(h1))
	pred := gorgonia.Must(gorgonia.Mul(h1, nodes["w2"]))
	pred = gorgonia.Must(gorgonia.Add(pred, gorgonia.Must(gorgonia.Mul(onesNode, nodes["b2"]))))

	diff := gorgonia.Must(gorgonia.Sub(pred, y))
	loss := gorgonia.Must(gorgonia.Mean(gorgonia.Must(gorgonia.Square(diff))))

	if _, err := gorgonia.Grad(loss, learnables...); err != nil {
		return 0, fmt.Errorf("gradient: %v", err)
	}

	vm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(learnables...))
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return 0, fmt.Errorf("backprop: %v", err)
	}
	if err := a.solver.Step(gorgonia.NodesToValueGrads(learnables)); err != nil {
		return 0, fmt.Errorf("solver step: %v", err)
	}

	if v := loss.Value(); v != nil {
		if l, ok := v.Data().(float64); ok {
			return l, nil
		}
	}
	return 0, nil
}

// IncrementEpisode advances the episode counter and decays epsilon.
func (a *Agent) IncrementEpisode() {
	a.TrainingEpisode++
	a.Epsilon = math.Max(a.MinEpsilon, a.InitialEpsilon*math.Pow(a.EpsilonDecay, float64(a.TrainingEpisode)))
}

// SaveWeights writes the online network to a gob file keyed by local parameter name.
func (a *Agent) SaveWeights(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %v", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %v", err)
	}
	defer f.Close()

	weights := make(map[string]*tensor.Dense, len(layerNames))
	for _, p := range a.dqn.Params() {
		_, local := params.Split(p.Name)
		weights[local] = p.Value
	}

	if err := gob.NewEncoder(f).Encode(weights); err != nil {
		return fmt.Errorf("failed to encode weights: %v", err)
	}
	return nil
}

// LoadWeights restores both networks from a gob file. A missing file is not an error.
func (a *Agent) LoadWeights(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open weights file: %v", err)
	}
	defer f.Close()

	var weights map[string]*tensor.Dense
	if err := gob.NewDecoder(f).Decode(&weights); err != nil {
		return fmt.Errorf("failed to decode weights: %v", err)
	}

	for _, p := range a.dqn.Params() {
		_, local := params.Split(p.Name)
		w, ok := weights[local]
		if !ok {
			continue
		}
		if !w.Shape().Eq(p.Value.Shape()) {
			return fmt.Errorf("weights %s have shape %v, want %v", local, w.Shape(), p.Value.Shape())
		}
		if err := tensor.Copy(p.Value, w); err != nil {
			return fmt.Errorf("restore %s: %v", local, err)
		}
	}

	if err := a.reg.ExecuteBatch(context.Background(), a.mirror.Directives()); err != nil {
		return fmt.Errorf("sync restored weights: %v", err)
	}
	return nil
}
