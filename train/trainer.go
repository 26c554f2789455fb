// Package train drives gradient descent over an nn.MLP: it builds the loss
// graph for a dataset, runs the backward pass, and applies an optimizer.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scalar-autograd/autograd"
	"scalar-autograd/nn"
)

var tracer = otel.Tracer("scalargrad.train")

// ErrDiverged is returned when the loss stops being a finite number. The
// parameters are left as they were before the offending epoch.
var ErrDiverged = errors.New("training diverged: loss is not finite")

// StepResult summarizes one training epoch.
type StepResult struct {
	Epoch       int       `json:"epoch"`
	Loss        float64   `json:"loss"`
	Predictions []float64 `json:"predictions"`
	GraphNodes  int       `json:"graph_nodes"`
}

// Trainer owns a model and its optimizer state. All methods serialize on an
// internal mutex, so one Trainer can be shared by HTTP handlers.
type Trainer struct {
	ID string

	model    *nn.MLP
	opt      Optimizer
	logger   *slog.Logger
	metrics  *Metrics
	logEvery int

	mu    sync.Mutex
	epoch int
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// WithMetrics sets the collectors the trainer reports to.
func WithMetrics(m *Metrics) Option {
	return func(t *Trainer) { t.metrics = m }
}

// WithLogEvery logs one line every n epochs during Run. 0 disables it.
func WithLogEvery(n int) Option {
	return func(t *Trainer) { t.logEvery = n }
}

// NewTrainer wraps model and opt.
func NewTrainer(model *nn.MLP, opt Optimizer, opts ...Option) *Trainer {
	t := &Trainer{
		ID:    uuid.NewString(),
		model: model,
		opt:   opt,
	}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(nil)
	}
	t.logger = t.logger.With("run_id", t.ID)
	return t
}

// NewTrainerFromConfig builds the MLP and optimizer described by cfg. The
// input width comes from the dataset. cfg.LogEvery is applied before opts.
func NewTrainerFromConfig(cfg Config, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := nn.NewMLP(rand.New(rand.NewSource(cfg.Seed)), cfg.Dataset.Width(), cfg.Layers...)
	if err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(cfg)
	if err != nil {
		return nil, err
	}
	return NewTrainer(model, opt, append([]Option{WithLogEvery(cfg.LogEvery)}, opts...)...), nil
}

// Model returns the trained network.
func (t *Trainer) Model() *nn.MLP { return t.model }

// Epoch returns the number of completed epochs.
func (t *Trainer) Epoch() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}

// Step runs one epoch over ds: forward, loss, zero grad, backward, update.
func (t *Trainer) Step(ctx context.Context, ds Dataset) (StepResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step(ctx, ds)
}

func (t *Trainer) step(ctx context.Context, ds Dataset) (StepResult, error) {
	_, span := tracer.Start(ctx, "train.Step", trace.WithAttributes(
		attribute.String("run_id", t.ID),
		attribute.Int("epoch", t.epoch+1),
		attribute.Int("samples", len(ds.Inputs)),
	))
	defer span.End()

	preds, err := t.forward(ds.Inputs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forward failed")
		return StepResult{}, err
	}
	loss, err := SquaredError(preds, ds.Targets)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "loss failed")
		return StepResult{}, err
	}

	res := StepResult{
		Epoch:       t.epoch + 1,
		Loss:        loss.Data,
		Predictions: dataOf(preds),
		GraphNodes:  len(autograd.Topo(loss)),
	}
	if math.IsNaN(loss.Data) || math.IsInf(loss.Data, 0) {
		t.metrics.DivergedTotal.Inc()
		span.SetStatus(codes.Error, "diverged")
		return res, fmt.Errorf("%w: epoch %d loss %v", ErrDiverged, res.Epoch, loss.Data)
	}

	t.model.ZeroGrad()
	start := time.Now()
	loss.Backward()
	t.metrics.BackwardDuration.Observe(time.Since(start).Seconds())

	t.opt.Step(t.model.Parameters())
	t.epoch++

	t.metrics.Loss.Set(res.Loss)
	t.metrics.EpochsTotal.Inc()
	t.metrics.GraphNodes.Set(float64(res.GraphNodes))
	span.SetAttributes(attribute.Float64("loss", res.Loss))
	return res, nil
}

// Run trains for the given number of epochs and returns the last result.
// Cancellation is checked between epochs; an epoch in progress always
// completes.
func (t *Trainer) Run(ctx context.Context, epochs int, ds Dataset) (StepResult, error) {
	if err := ds.Validate(); err != nil {
		return StepResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var last StepResult
	for i := 0; i < epochs; i++ {
		if err := ctx.Err(); err != nil {
			t.logger.Warn("training cancelled", "epoch", t.epoch, "error", err)
			return last, err
		}
		res, err := t.step(ctx, ds)
		if err != nil {
			t.logger.Error("training stopped", "epoch", res.Epoch, "error", err)
			return last, err
		}
		last = res
		if t.logEvery > 0 && (res.Epoch%t.logEvery == 0 || i == epochs-1) {
			t.logger.Info("epoch complete", "epoch", res.Epoch, "loss", res.Loss, "graph_nodes", res.GraphNodes)
		}
	}
	t.logger.Debug("run finished", "epochs", epochs, "loss", last.Loss)
	return last, nil
}

// Predict runs a forward pass only and returns the network output per row.
func (t *Trainer) Predict(inputs [][]float64) ([]float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	preds, err := t.forward(inputs)
	if err != nil {
		return nil, err
	}
	return dataOf(preds), nil
}

func (t *Trainer) forward(inputs [][]float64) ([]*autograd.Value, error) {
	preds := make([]*autograd.Value, len(inputs))
	for i, row := range inputs {
		out, err := t.model.Forward(autograd.Values(row...))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		preds[i] = out[0]
	}
	return preds, nil
}

func dataOf(vs []*autograd.Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Data
	}
	return out
}
