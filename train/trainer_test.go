package train

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalar-autograd/autograd"
	"scalar-autograd/nn"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSquaredError(t *testing.T) {
	preds := autograd.Values(1.5, -1)
	loss, err := SquaredError(preds, []float64{1, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.25+4, loss.Data, 1e-12)

	loss.Backward()
	assert.InDelta(t, 1.0, preds[0].Grad, 1e-12)
	assert.InDelta(t, -4.0, preds[1].Grad, 1e-12)

	_, err = SquaredError(preds, []float64{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestSGD(t *testing.T) {
	p := autograd.New(1)
	p.Grad = 4
	(&SGD{LearningRate: 0.05}).Step([]*autograd.Value{p})
	assert.InDelta(t, 0.8, p.Data, 1e-12)
	assert.Equal(t, 4.0, p.Grad, "optimizers do not reset gradients")
}

func TestAdam(t *testing.T) {
	p := autograd.New(1)
	p.Grad = 4
	adam := NewAdam(0.1, DefaultConfig().Adam)

	// With a constant gradient the bias-corrected ratio stays at 1.
	adam.Step([]*autograd.Value{p})
	assert.InDelta(t, 0.9, p.Data, 1e-6)
	adam.Step([]*autograd.Value{p})
	assert.InDelta(t, 0.8, p.Data, 1e-6)
}

func TestNewOptimizer(t *testing.T) {
	cfg := DefaultConfig()
	opt, err := NewOptimizer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SGD{}, opt)

	cfg.Optimizer = "adam"
	opt, err = NewOptimizer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Adam{}, opt)

	cfg.Optimizer = "lbfgs"
	_, err = NewOptimizer(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(c *Config){
		"negative epochs":   func(c *Config) { c.Epochs = -1 },
		"zero lr":           func(c *Config) { c.LearningRate = 0 },
		"unknown optimizer": func(c *Config) { c.Optimizer = "rmsprop" },
		"no layers":         func(c *Config) { c.Layers = nil },
		"wide output":       func(c *Config) { c.Layers = []int{4, 2} },
		"empty dataset":     func(c *Config) { c.Dataset = Dataset{} },
		"missing target":    func(c *Config) { c.Dataset.Targets = c.Dataset.Targets[:3] },
		"ragged rows":       func(c *Config) { c.Dataset.Inputs[1] = []float64{1} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: 10\noptimizer: adam\nlayers: [3, 1]\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Epochs)
	assert.Equal(t, "adam", cfg.Optimizer)
	assert.Equal(t, []int{3, 1}, cfg.Layers)
	assert.Equal(t, DefaultConfig().Dataset, cfg.Dataset)
	assert.Equal(t, 0.05, cfg.LearningRate)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid values", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("learning_rate: -1\n"), 0o644))
		_, err := LoadConfig(bad)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		bad := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("epochs: [\n"), 0o644))
		_, err := LoadConfig(bad)
		assert.Error(t, err)
	})
}

func TestTrainerFitsLine(t *testing.T) {
	// One linear neuron learning y = 2x - 1.
	neuron := &nn.Neuron{W: autograd.Values(0), B: autograd.New(0)}
	model := &nn.MLP{Nin: 1, Layers: []*nn.Layer{{Neurons: []*nn.Neuron{neuron}}}}
	tr := NewTrainer(model, &SGD{LearningRate: 0.02}, WithLogger(quietLogger()))

	ds := Dataset{
		Inputs:  [][]float64{{0}, {1}, {2}, {3}},
		Targets: []float64{-1, 1, 3, 5},
	}
	res, err := tr.Run(context.Background(), 2000, ds)
	require.NoError(t, err)

	assert.Equal(t, 2000, res.Epoch)
	assert.Equal(t, 2000, tr.Epoch())
	assert.InDelta(t, 2.0, neuron.W[0].Data, 1e-3)
	assert.InDelta(t, -1.0, neuron.B.Data, 1e-3)
	assert.Less(t, res.Loss, 1e-4)

	preds, err := tr.Predict([][]float64{{10}})
	require.NoError(t, err)
	assert.InDelta(t, 19.0, preds[0], 1e-2)
}

func TestTrainerDefaultConfigReducesLoss(t *testing.T) {
	tr, err := NewTrainerFromConfig(DefaultConfig(), WithLogger(quietLogger()))
	require.NoError(t, err)
	ds := DefaultConfig().Dataset

	first, err := tr.Step(context.Background(), ds)
	require.NoError(t, err)
	last, err := tr.Run(context.Background(), 200, ds)
	require.NoError(t, err)

	assert.Equal(t, 201, last.Epoch)
	assert.Less(t, last.Loss, first.Loss)
	assert.Len(t, last.Predictions, 4)
	assert.Greater(t, last.GraphNodes, len(tr.Model().Parameters()))
}

func TestTrainerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	tr, err := NewTrainerFromConfig(DefaultConfig(), WithLogger(quietLogger()), WithMetrics(m))
	require.NoError(t, err)

	res, err := tr.Run(context.Background(), 3, DefaultConfig().Dataset)
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.EpochsTotal))
	assert.Equal(t, res.Loss, testutil.ToFloat64(m.Loss))
	assert.Equal(t, float64(res.GraphNodes), testutil.ToFloat64(m.GraphNodes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BackwardDuration))
}

func TestTrainerCancelled(t *testing.T) {
	tr, err := NewTrainerFromConfig(DefaultConfig(), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = tr.Run(ctx, 10, DefaultConfig().Dataset)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, tr.Epoch())
}

func TestTrainerDiverged(t *testing.T) {
	m := NewMetrics(nil)
	tr, err := NewTrainerFromConfig(DefaultConfig(), WithLogger(quietLogger()), WithMetrics(m))
	require.NoError(t, err)

	before := make([]float64, 0)
	for _, p := range tr.Model().Parameters() {
		before = append(before, p.Data)
	}

	ds := DefaultConfig().Dataset
	ds.Targets[0] = math.NaN()
	_, err = tr.Run(context.Background(), 5, ds)
	require.ErrorIs(t, err, ErrDiverged)

	for i, p := range tr.Model().Parameters() {
		assert.Equal(t, before[i], p.Data)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DivergedTotal))
}

func TestTrainerShapeErrors(t *testing.T) {
	tr, err := NewTrainerFromConfig(DefaultConfig(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = tr.Predict([][]float64{{1, 2}})
	assert.ErrorIs(t, err, nn.ErrInputWidth)

	_, err = tr.Step(context.Background(), Dataset{Inputs: [][]float64{{1, 2, 3}}, Targets: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
