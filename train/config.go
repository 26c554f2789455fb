package train

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid training config")

// Config contains all key hyperparameters and the dataset.
//
//   - Layers: width of each layer after the input, the last one is linear.
//   - Optimizer: "sgd" or "adam".
//   - LogEvery: log one line every N epochs (0 disables periodic logging).
type Config struct {
	Epochs       int        `yaml:"epochs" json:"epochs"`
	LearningRate float64    `yaml:"learning_rate" json:"learning_rate"`
	Optimizer    string     `yaml:"optimizer" json:"optimizer"`
	Layers       []int      `yaml:"layers" json:"layers"`
	Seed         int64      `yaml:"seed" json:"seed"`
	LogEvery     int        `yaml:"log_every" json:"log_every"`
	Adam         AdamConfig `yaml:"adam" json:"adam"`
	Dataset      Dataset    `yaml:"dataset" json:"dataset"`
}

// AdamConfig holds the Adam moment decay rates and epsilon.
type AdamConfig struct {
	Beta1   float64 `yaml:"beta1" json:"beta1"`
	Beta2   float64 `yaml:"beta2" json:"beta2"`
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
}

// Dataset is a set of input rows with one scalar target per row.
type Dataset struct {
	Inputs  [][]float64 `yaml:"inputs" json:"inputs"`
	Targets []float64   `yaml:"targets" json:"targets"`
}

// DefaultConfig returns the classic four-sample toy regression problem.
func DefaultConfig() Config {
	return Config{
		Epochs:       500,
		LearningRate: 0.05,
		Optimizer:    "sgd",
		Layers:       []int{4, 4, 1},
		Seed:         42,
		LogEvery:     50,
		Adam: AdamConfig{
			Beta1:   0.85,
			Beta2:   0.99,
			Epsilon: 1e-8,
		},
		Dataset: Dataset{
			Inputs: [][]float64{
				{2.0, 3.0, -1.0},
				{3.0, -1.0, 0.5},
				{0.5, 1.0, 1.0},
				{1.0, 1.0, -1.0},
			},
			Targets: []float64{1.0, -1.0, -1.0, 1.0},
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
// Keys missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the config describes a trainable problem.
func (c Config) Validate() error {
	if c.Epochs < 0 {
		return fmt.Errorf("%w: epochs must be >= 0, got %d", ErrInvalidConfig, c.Epochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning_rate must be > 0, got %g", ErrInvalidConfig, c.LearningRate)
	}
	if c.Optimizer != "sgd" && c.Optimizer != "adam" {
		return fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, c.Optimizer)
	}
	if len(c.Layers) == 0 || c.Layers[len(c.Layers)-1] != 1 {
		return fmt.Errorf("%w: layers must end with a single output, got %v", ErrInvalidConfig, c.Layers)
	}
	if err := c.Dataset.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks that every row has the same width and a target.
func (d Dataset) Validate() error {
	if len(d.Inputs) == 0 {
		return errors.New("dataset is empty")
	}
	if len(d.Inputs) != len(d.Targets) {
		return fmt.Errorf("%w: %d input rows, %d targets", ErrLengthMismatch, len(d.Inputs), len(d.Targets))
	}
	width := len(d.Inputs[0])
	if width == 0 {
		return errors.New("dataset rows are empty")
	}
	for i, row := range d.Inputs {
		if len(row) != width {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), width)
		}
	}
	return nil
}

// Width is the number of values per input row.
func (d Dataset) Width() int {
	if len(d.Inputs) == 0 {
		return 0
	}
	return len(d.Inputs[0])
}
