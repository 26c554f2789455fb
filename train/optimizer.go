package train

import (
	"fmt"
	"math"

	"scalar-autograd/autograd"
)

// Optimizer updates parameter Data in place from their Grad.
//
// Step must be given the same parameters in the same order every call.
type Optimizer interface {
	Step(params []*autograd.Value)
}

// SGD is plain gradient descent: Data -= LearningRate * Grad.
type SGD struct {
	LearningRate float64
}

func (s *SGD) Step(params []*autograd.Value) {
	for _, p := range params {
		p.Data -= s.LearningRate * p.Grad
	}
}

// Adam keeps per-parameter moving averages of the gradient and its square.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	m     []float64
	v     []float64
	steps int
}

// NewAdam creates an Adam optimizer from cfg.
func NewAdam(lr float64, cfg AdamConfig) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        cfg.Beta1,
		Beta2:        cfg.Beta2,
		Epsilon:      cfg.Epsilon,
	}
}

// Step performs one Adam update. Moment buffers are sized on the first call.
func (a *Adam) Step(params []*autograd.Value) {
	if a.m == nil {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
	}
	a.steps++

	for i, p := range params {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*p.Grad
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*p.Grad*p.Grad

		// Bias-corrected first and second moments.
		mHat := a.m[i] / (1 - math.Pow(a.Beta1, float64(a.steps)))
		vHat := a.v[i] / (1 - math.Pow(a.Beta2, float64(a.steps)))

		p.Data -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
}

// NewOptimizer builds the optimizer named in cfg.
func NewOptimizer(cfg Config) (Optimizer, error) {
	switch cfg.Optimizer {
	case "sgd", "":
		return &SGD{LearningRate: cfg.LearningRate}, nil
	case "adam":
		return NewAdam(cfg.LearningRate, cfg.Adam), nil
	default:
		return nil, fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, cfg.Optimizer)
	}
}
