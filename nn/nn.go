// Package nn composes autograd Values into neurons, layers and multi-layer
// perceptrons. It adds no differentiation rules of its own: a forward pass
// is an ordinary chain of autograd operations, and gradients come from
// calling Backward on whatever loss is built from the outputs.
package nn

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"scalar-autograd/autograd"
)

var (
	// ErrInvalidShape is returned when a network is built with no layers or
	// a non-positive layer width.
	ErrInvalidShape = errors.New("nn: invalid shape")

	// ErrInputWidth is returned when a forward pass receives a different
	// number of inputs than the module was built for.
	ErrInputWidth = errors.New("nn: input width mismatch")
)

// Module is anything holding trainable parameters.
//
// Parameters returns the trainable leaves in a stable order, so optimizers
// can keep per-parameter state by index. ZeroGrad resets their Grad to 0
// and leaves Data alone.
type Module interface {
	Parameters() []*autograd.Value
	ZeroGrad()
}

// Neuron computes act(w·x + b) where act is ReLU or the identity.
type Neuron struct {
	W      []*autograd.Value
	B      *autograd.Value
	Nonlin bool
}

// NewNeuron draws nin weights uniformly from [-1, 1) and starts the bias
// at 0.
func NewNeuron(rng *rand.Rand, nin int, nonlin bool) *Neuron {
	w := make([]*autograd.Value, nin)
	for i := range w {
		w[i] = autograd.New(rng.Float64()*2 - 1)
	}
	return &Neuron{W: w, B: autograd.New(0), Nonlin: nonlin}
}

// Forward computes the neuron output for one input vector.
func (n *Neuron) Forward(x []*autograd.Value) (*autograd.Value, error) {
	if len(x) != len(n.W) {
		return nil, fmt.Errorf("%w: neuron expects %d inputs, got %d", ErrInputWidth, len(n.W), len(x))
	}
	act := n.B
	for i, wi := range n.W {
		act = act.Add(wi.Mul(x[i]))
	}
	if n.Nonlin {
		return act.ReLU(), nil
	}
	return act, nil
}

// Parameters returns the weights followed by the bias.
func (n *Neuron) Parameters() []*autograd.Value {
	return append(append([]*autograd.Value(nil), n.W...), n.B)
}

func (n *Neuron) ZeroGrad() { autograd.ZeroGrad(n.Parameters()...) }

func (n *Neuron) String() string {
	kind := "Linear"
	if n.Nonlin {
		kind = "ReLU"
	}
	return fmt.Sprintf("%sNeuron(%d)", kind, len(n.W))
}

// Layer is nout neurons reading the same input vector.
type Layer struct {
	Neurons []*Neuron
}

// NewLayer builds a layer of nout neurons with nin inputs each.
func NewLayer(rng *rand.Rand, nin, nout int, nonlin bool) *Layer {
	neurons := make([]*Neuron, nout)
	for i := range neurons {
		neurons[i] = NewNeuron(rng, nin, nonlin)
	}
	return &Layer{Neurons: neurons}
}

// Forward returns one output per neuron.
func (l *Layer) Forward(x []*autograd.Value) ([]*autograd.Value, error) {
	out := make([]*autograd.Value, len(l.Neurons))
	for i, n := range l.Neurons {
		v, err := n.Forward(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (l *Layer) Parameters() []*autograd.Value {
	var params []*autograd.Value
	for _, n := range l.Neurons {
		params = append(params, n.Parameters()...)
	}
	return params
}

func (l *Layer) ZeroGrad() { autograd.ZeroGrad(l.Parameters()...) }

func (l *Layer) String() string {
	parts := make([]string, len(l.Neurons))
	for i, n := range l.Neurons {
		parts[i] = n.String()
	}
	return "Layer of [" + strings.Join(parts, ", ") + "]"
}

// MLP stacks layers. Every layer but the last applies ReLU; the last is
// linear so regression targets of either sign are reachable.
type MLP struct {
	Nin    int
	Layers []*Layer
}

// NewMLP builds an MLP with nin inputs and one layer per entry of nouts.
func NewMLP(rng *rand.Rand, nin int, nouts ...int) (*MLP, error) {
	if nin <= 0 || len(nouts) == 0 {
		return nil, fmt.Errorf("%w: nin=%d layers=%v", ErrInvalidShape, nin, nouts)
	}
	sizes := append([]int{nin}, nouts...)
	layers := make([]*Layer, len(nouts))
	for i := range nouts {
		if sizes[i+1] <= 0 {
			return nil, fmt.Errorf("%w: layer %d has width %d", ErrInvalidShape, i, sizes[i+1])
		}
		layers[i] = NewLayer(rng, sizes[i], sizes[i+1], i != len(nouts)-1)
	}
	return &MLP{Nin: nin, Layers: layers}, nil
}

// Forward runs x through every layer and returns the last layer's outputs.
func (m *MLP) Forward(x []*autograd.Value) ([]*autograd.Value, error) {
	if len(x) != m.Nin {
		return nil, fmt.Errorf("%w: mlp expects %d inputs, got %d", ErrInputWidth, m.Nin, len(x))
	}
	var err error
	for _, layer := range m.Layers {
		if x, err = layer.Forward(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (m *MLP) Parameters() []*autograd.Value {
	var params []*autograd.Value
	for _, l := range m.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (m *MLP) ZeroGrad() { autograd.ZeroGrad(m.Parameters()...) }

func (m *MLP) String() string {
	parts := make([]string, len(m.Layers))
	for i, l := range m.Layers {
		parts[i] = l.String()
	}
	return "MLP of [" + strings.Join(parts, ", ") + "]"
}
