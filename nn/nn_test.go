package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalar-autograd/autograd"
)

var _ Module = (*MLP)(nil)
var _ Module = (*Layer)(nil)
var _ Module = (*Neuron)(nil)

func TestNeuronForward(t *testing.T) {
	n := &Neuron{
		W:      autograd.Values(0.5, -1),
		B:      autograd.New(0.25),
		Nonlin: false,
	}
	x := autograd.Values(2, 3)

	out, err := n.Forward(x)
	require.NoError(t, err)
	assert.InDelta(t, -1.75, out.Data, 1e-12)

	out.Backward()
	assert.Equal(t, 2.0, n.W[0].Grad)
	assert.Equal(t, 3.0, n.W[1].Grad)
	assert.Equal(t, 1.0, n.B.Grad)
	assert.Equal(t, 0.5, x[0].Grad)
}

func TestNeuronReLUGate(t *testing.T) {
	n := &Neuron{W: autograd.Values(-1), B: autograd.New(0), Nonlin: true}

	out, err := n.Forward(autograd.Values(4))
	require.NoError(t, err)
	out.Backward()

	assert.Equal(t, 0.0, out.Data)
	assert.Equal(t, 0.0, n.W[0].Grad)
	assert.Equal(t, "ReLUNeuron(1)", n.String())
}

func TestNewMLP(t *testing.T) {
	m, err := NewMLP(rand.New(rand.NewSource(42)), 3, 4, 4, 1)
	require.NoError(t, err)

	require.Len(t, m.Layers, 3)
	assert.True(t, m.Layers[0].Neurons[0].Nonlin)
	assert.True(t, m.Layers[1].Neurons[0].Nonlin)
	assert.False(t, m.Layers[2].Neurons[0].Nonlin)

	// (3*4+4) + (4*4+4) + (4*1+1)
	assert.Len(t, m.Parameters(), 41)
	for _, p := range m.Parameters() {
		assert.GreaterOrEqual(t, p.Data, -1.0)
		assert.Less(t, p.Data, 1.0)
	}
	assert.Equal(t,
		"MLP of [Layer of [ReLUNeuron(3), ReLUNeuron(3), ReLUNeuron(3), ReLUNeuron(3)], "+
			"Layer of [ReLUNeuron(4), ReLUNeuron(4), ReLUNeuron(4), ReLUNeuron(4)], "+
			"Layer of [LinearNeuron(4)]]",
		m.String())
}

func TestNewMLPInvalidShape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := NewMLP(rng, 3)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewMLP(rng, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewMLP(rng, 3, 4, 0)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestMLPForwardBackward(t *testing.T) {
	m, err := NewMLP(rand.New(rand.NewSource(7)), 3, 4, 4, 1)
	require.NoError(t, err)

	out, err := m.Forward(autograd.Values(2, 3, -1))
	require.NoError(t, err)
	require.Len(t, out, 1)

	out[0].Backward()

	// The output bias always receives the full gradient.
	last := m.Layers[2].Neurons[0]
	assert.Equal(t, 1.0, last.B.Grad)

	_, err = m.Forward(autograd.Values(1, 2))
	assert.ErrorIs(t, err, ErrInputWidth)
}

func TestZeroGrad(t *testing.T) {
	m, err := NewMLP(rand.New(rand.NewSource(3)), 2, 3, 1)
	require.NoError(t, err)

	out, err := m.Forward(autograd.Values(1, -2))
	require.NoError(t, err)
	out[0].Backward()

	before := make([]float64, 0)
	for _, p := range m.Parameters() {
		before = append(before, p.Data)
	}

	m.ZeroGrad()

	for i, p := range m.Parameters() {
		assert.Equal(t, 0.0, p.Grad)
		assert.Equal(t, before[i], p.Data)
	}
}

func TestParametersOrder(t *testing.T) {
	n := NewNeuron(rand.New(rand.NewSource(5)), 2, true)
	params := n.Parameters()

	require.Len(t, params, 3)
	assert.Same(t, n.W[0], params[0])
	assert.Same(t, n.W[1], params[1])
	assert.Same(t, n.B, params[2])
}
