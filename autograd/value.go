// Package autograd is a tiny scalar reverse-mode automatic differentiation
// engine.
//
// Every arithmetic operation on a *Value allocates a new Value that records
// its inputs and which operation produced it. The graph is never built
// explicitly: it is the set of Values reachable from the one Backward is
// called on. After Backward, every reachable Value holds in Grad the partial
// derivative of the root with respect to its Data.
//
// Values are not safe for concurrent use. A graph is built and
// differentiated on one goroutine.
package autograd

import (
	"fmt"
	"strconv"
)

// Op identifies the operation that produced a Value.
//
// The backward pass dispatches on Op instead of calling a captured closure,
// so a graph carries no function values and can be inspected freely.
type Op uint8

const (
	OpLeaf Op = iota
	OpAdd
	OpMul
	OpPow
	OpReLU
)

func (o Op) String() string {
	switch o {
	case OpLeaf:
		return "leaf"
	case OpAdd:
		return "add"
	case OpMul:
		return "mul"
	case OpPow:
		return "pow"
	case OpReLU:
		return "relu"
	default:
		return "Op(" + strconv.Itoa(int(o)) + ")"
	}
}

// Value is the core unit of the engine: a "number with memory".
//
//   - Data is the number computed by the forward pass.
//   - Grad is how much the root changes when Data changes a little. It starts
//     at 0 and is only ever added to, except when Backward seeds the root and
//     when a caller resets it between iterations.
//   - inputs are the Values this one was computed from (none for a leaf).
//     The same input may appear more than once, as in x*x.
//
// Inputs and op are fixed at construction. Optimizers overwrite Data of leaf
// parameters between iterations, never the structure.
type Value struct {
	Data float64
	Grad float64

	inputs   []*Value
	op       Op
	exponent float64
}

// New creates a leaf Value (a plain number with no inputs).
func New(data float64) *Value {
	return &Value{Data: data}
}

// Leaf creates a fresh leaf holding the current value of o. Passing a *Value
// copies its Data only; the new leaf has no inputs and a zero gradient.
func Leaf(o Operand) *Value {
	return New(o.asValue().Data)
}

// Values wraps each number in its own leaf.
func Values(xs ...float64) []*Value {
	out := make([]*Value, len(xs))
	for i, x := range xs {
		out[i] = New(x)
	}
	return out
}

// Operand is either a *Value or a Scalar. Operators accept an Operand and
// normalize it to a *Value before building their result.
type Operand interface {
	asValue() *Value
}

// Scalar is a plain number used as an operand. It is coerced to a new leaf
// each time it is used.
type Scalar float64

func (s Scalar) asValue() *Value { return New(float64(s)) }

func (v *Value) asValue() *Value { return v }

// Op returns the operation that produced v.
func (v *Value) Op() Op { return v.op }

// Inputs returns a copy of the Values v was computed from.
func (v *Value) Inputs() []*Value {
	return append([]*Value(nil), v.inputs...)
}

// OpTag is a short label for diagnostics: "" for leaves, "+", "*", "**n" and
// "ReLU" otherwise.
func (v *Value) OpTag() string {
	switch v.op {
	case OpAdd:
		return "+"
	case OpMul:
		return "*"
	case OpPow:
		return "**" + strconv.FormatFloat(v.exponent, 'g', -1, 64)
	case OpReLU:
		return "ReLU"
	default:
		return ""
	}
}

func (v *Value) String() string {
	return fmt.Sprintf("Value(data=%g, grad=%g, op=%q)", v.Data, v.Grad, v.OpTag())
}
