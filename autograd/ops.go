package autograd

import (
	"errors"
	"math"
)

// ErrUnsupportedOperand is returned by Pow when the exponent is a *Value.
// Only constant exponents are differentiated.
var ErrUnsupportedOperand = errors.New("autograd: exponent must be a constant, not a *Value")

// Add creates node z = v + o.
// Local derivatives:
// dz/dv = 1
// dz/do = 1
func (v *Value) Add(o Operand) *Value {
	other := o.asValue()
	return &Value{
		Data:   v.Data + other.Data,
		inputs: []*Value{v, other},
		op:     OpAdd,
	}
}

// Mul creates node z = v * o.
// Local derivatives:
// dz/dv = o
// dz/do = v
func (v *Value) Mul(o Operand) *Value {
	other := o.asValue()
	return &Value{
		Data:   v.Data * other.Data,
		inputs: []*Value{v, other},
		op:     OpMul,
	}
}

// Pow creates node z = v^n for a constant n.
// Local derivative:
// dz/dv = n * v^(n-1)
func (v *Value) Pow(n float64) *Value {
	return &Value{
		Data:     math.Pow(v.Data, n),
		inputs:   []*Value{v},
		op:       OpPow,
		exponent: n,
	}
}

// ReLU applies max(v, 0).
//
// Local derivative: 1 when the output is positive, otherwise 0. A NaN input
// yields 0.
func (v *Value) ReLU() *Value {
	data := 0.0
	if v.Data > 0 {
		data = v.Data
	}
	return &Value{
		Data:   data,
		inputs: []*Value{v},
		op:     OpReLU,
	}
}

// Neg returns -v, built as v * -1.
func (v *Value) Neg() *Value {
	return v.Mul(Scalar(-1))
}

// Sub returns v - o, built as v + (-o).
func (v *Value) Sub(o Operand) *Value {
	return v.Add(o.asValue().Neg())
}

// Div returns v / o, built as v * o^-1. Division by zero follows IEEE-754.
func (v *Value) Div(o Operand) *Value {
	return v.Mul(o.asValue().Pow(-1))
}

// Add returns a + b. Either side may be a Scalar.
func Add(a, b Operand) *Value { return a.asValue().Add(b) }

// Mul returns a * b. Either side may be a Scalar.
func Mul(a, b Operand) *Value { return a.asValue().Mul(b) }

// Sub returns a - b. Either side may be a Scalar.
func Sub(a, b Operand) *Value { return a.asValue().Sub(b) }

// Div returns a / b. Either side may be a Scalar.
func Div(a, b Operand) *Value { return a.asValue().Div(b) }

// Pow returns base^exp. The exponent must be a Scalar; a *Value exponent
// yields ErrUnsupportedOperand.
func Pow(base, exp Operand) (*Value, error) {
	n, ok := exp.(Scalar)
	if !ok {
		return nil, ErrUnsupportedOperand
	}
	return base.asValue().Pow(float64(n)), nil
}

// Sum folds vs onto start with Add. With no vs it returns start itself.
func Sum(start *Value, vs ...*Value) *Value {
	acc := start
	for _, v := range vs {
		acc = acc.Add(v)
	}
	return acc
}
