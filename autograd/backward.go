package autograd

import "math"

// Topo returns every Value reachable from root, each exactly once, ordered
// so that a Value appears after all of its inputs. root is last.
//
// The walk is a post-order depth-first search driven by an explicit stack,
// so deep graphs do not grow the goroutine stack.
func Topo(root *Value) []*Value {
	type frame struct {
		node *Value
		next int
	}

	var order []*Value
	visited := map[*Value]bool{root: true}
	stack := []frame{{node: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.inputs) {
			in := top.node.inputs[top.next]
			top.next++
			if !visited[in] {
				visited[in] = true
				stack = append(stack, frame{node: in})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// Backward performs reverse-mode autodiff from v to all of its ancestors.
//
// Process:
// 1) Build the topological order so every node comes after its inputs.
// 2) Seed the gradient of v with 1 (dv/dv = 1).
// 3) Walk the order in reverse, pushing each node's gradient into its inputs.
// 4) Add the gradients of this pass to Grad of every node and set v.Grad to 1.
//
// Reverse order guarantees that every consumer of a node has finished adding
// to its gradient before the node itself propagates. Gradients of one pass
// are collected apart from Grad, so Grad left over from an earlier call is
// never propagated again: calling Backward twice without ZeroGrad doubles
// the Grad of every node below v.
func (v *Value) Backward() {
	topo := Topo(v)
	p := newPass(topo)

	root := len(topo) - 1
	p.grads[root] = 1
	for i := root; i >= 0; i-- {
		p.propagate(topo[i], p.grads[i])
	}

	for i, n := range topo[:root] {
		n.Grad += p.grads[i]
	}
	v.Grad = 1
}

// pass holds the gradients produced by one Backward call, indexed by
// position in the topological order.
type pass struct {
	index map[*Value]int
	grads []float64
}

func newPass(topo []*Value) *pass {
	index := make(map[*Value]int, len(topo))
	for i, n := range topo {
		index[n] = i
	}
	return &pass{index: index, grads: make([]float64, len(topo))}
}

func (p *pass) add(v *Value, d float64) {
	p.grads[p.index[v]] += d
}

// propagate applies the local derivative rule of n, scaled by its gradient
// g, to each of its inputs.
func (p *pass) propagate(n *Value, g float64) {
	switch n.op {
	case OpAdd:
		p.add(n.inputs[0], g)
		p.add(n.inputs[1], g)
	case OpMul:
		a, b := n.inputs[0], n.inputs[1]
		p.add(a, b.Data*g)
		p.add(b, a.Data*g)
	case OpPow:
		a := n.inputs[0]
		p.add(a, n.exponent*math.Pow(a.Data, n.exponent-1)*g)
	case OpReLU:
		if n.Data > 0 {
			p.add(n.inputs[0], g)
		}
	}
}

// ZeroGrad resets Grad of every given Value to 0.
func ZeroGrad(vs ...*Value) {
	for _, v := range vs {
		v.Grad = 0
	}
}
