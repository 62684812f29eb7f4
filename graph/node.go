// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

var (
	// ErrUninitializedPartial is raised (panic) when a node's gradient is requested through a consumer whose
	// forward pass (Node.Value) was never run: it indicates an incomplete forward pass.
	ErrUninitializedPartial = errors.New("uninitialized partial")

	// ErrMissingValue is raised (panic) when the value of a Placeholder is requested before it was set.
	ErrMissingValue = errors.New("missing value")
)

// Node is one operation, or one leaf (Variable or Placeholder), in the computation graph.
//
// Nodes are created by the operator functions (Sum, Matmul, Sigmoid, ...), always with an explicit
// output shape and their input nodes. The inputs must be created before, so the graph is a DAG
// by construction.
//
// A Node caches its forward value (see Value), the partial derivatives of its output with respect
// to each of its inputs (computed during the forward pass), and its dual value (see Dual).
// Reset clears those caches, so a new forward/backward pass can be run with new input values,
// without rebuilding the graph.
//
// Nodes are not safe for concurrent use: to train in parallel build one graph per goroutine.
type Node struct {
	id    NodeId
	shape shapes.Shape
	op    operator

	// inputs are the edges of the computation graph, the nodes this node was constructed from.
	inputs []*Node

	// consumers are the nodes that have this node as an input, along with the input position.
	// A consumer that uses this node more than once is listed once per use.
	consumers []consumerEdge

	// value is the cached result of the forward pass.
	value *batches.Batch

	// dual is the cached gradient of the loss with respect to the output of this node.
	dual *batches.Batch

	// partials hold, for each input, the local derivative computed during the forward pass.
	// Not all operators store partials: some compute their backward directly from the dual.
	partials []*batches.Batch
}

// NodeId is a unique identifier of a Node, in creation order.
type NodeId int64

var nextNodeId atomic.Int64

// consumerEdge is a back-reference to a node that uses the node as its input #input.
// It is informational only: it is used to accumulate the dual value.
type consumerEdge struct {
	node  *Node
	input int
}

// operator implements the forward and backward rules of one type of node.
type operator interface {
	Type() NodeType

	// forward computes the value of node, from the values of its inputs. It should store in
	// node.partials whatever is needed by backward.
	forward(node *Node) *batches.Batch

	// backward returns the contribution of node to the dual value of node.Inputs()[input]:
	// the "chain rule" applied to the edge.
	backward(node *Node, input int) *batches.Batch
}

// dualOverrider is implemented by operators that need to customize how their own
// dual value is accumulated from their consumers.
type dualOverrider interface {
	dual(node *Node) *batches.Batch
}

// newNode creates a node and registers it as a consumer of each of its inputs.
func newNode(op operator, shape shapes.Shape, inputs ...*Node) *Node {
	if !shape.Ok() {
		shapes.PanicMismatch("%s: invalid shape %s", op.Type(), shape)
	}
	for ii, input := range inputs {
		if input == nil {
			exceptions.Panicf("%s: input #%d is nil", op.Type(), ii)
		}
	}
	n := &Node{
		id:     NodeId(nextNodeId.Add(1)),
		shape:  shape,
		op:     op,
		inputs: inputs,
	}
	for ii, input := range inputs {
		input.consumers = append(input.consumers, consumerEdge{node: n, input: ii})
	}
	return n
}

// Id of the node. Nodes created later have larger ids, so inputs always have smaller ids than
// their consumers.
func (n *Node) Id() NodeId { return n.id }

// Type identifies the operation performed by the node.
func (n *Node) Type() NodeType {
	if n == nil || n.op == nil {
		return NodeTypeInvalid
	}
	return n.op.Type()
}

// Shape of the Node's output. It implements shapes.HasShape.
func (n *Node) Shape() shapes.Shape { return n.shape }

// Size is the number of matrices in the node's output batch.
func (n *Node) Size() int { return n.shape.Size }

// Rows of each matrix of the node's output.
func (n *Node) Rows() int { return n.shape.Rows }

// Columns of each matrix of the node's output.
func (n *Node) Columns() int { return n.shape.Columns }

// Inputs are the nodes this node was constructed from (its children).
func (n *Node) Inputs() []*Node { return n.inputs }

// Consumers returns the nodes that use this node as an input (its parents).
// A consumer using this node more than once is listed more than once.
func (n *Node) Consumers() []*Node {
	consumers := make([]*Node, 0, len(n.consumers))
	for _, edge := range n.consumers {
		consumers = append(consumers, edge.node)
	}
	return consumers
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	if name := n.VariableName(); name != "" {
		return fmt.Sprintf("%s(%q)%s", n.Type(), name, n.shape)
	}
	return fmt.Sprintf("%s%s", n.Type(), n.shape)
}

// Value returns the result of the forward pass of the node, computing it (and the values of its
// inputs, recursively) if not cached yet.
//
// Calling Value twice without a Reset in between returns the same Batch.
func (n *Node) Value() *batches.Batch {
	if n.value != nil {
		return n.value
	}
	n.partials = make([]*batches.Batch, len(n.inputs))
	value := n.op.forward(n)
	if !value.Shape().Equal(n.shape) {
		shapes.PanicMismatch("%s produced a value with shape %s", n, value.Shape())
	}
	n.value = value
	return value
}

// Dual returns the gradient of the loss with respect to the output of this node, computing it
// if not cached yet.
//
// The loss is the node with no consumers: its dual is ones. For every other node the dual is the
// sum of the contributions of every consumer (chain rule), so a node used in more than one place
// accumulates the gradients of all paths to the loss.
//
// It requires that the forward pass (Value of the loss) was run first, otherwise it panics
// with ErrUninitializedPartial.
func (n *Node) Dual() *batches.Batch {
	if n.dual != nil {
		return n.dual
	}
	if overrider, ok := n.op.(dualOverrider); ok {
		n.dual = overrider.dual(n)
	} else {
		n.dual = n.accumulateDual(nil)
	}
	return n.dual
}

// accumulateDual sums the contributions of all consumers. If adjust is given, it is applied to
// each contribution before it is summed.
func (n *Node) accumulateDual(adjust func(contribution *batches.Batch) *batches.Batch) *batches.Batch {
	if len(n.consumers) == 0 {
		return batches.Ones(n.shape)
	}
	dual := batches.Zeros(n.shape)
	for _, edge := range n.consumers {
		consumer := edge.node
		if consumer.value == nil {
			panic(errors.Wrapf(ErrUninitializedPartial,
				"gradient of %s requested through %s, but the forward pass of %s was not run", n, consumer, consumer))
		}
		contribution := consumer.op.backward(consumer, edge.input)
		if adjust != nil {
			contribution = adjust(contribution)
		}
		if !contribution.Shape().Equal(n.shape) {
			shapes.PanicMismatch("gradient of %s through %s (input #%d) has shape %s",
				n, consumer, edge.input, contribution.Shape())
		}
		dual = dual.Plus(contribution)
	}
	return dual
}

// Reset clears the cached value, dual and partials, so the next Value and Dual calls
// recompute them. Leaves (Variable and Placeholder) keep their values, only their dual is cleared.
//
// Reset doesn't propagate: to reset a whole graph see ResetAll.
func (n *Node) Reset() {
	n.value = nil
	n.dual = nil
	n.partials = nil
}

// partial returns the partial derivative stored for the given input during the forward pass.
// It panics with ErrUninitializedPartial if it is not there.
func (n *Node) partial(input int) *batches.Batch {
	if input >= len(n.partials) || n.partials[input] == nil {
		panic(errors.Wrapf(ErrUninitializedPartial, "%s: no partial derivative for input #%d (%s)",
			n, input, n.inputs[input]))
	}
	return n.partials[input]
}

// ValueOrError is like Node.Value, but it returns an error instead of panicking.
func ValueOrError(n *Node) (value *batches.Batch, err error) {
	err = exceptions.TryCatch[error](func() { value = n.Value() })
	return
}

// DualOrError is like Node.Dual, but it returns an error instead of panicking.
func DualOrError(n *Node) (dual *batches.Batch, err error) {
	err = exceptions.TryCatch[error](func() { dual = n.Dual() })
	return
}

// Chain rule implementations shared by the operators.

// jacobianBackward multiplies the stored partial (a Jacobian, one matrix per batch entry) by the dual.
func jacobianBackward(n *Node, input int) *batches.Batch {
	return n.partial(input).Times(n.Dual())
}

// elementwiseBackward multiplies the stored partial elementwise by the dual.
func elementwiseBackward(n *Node, input int) *batches.Batch {
	return n.partial(input).Mul(n.Dual())
}

// scalarBackward scales the stored partial by the dual, which is known to be a scalar.
func scalarBackward(n *Node, input int) *batches.Batch {
	return n.partial(input).Scale(n.Dual().Value())
}
