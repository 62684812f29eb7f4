// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// leafOp holds the state of Variable and Placeholder nodes. Leaves have no inputs, so backward
// is never called on them.
type leafOp struct {
	nodeType NodeType
	name     string
	value    *batches.Batch
}

func (op *leafOp) Type() NodeType { return op.nodeType }

func (op *leafOp) forward(node *Node) *batches.Batch {
	if op.value == nil {
		if op.nodeType == NodeTypePlaceholder {
			panic(errors.Wrapf(ErrMissingValue, "%s: value requested before Placeholder.SetValue()", node))
		}
		op.value = batches.Zeros(node.shape)
	}
	return op.value
}

func (op *leafOp) backward(node *Node, input int) *batches.Batch {
	exceptions.Panicf("%s has no inputs, backward(%d) is invalid", node, input)
	return nil
}

// Variable creates a trainable leaf node: a parameter of a model, that optimizers are allowed to update.
//
// The value can be nil, in which case it is initialized with zeros of the given shape the first
// time it is used. Otherwise, its shape must match.
func Variable(name string, shape shapes.Shape, value *batches.Batch) *Node {
	if value != nil {
		value.Shape().Assert(shape)
	}
	return newNode(&leafOp{nodeType: NodeTypeVariable, name: name, value: value}, shape)
}

// Placeholder creates a non-trainable leaf node, whose value is set externally with SetValue,
// for instance the inputs and labels of a training example.
//
// Using its value before SetValue is called panics with ErrMissingValue.
func Placeholder(shape shapes.Shape) *Node {
	return newNode(&leafOp{nodeType: NodeTypePlaceholder}, shape)
}

func (n *Node) leaf(method string) *leafOp {
	op, ok := n.op.(*leafOp)
	if !ok {
		exceptions.Panicf("%s: %s is only valid for Variable or Placeholder nodes", n, method)
	}
	return op
}

// IsVariable returns whether the node is a trainable Variable.
func (n *Node) IsVariable() bool { return n.Type() == NodeTypeVariable }

// IsPlaceholder returns whether the node is a Placeholder.
func (n *Node) IsPlaceholder() bool { return n.Type() == NodeTypePlaceholder }

// SetValue sets the value of a Variable or Placeholder. It panics for other node types, or if
// the shape of value doesn't match the node's shape.
//
// Nodes that use the leaf don't see the new value until they are Reset.
func (n *Node) SetValue(value *batches.Batch) {
	op := n.leaf("SetValue")
	if value == nil {
		exceptions.Panicf("%s: SetValue(nil)", n)
	}
	value.Shape().Assert(n.shape)
	op.value = value
	n.value = value
}

// VariableName returns the name of a Variable, or "" for any other node type.
func (n *Node) VariableName() string {
	if op, ok := n.op.(*leafOp); ok {
		return op.name
	}
	return ""
}

// CopyVariable returns a new Variable with the same name and a deep copy of the value,
// not connected to any graph. It is used to create independent parameter copies, e.g. one
// per training worker.
func (n *Node) CopyVariable() *Node {
	if !n.IsVariable() {
		exceptions.Panicf("%s: CopyVariable is only valid for Variable nodes", n)
	}
	op := n.leaf("CopyVariable")
	var value *batches.Batch
	if op.value != nil {
		value = op.value.Copy()
	}
	return Variable(op.name, n.shape, value)
}
