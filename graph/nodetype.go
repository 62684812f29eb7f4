// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import "fmt"

// NodeType identifies the operation performed by a Node.
type NodeType int

const (
	NodeTypeInvalid NodeType = iota
	NodeTypeVariable
	NodeTypePlaceholder
	NodeTypeSum
	NodeTypeAverage
	NodeTypeMul
	NodeTypeMatmul
	NodeTypeConcat
	NodeTypePack
	NodeTypeFlatten
	NodeTypeTranspose
	NodeTypeSigmoid
	NodeTypeTanh
	NodeTypeReLU
	NodeTypeSoftmax
	NodeTypeExp
	NodeTypeCrossEntropyLoss
	NodeTypeBinaryCrossEntropyLoss
	NodeTypeMSELoss
	NodeTypeHammingLoss
	NodeTypeFrobeniusNorm
	NodeTypeInvolution
)

var nodeTypeNames = [...]string{
	NodeTypeInvalid:                "Invalid",
	NodeTypeVariable:               "Variable",
	NodeTypePlaceholder:            "Placeholder",
	NodeTypeSum:                    "Sum",
	NodeTypeAverage:                "Average",
	NodeTypeMul:                    "Mul",
	NodeTypeMatmul:                 "Matmul",
	NodeTypeConcat:                 "Concat",
	NodeTypePack:                   "Pack",
	NodeTypeFlatten:                "Flatten",
	NodeTypeTranspose:              "Transpose",
	NodeTypeSigmoid:                "Sigmoid",
	NodeTypeTanh:                   "Tanh",
	NodeTypeReLU:                   "ReLU",
	NodeTypeSoftmax:                "Softmax",
	NodeTypeExp:                    "Exp",
	NodeTypeCrossEntropyLoss:       "CrossEntropyLoss",
	NodeTypeBinaryCrossEntropyLoss: "BinaryCrossEntropyLoss",
	NodeTypeMSELoss:                "MSELoss",
	NodeTypeHammingLoss:            "HammingLoss",
	NodeTypeFrobeniusNorm:          "FrobeniusNorm",
	NodeTypeInvolution:             "Involution",
}

// String implements fmt.Stringer.
func (t NodeType) String() string {
	if t < 0 || int(t) >= len(nodeTypeNames) {
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
	return nodeTypeNames[t]
}
