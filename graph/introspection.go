package graph

// This file defines functions that allow for introspection of the graph, used by the optimizers
// to find the trainable variables and to reset the caches of every node between passes.

// Walk visits root and every node it depends on, depth-first through the inputs, calling fn once
// per node. A node is visited after all of its inputs (post-order), so fn sees inputs before
// the nodes that consume them.
func Walk(root *Node, fn func(node *Node)) {
	visited := make(map[*Node]bool)
	var visit func(node *Node)
	visit = func(node *Node) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, input := range node.inputs {
			visit(input)
		}
		fn(node)
	}
	visit(root)
}

// Collect returns every node root depends on (root included), and the subset of those nodes
// that are Variables, both in the order visited by Walk.
func Collect(root *Node) (nodes, variables []*Node) {
	Walk(root, func(node *Node) {
		nodes = append(nodes, node)
		if node.IsVariable() {
			variables = append(variables, node)
		}
	})
	return
}

// ResetAll calls Reset on every node.
func ResetAll(nodes []*Node) {
	for _, node := range nodes {
		node.Reset()
	}
}
