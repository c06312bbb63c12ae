// Package graph provides a small directed dependency graph used to order
// create and delete operations.
//
// An edge from a to b means "a depends on b": b must be created before a
// and deleted after it. The graph is generic over any comparable node
// type; elabctl uses it with types.NameNode vertices.
package graph

import (
	"errors"
	"fmt"
)

// ErrCyclic is returned when a topological ordering is requested on a
// graph that contains a cycle.
var ErrCyclic = errors.New("dependency graph contains a cycle")

// Graph is a directed graph over nodes of type T.
//
// A flexible graph auto-creates nodes referenced by edges; a rigid graph
// rejects edges whose endpoints were not declared up front, which turns
// dangling manifest references into immediate errors instead of phantom
// nodes. Node and edge insertion order is preserved so orderings are
// deterministic.
type Graph[T comparable] struct {
	rigid bool
	nodes []T
	deps  map[T][]T
	edges map[T]map[T]struct{}
}

// New returns an empty flexible graph.
func New[T comparable]() *Graph[T] {
	return &Graph[T]{
		deps:  make(map[T][]T),
		edges: make(map[T]map[T]struct{}),
	}
}

// NewRigid returns an empty rigid graph. AddEdge fails unless both
// endpoints were added with AddNode first.
func NewRigid[T comparable]() *Graph[T] {
	g := New[T]()
	g.rigid = true
	return g
}

// HasNode reports whether node is part of the graph.
func (g *Graph[T]) HasNode(node T) bool {
	_, ok := g.edges[node]
	return ok
}

// Len returns the number of nodes.
func (g *Graph[T]) Len() int {
	return len(g.nodes)
}

// Nodes returns all nodes in insertion order.
func (g *Graph[T]) Nodes() []T {
	out := make([]T, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// AddNode adds a node with no dependencies. Adding an existing node is an
// error on a rigid graph and a no-op otherwise.
func (g *Graph[T]) AddNode(node T) error {
	if g.HasNode(node) {
		if g.rigid {
			return fmt.Errorf("node %v already exists", node)
		}
		return nil
	}
	g.addNode(node)
	return nil
}

func (g *Graph[T]) addNode(node T) {
	g.nodes = append(g.nodes, node)
	g.edges[node] = make(map[T]struct{})
}

// AddEdge records that source depends on destination. On a flexible
// graph missing endpoints are created; on a rigid graph they are errors.
func (g *Graph[T]) AddEdge(source, destination T) error {
	if g.rigid {
		if !g.HasNode(destination) {
			return fmt.Errorf("dependency %v is not declared in the graph", destination)
		}
		if !g.HasNode(source) {
			return fmt.Errorf("node %v is not declared in the graph", source)
		}
	} else {
		if !g.HasNode(source) {
			g.addNode(source)
		}
		if !g.HasNode(destination) {
			g.addNode(destination)
		}
	}
	if _, ok := g.edges[source][destination]; !ok {
		g.edges[source][destination] = struct{}{}
		g.deps[source] = append(g.deps[source], destination)
	}
	return nil
}

// Dependencies returns the direct dependencies of node in edge insertion
// order.
func (g *Graph[T]) Dependencies(node T) []T {
	out := make([]T, len(g.deps[node]))
	copy(out, g.deps[node])
	return out
}

// IsCyclic reports whether the graph contains a directed cycle.
func (g *Graph[T]) IsCyclic() bool {
	visited := make(map[T]bool, len(g.nodes))
	onStack := make(map[T]bool)

	var visit func(node T) bool
	visit = func(node T) bool {
		visited[node] = true
		onStack[node] = true
		for _, dep := range g.deps[node] {
			if !visited[dep] {
				if visit(dep) {
					return true
				}
			} else if onStack[dep] {
				return true
			}
		}
		delete(onStack, node)
		return false
	}

	for _, node := range g.nodes {
		if !visited[node] && visit(node) {
			return true
		}
	}
	return false
}

// OrderedNodes returns all nodes in creation order: every node appears
// after all of its dependencies. Returns ErrCyclic if no such order
// exists. Deletion order is the exact reverse, see ReverseOrderedNodes.
func (g *Graph[T]) OrderedNodes() ([]T, error) {
	if g.IsCyclic() {
		return nil, ErrCyclic
	}

	visited := make(map[T]bool, len(g.nodes))
	ordering := make([]T, 0, len(g.nodes))

	var visit func(node T)
	visit = func(node T) {
		visited[node] = true
		for _, dep := range g.deps[node] {
			if !visited[dep] {
				visit(dep)
			}
		}
		ordering = append(ordering, node)
	}

	for _, node := range g.nodes {
		if !visited[node] {
			visit(node)
		}
	}
	return ordering, nil
}

// ReverseOrderedNodes returns nodes in deletion order: every node appears
// before all of its dependencies.
func (g *Graph[T]) ReverseOrderedNodes() ([]T, error) {
	ordered, err := g.OrderedNodes()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered, nil
}
