package graph

import (
	"strings"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

// Node is one planned action to be ordered.
type Node struct {
	Module  v1alpha1.ModuleDescriptor
	Disable bool
}

// CycleError reports modules that could not be ordered because their
// required interfaces form a cycle.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return "Some modules cannot be topological sorted: " + strings.Join(e.IDs, ", ")
}

type edges struct {
	out      [][]int
	required []int
	optional []int
}

// Sort returns an ordering of nodes (as indexes into nodes) in which every
// provider is enabled before its consumers and, when both are disabled, every
// consumer is disabled before its provider.
//
// Ties keep the input order. Dependencies that are only optional are dropped
// when they would otherwise block progress.
func Sort(nodes []Node) ([]int, error) {
	e := buildEdges(nodes)
	done := make([]bool, len(nodes))
	order := make([]int, 0, len(nodes))

	for len(order) < len(nodes) {
		next := -1
		for i := range nodes {
			if !done[i] && e.required[i] == 0 && e.optional[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			for i := range nodes {
				if !done[i] && e.required[i] == 0 {
					next = i
					break
				}
			}
		}
		if next < 0 {
			var ids []string
			for i := range nodes {
				if !done[i] {
					ids = append(ids, nodes[i].Module.ID)
				}
			}
			return nil, &CycleError{IDs: ids}
		}
		done[next] = true
		order = append(order, next)
		for _, to := range e.out[next] {
			if to < 0 {
				e.optional[-to-1]--
				continue
			}
			e.required[to]--
		}
	}
	return order, nil
}

// buildEdges records an edge from the node that must come first to the node
// that must follow. Optional edges are stored in out as -(index+1).
func buildEdges(nodes []Node) edges {
	e := edges{
		out:      make([][]int, len(nodes)),
		required: make([]int, len(nodes)),
		optional: make([]int, len(nodes)),
	}
	for c, consumer := range nodes {
		for p, producer := range nodes {
			if p == c || producer.Module.ID == consumer.Module.ID {
				continue
			}
			required := dependsOn(consumer.Module.Requires, producer.Module)
			optional := !required && dependsOn(consumer.Module.Optional, producer.Module)
			if !required && !optional {
				continue
			}
			from, to := p, c
			if consumer.Disable && producer.Disable {
				from, to = c, p
			}
			if required {
				e.out[from] = append(e.out[from], to)
				e.required[to]++
			} else {
				e.out[from] = append(e.out[from], -to-1)
				e.optional[to]++
			}
		}
	}
	return e
}

func dependsOn(refs []v1alpha1.InterfaceDescriptor, producer v1alpha1.ModuleDescriptor) bool {
	for _, ref := range refs {
		if ProvidesCompatible(producer, ref) {
			return true
		}
	}
	return false
}
