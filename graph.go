package forkline

import (
	"context"
	"fmt"
	"sort"
)

// End is the terminal marker. A static edge or routing function that yields
// End stops the turn.
const End = "__end__"

// Node is a named unit of work in the graph. Execute receives the current
// snapshot and returns a partial update to be merged through the schema. A
// node may emit streaming events through the sink before returning.
type Node interface {
	Name() string
	Execute(ctx context.Context, snapshot State, sink EventSink) (State, error)
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc struct {
	name string
	fn   func(ctx context.Context, snapshot State, sink EventSink) (State, error)
}

// NewNodeFunc creates a NodeFunc with the given name.
func NewNodeFunc(name string, fn func(ctx context.Context, snapshot State, sink EventSink) (State, error)) *NodeFunc {
	return &NodeFunc{name: name, fn: fn}
}

func (n *NodeFunc) Name() string {
	return n.name
}

func (n *NodeFunc) Execute(ctx context.Context, snapshot State, sink EventSink) (State, error) {
	return n.fn(ctx, snapshot, sink)
}

// RoutingFunc inspects a merged snapshot and picks the next node. The
// returned name must be one of the route's declared targets.
type RoutingFunc func(snapshot State) string

// Edge is an unconditional transition between two nodes.
type Edge struct {
	From string
	To   string
}

// Route is a conditional transition: after From completes, Pick is evaluated
// against the merged snapshot and must return one of Targets.
type Route struct {
	From    string
	Targets []string
	Pick    RoutingFunc
}

// GraphOptions configures a graph.
type GraphOptions struct {
	Name   string
	Schema *Schema
	Entry  string
	Nodes  []Node
	Edges  []Edge
	Routes []Route
}

// Graph is a validated, immutable set of nodes and transitions sharing one
// state schema. All referential checks happen at construction time so that a
// bad wiring fails fast rather than mid-turn.
type Graph struct {
	name   string
	schema *Schema
	entry  string
	nodes  map[string]Node
	edges  map[string]string
	routes map[string]Route
}

// NewGraph validates the options and returns a new Graph.
func NewGraph(opts GraphOptions) (*Graph, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("graph name required")
	}
	if opts.Schema == nil {
		return nil, fmt.Errorf("state schema required")
	}
	if len(opts.Nodes) == 0 {
		return nil, fmt.Errorf("nodes required")
	}

	nodes := make(map[string]Node, len(opts.Nodes))
	for _, node := range opts.Nodes {
		if node.Name() == "" {
			return nil, fmt.Errorf("node name required")
		}
		if node.Name() == End {
			return nil, fmt.Errorf("node name %q is reserved", End)
		}
		if _, ok := nodes[node.Name()]; ok {
			return nil, fmt.Errorf("duplicate node %q", node.Name())
		}
		nodes[node.Name()] = node
	}

	if opts.Entry == "" {
		return nil, fmt.Errorf("entry node required")
	}
	if _, ok := nodes[opts.Entry]; !ok {
		return nil, fmt.Errorf("entry node %q not found", opts.Entry)
	}

	edges := make(map[string]string, len(opts.Edges))
	for _, edge := range opts.Edges {
		if _, ok := nodes[edge.From]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", edge.From)
		}
		if edge.To != End {
			if _, ok := nodes[edge.To]; !ok {
				return nil, fmt.Errorf("edge to unknown node %q", edge.To)
			}
		}
		if _, ok := edges[edge.From]; ok {
			return nil, fmt.Errorf("node %q has multiple static edges", edge.From)
		}
		edges[edge.From] = edge.To
	}

	routes := make(map[string]Route, len(opts.Routes))
	for _, route := range opts.Routes {
		if _, ok := nodes[route.From]; !ok {
			return nil, fmt.Errorf("route from unknown node %q", route.From)
		}
		if _, ok := edges[route.From]; ok {
			return nil, fmt.Errorf("node %q has both a static edge and a route", route.From)
		}
		if _, ok := routes[route.From]; ok {
			return nil, fmt.Errorf("node %q has multiple routes", route.From)
		}
		if route.Pick == nil {
			return nil, fmt.Errorf("route from %q missing routing function", route.From)
		}
		if len(route.Targets) == 0 {
			return nil, fmt.Errorf("route from %q declares no targets", route.From)
		}
		for _, target := range route.Targets {
			if target == End {
				continue
			}
			if _, ok := nodes[target]; !ok {
				return nil, fmt.Errorf("route from %q declares unknown target %q", route.From, target)
			}
		}
		routes[route.From] = route
	}

	// Every node must have exactly one way out.
	for name := range nodes {
		_, hasEdge := edges[name]
		_, hasRoute := routes[name]
		if !hasEdge && !hasRoute {
			return nil, fmt.Errorf("node %q has no outgoing edge or route", name)
		}
	}

	return &Graph{
		name:   opts.Name,
		schema: opts.Schema,
		entry:  opts.Entry,
		nodes:  nodes,
		edges:  edges,
		routes: routes,
	}, nil
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// Schema returns the graph's state schema.
func (g *Graph) Schema() *Schema {
	return g.schema
}

// Entry returns the entry node name.
func (g *Graph) Entry() string {
	return g.entry
}

// Node returns a node by name.
func (g *Graph) Node(name string) (Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// NodeNames returns the names of all nodes, sorted.
func (g *Graph) NodeNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next resolves the transition out of the named node against the merged
// snapshot. It returns End when the turn should stop.
func (g *Graph) Next(from string, snapshot State) (string, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	route, ok := g.routes[from]
	if !ok {
		return "", fmt.Errorf("node %q has no transition", from)
	}
	target := route.Pick(snapshot)
	for _, declared := range route.Targets {
		if target == declared {
			return target, nil
		}
	}
	return "", &RoutingError{From: from, Target: target}
}
