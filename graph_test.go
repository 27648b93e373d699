package forkline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func passNode(name string) Node {
	return NewNodeFunc(name, func(ctx context.Context, snapshot State, sink EventSink) (State, error) {
		return nil, nil
	})
}

func TestNewGraph(t *testing.T) {
	schema := testSchema(t)

	t.Run("valid graph", func(t *testing.T) {
		graph, err := NewGraph(GraphOptions{
			Name:   "test",
			Schema: schema,
			Entry:  "a",
			Nodes:  []Node{passNode("a"), passNode("b")},
			Edges:  []Edge{{From: "a", To: "b"}, {From: "b", To: End}},
		})
		require.NoError(t, err)
		require.Equal(t, "a", graph.Entry())
		require.Equal(t, []string{"a", "b"}, graph.NodeNames())
	})

	t.Run("entry not found", func(t *testing.T) {
		_, err := NewGraph(GraphOptions{
			Name:   "test",
			Schema: schema,
			Entry:  "missing",
			Nodes:  []Node{passNode("a")},
			Edges:  []Edge{{From: "a", To: End}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `entry node "missing" not found`)
	})

	t.Run("edge to unknown node", func(t *testing.T) {
		_, err := NewGraph(GraphOptions{
			Name:   "test",
			Schema: schema,
			Entry:  "a",
			Nodes:  []Node{passNode("a")},
			Edges:  []Edge{{From: "a", To: "ghost"}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `edge to unknown node "ghost"`)
	})

	t.Run("route target unknown", func(t *testing.T) {
		_, err := NewGraph(GraphOptions{
			Name:   "test",
			Schema: schema,
			Entry:  "a",
			Nodes:  []Node{passNode("a")},
			Routes: []Route{{
				From:    "a",
				Targets: []string{"ghost"},
				Pick:    func(State) string { return "ghost" },
			}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `unknown target "ghost"`)
	})

	t.Run("node without transition", func(t *testing.T) {
		_, err := NewGraph(GraphOptions{
			Name:   "test",
			Schema: schema,
			Entry:  "a",
			Nodes:  []Node{passNode("a"), passNode("b")},
			Edges:  []Edge{{From: "a", To: "b"}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `node "b" has no outgoing edge or route`)
	})

	t.Run("edge and route conflict", func(t *testing.T) {
		_, err := NewGraph(GraphOptions{
			Name:   "test",
			Schema: schema,
			Entry:  "a",
			Nodes:  []Node{passNode("a")},
			Edges:  []Edge{{From: "a", To: End}},
			Routes: []Route{{
				From:    "a",
				Targets: []string{End},
				Pick:    func(State) string { return End },
			}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "both a static edge and a route")
	})
}

func TestGraphNext(t *testing.T) {
	schema := testSchema(t)
	graph, err := NewGraph(GraphOptions{
		Name:   "test",
		Schema: schema,
		Entry:  "start",
		Nodes:  []Node{passNode("start"), passNode("left"), passNode("right")},
		Edges:  []Edge{{From: "left", To: End}, {From: "right", To: End}},
		Routes: []Route{{
			From:    "start",
			Targets: []string{"left", "right"},
			Pick: func(snapshot State) string {
				return snapshot.StringValue(ChannelIntent)
			},
		}},
	})
	require.NoError(t, err)

	t.Run("static edge", func(t *testing.T) {
		next, err := graph.Next("left", State{})
		require.NoError(t, err)
		require.Equal(t, End, next)
	})

	t.Run("route picks declared target", func(t *testing.T) {
		next, err := graph.Next("start", State{ChannelIntent: "right"})
		require.NoError(t, err)
		require.Equal(t, "right", next)
	})

	t.Run("undeclared pick is a routing error", func(t *testing.T) {
		_, err := graph.Next("start", State{ChannelIntent: "elsewhere"})
		require.Error(t, err)

		var routingErr *RoutingError
		require.ErrorAs(t, err, &routingErr)
		require.Equal(t, "start", routingErr.From)
		require.Equal(t, "elsewhere", routingErr.Target)
		require.True(t, IsFatal(err))
	})
}
