package forkline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/forkline-ai/forkline/retry"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	Graph  *Graph
	Store  Store
	Logger *slog.Logger
	Hooks  Hooks

	// CheckpointRetries bounds retries of a failed checkpoint write. Each
	// retry reuses the same checkpoint ID, so stores see an idempotent
	// overwrite. Defaults to 3.
	CheckpointRetries int
}

// Engine steps a conversation graph through one turn at a time, persisting a
// checkpoint after every node so a thread can be resumed, replayed, or
// branched from any point. One engine serves many threads; threads never
// share mutable state, so turns on different threads may run fully in
// parallel.
type Engine struct {
	graph             *Graph
	store             Store
	logger            *slog.Logger
	hooks             Hooks
	checkpointRetries int
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	ThreadID    string
	Snapshot    State
	Checkpoints []*Checkpoint
}

// NewEngine validates the options and returns a new Engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Hooks == nil {
		opts.Hooks = BaseHooks{}
	}
	if opts.CheckpointRetries <= 0 {
		opts.CheckpointRetries = 3
	}
	return &Engine{
		graph:             opts.Graph,
		store:             opts.Store,
		logger:            opts.Logger,
		hooks:             opts.Hooks,
		checkpointRetries: opts.CheckpointRetries,
	}, nil
}

// Graph returns the engine's graph.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Store returns the engine's checkpoint store.
func (e *Engine) Store() Store {
	return e.store
}

// SubmitTurn runs one turn against the thread's latest checkpoint. A thread
// with no prior checkpoints starts from a genesis snapshot. Events stream to
// sink while nodes run; pass nil to discard them.
func (e *Engine) SubmitTurn(ctx context.Context, threadID string, input State, sink EventSink) (*TurnResult, error) {
	latest, err := e.store.Latest(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	return e.runTurn(ctx, threadID, latest, input, sink)
}

// ResumeTurn runs one turn starting from a specific checkpoint instead of
// the thread's latest. The new checkpoints are appended with that checkpoint
// as parent, advancing the same thread; checkpoints after the resume point
// stay stored but are no longer the active tip.
func (e *Engine) ResumeTurn(ctx context.Context, threadID, checkpointID string, input State, sink EventSink) (*TurnResult, error) {
	from, err := e.store.Get(ctx, threadID, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", checkpointID, err)
	}
	if from == nil {
		return nil, fmt.Errorf("checkpoint %s not found on thread %s", checkpointID, threadID)
	}
	return e.runTurn(ctx, threadID, from, input, sink)
}

// runTurn implements the turn algorithm: merge input, checkpoint the turn's
// starting point, then loop node -> merge -> checkpoint -> route until a
// terminal marker. The checkpoint-then-route ordering means a crash between
// node completion and routing loses no node work: on resume, routing is
// re-evaluated from a fully persisted snapshot.
func (e *Engine) runTurn(ctx context.Context, threadID string, from *Checkpoint, input State, sink EventSink) (*TurnResult, error) {
	if sink == nil {
		sink = NullSink{}
	}
	logger := e.logger.With("thread_id", threadID)
	schema := e.graph.Schema()

	var snapshot State
	var parentID string
	if from != nil {
		snapshot = from.State.Clone()
		parentID = from.ID
	} else {
		snapshot = State{}
	}

	if input != nil {
		merged, err := schema.Apply(snapshot, input)
		if err != nil {
			return nil, err
		}
		snapshot = merged
	}

	turnStart := time.Now()
	e.hooks.BeforeTurn(ctx, &TurnEvent{
		ThreadID:  threadID,
		GraphName: e.graph.Name(),
		StartTime: turnStart,
	})

	var created []*Checkpoint
	finish := func(err error) (*TurnResult, error) {
		endTime := time.Now()
		e.hooks.AfterTurn(ctx, &TurnEvent{
			ThreadID:    threadID,
			GraphName:   e.graph.Name(),
			StartTime:   turnStart,
			EndTime:     endTime,
			Duration:    endTime.Sub(turnStart),
			Checkpoints: len(created),
			Error:       err,
		})
		if err != nil {
			return nil, err
		}
		return &TurnResult{ThreadID: threadID, Snapshot: snapshot, Checkpoints: created}, nil
	}

	// Persist the turn's starting point before any node runs.
	active := e.graph.Entry()
	turnInput, err := e.persistCheckpoint(ctx, threadID, parentID, snapshot, []string{active})
	if err != nil {
		return finish(err)
	}
	created = append(created, turnInput)
	parentID = turnInput.ID

	for active != End {
		if err := ctx.Err(); err != nil {
			// Abandoned turn: nothing from the in-flight node is persisted.
			logger.Info("turn cancelled", "node", active)
			return finish(err)
		}

		node, ok := e.graph.Node(active)
		if !ok {
			return finish(fmt.Errorf("node %q not found", active))
		}

		nodeStart := time.Now()
		e.hooks.BeforeNode(ctx, &NodeEvent{
			ThreadID:  threadID,
			GraphName: e.graph.Name(),
			NodeName:  active,
			StartTime: nodeStart,
		})
		sink.Emit(Event{Type: EventNodeStart, Node: active})

		update, nodeErr := node.Execute(ctx, snapshot.Clone(), nodeSink{node: active, next: sink})
		if nodeErr == nil && ctx.Err() != nil {
			nodeErr = ctx.Err()
		}
		if nodeErr == nil && update != nil {
			snapshot, nodeErr = schema.Apply(snapshot, update)
		}

		var checkpoint *Checkpoint
		var next string
		if nodeErr == nil {
			// Routing is evaluated before the write so the checkpoint can
			// record NextNodes. Routing functions are pure reads of the
			// snapshot, so a crash between here and the Put still leaves the
			// thread at the previous checkpoint with nothing half-applied; the
			// node's update only becomes durable together with its route.
			next, nodeErr = e.graph.Next(active, snapshot)
		}
		if nodeErr == nil {
			nextNodes := []string{next}
			if next == End {
				nextNodes = nil
			}
			checkpoint, nodeErr = e.persistCheckpoint(ctx, threadID, parentID, snapshot, nextNodes)
		}

		nodeEnd := time.Now()
		event := &NodeEvent{
			ThreadID:  threadID,
			GraphName: e.graph.Name(),
			NodeName:  active,
			StartTime: nodeStart,
			EndTime:   nodeEnd,
			Duration:  nodeEnd.Sub(nodeStart),
			Error:     nodeErr,
		}
		if checkpoint != nil {
			event.CheckpointID = checkpoint.ID
		}
		e.hooks.AfterNode(ctx, event)

		if nodeErr != nil {
			logger.Error("node failed", "node", active, "error", nodeErr)
			return finish(nodeErr)
		}

		sink.Emit(Event{
			Type: EventNodeUpdate,
			Node: active,
			Fields: map[string]any{
				"checkpoint_id": checkpoint.ID,
				"channels":      updateChannels(update),
			},
		})
		logger.Debug("node completed",
			"node", active,
			"checkpoint_id", checkpoint.ID,
			"next", next)

		created = append(created, checkpoint)
		parentID = checkpoint.ID
		active = next
	}

	sink.Emit(Event{Type: EventTurnDone, Fields: map[string]any{"checkpoints": len(created)}})
	logger.Info("turn completed", "checkpoints", len(created))
	return finish(nil)
}

// persistCheckpoint writes a checkpoint, retrying transient store failures
// with the same checkpoint ID. If the store stays unavailable the turn
// fails closed: no unpersisted progress is ever reported as success.
func (e *Engine) persistCheckpoint(ctx context.Context, threadID, parentID string, snapshot State, nextNodes []string) (*Checkpoint, error) {
	checkpoint := &Checkpoint{
		ThreadID:  threadID,
		ID:        NewCheckpointID(),
		ParentID:  parentID,
		State:     snapshot.Clone(),
		NextNodes: nextNodes,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.put(ctx, checkpoint); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// put writes one checkpoint with the engine's retry and fail-closed policy.
func (e *Engine) put(ctx context.Context, checkpoint *Checkpoint) error {
	err := retry.Do(ctx, func() error {
		return e.store.Put(ctx, checkpoint)
	}, retry.WithMaxRetries(e.checkpointRetries))
	if err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return nil
}

func updateChannels(update State) []string {
	if len(update) == 0 {
		return nil
	}
	channels := make([]string, 0, len(update))
	for key := range update {
		channels = append(channels, key)
	}
	sort.Strings(channels)
	return channels
}
