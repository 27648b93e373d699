package forkline

import (
	"context"
	"fmt"

	"github.com/forkline-ai/forkline/order"
)

// Threads manages conversation threads on top of the checkpoint store:
// history listing, resuming from an arbitrary checkpoint, forking a thread
// into an independent branch, and deletion.
type Threads struct {
	engine *Engine
}

// NewThreads creates a thread manager backed by the engine's store.
func NewThreads(engine *Engine) *Threads {
	return &Threads{engine: engine}
}

// HistoryEntry summarizes one checkpoint so a caller can locate a point of
// interest ("the checkpoint just before vendor search") without loading
// full snapshots.
type HistoryEntry struct {
	CheckpointID      string       `json:"checkpoint_id"`
	ParentID          string       `json:"parent_id,omitempty"`
	NextNodes         []string     `json:"next_nodes,omitempty"`
	WorkflowStep      order.Step   `json:"workflow_step,omitempty"`
	CompletedSteps    []order.Step `json:"completed_steps,omitempty"`
	SelectedVendor    string       `json:"selected_vendor,omitempty"`
	Total             float64      `json:"total,omitempty"`
	Intent            string       `json:"intent,omitempty"`
	MessageCount      int          `json:"message_count"`
	HasPendingActions bool         `json:"has_pending_actions"`
}

// BranchResult is the outcome of a branch operation.
type BranchResult struct {
	NewThreadID string
	Turn        *TurnResult
}

// SubmitTurn runs one turn on the thread's active tip.
func (t *Threads) SubmitTurn(ctx context.Context, threadID string, input State, sink EventSink) (*TurnResult, error) {
	return t.engine.SubmitTurn(ctx, threadID, input, sink)
}

// History lists a thread's checkpoints, most recent first. The underlying
// iterator walks the parent chain one checkpoint at a time.
func (t *Threads) History(ctx context.Context, threadID string, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	it := History(ctx, t.engine.Store(), threadID, limit)
	for it.Next() {
		entries = append(entries, summarize(it.Checkpoint()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to walk history for thread %s: %w", threadID, err)
	}
	return entries, nil
}

// Resume runs a turn starting from the named checkpoint, advancing the same
// thread. Checkpoints recorded after the resume point remain stored but are
// no longer the active tip.
func (t *Threads) Resume(ctx context.Context, threadID, checkpointID string, input State, sink EventSink) (*TurnResult, error) {
	return t.engine.ResumeTurn(ctx, threadID, checkpointID, input, sink)
}

// Branch forks a new thread whose genesis snapshot is a copy of the named
// checkpoint's snapshot with overrides applied through the schema, then
// runs a turn on the new thread. The original thread is untouched.
func (t *Threads) Branch(ctx context.Context, threadID, checkpointID string, overrides State, input State, sink EventSink) (*BranchResult, error) {
	source, err := t.engine.Store().Get(ctx, threadID, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", checkpointID, err)
	}
	if source == nil {
		return nil, fmt.Errorf("checkpoint %s not found on thread %s", checkpointID, threadID)
	}

	snapshot := source.State.Clone()
	if overrides != nil {
		snapshot, err = t.engine.Graph().Schema().Apply(snapshot, overrides)
		if err != nil {
			return nil, err
		}
	}

	newThreadID := NewThreadID()
	genesis := &Checkpoint{
		ThreadID:  newThreadID,
		ID:        NewCheckpointID(),
		State:     snapshot,
		CreatedAt: source.CreatedAt,
	}
	// Same retry and fail-closed policy as every engine checkpoint write.
	if err := t.engine.put(ctx, genesis); err != nil {
		return nil, fmt.Errorf("branch genesis: %w", err)
	}

	turn, err := t.engine.SubmitTurn(ctx, newThreadID, input, sink)
	if err != nil {
		return nil, err
	}
	return &BranchResult{NewThreadID: newThreadID, Turn: turn}, nil
}

// Delete removes a thread's entire checkpoint chain.
func (t *Threads) Delete(ctx context.Context, threadID string) error {
	return t.engine.Store().DeleteThread(ctx, threadID)
}

func summarize(checkpoint *Checkpoint) HistoryEntry {
	snapshot := checkpoint.State
	entry := HistoryEntry{
		CheckpointID: checkpoint.ID,
		ParentID:     checkpoint.ParentID,
		NextNodes:    checkpoint.NextNodes,
		Intent:       snapshot.StringValue(ChannelIntent),
		MessageCount: len(snapshot.Messages(ChannelMessages)),
	}
	entry.HasPendingActions = len(order.DecodeActions(snapshot[ChannelPendingActions])) > 0
	if foodOrder, ok := order.Decode(snapshot[ChannelFoodOrder]); ok {
		entry.WorkflowStep = foodOrder.CurrentStep
		entry.CompletedSteps = foodOrder.CompletedSteps
		entry.Total = foodOrder.Total
		if foodOrder.SelectedVendor != nil {
			entry.SelectedVendor = foodOrder.SelectedVendor.Name
		}
	}
	return entry
}
