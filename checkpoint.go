package forkline

import (
	"context"
	"time"

	"go.jetify.com/typeid"
)

// Checkpoint is an immutable, persisted snapshot of a thread's state after
// exactly one node's update (or the thread's genesis when ParentID is
// empty). ParentID links checkpoints into a chain per thread; once a thread
// has been branched from or resumed mid-chain the chain is logically a tree.
type Checkpoint struct {
	ThreadID  string    `json:"thread_id"`
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	State     State     `json:"state"`
	NextNodes []string  `json:"next_nodes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy whose state map is independent of the original.
func (c *Checkpoint) Clone() *Checkpoint {
	clone := *c
	clone.State = c.State.Clone()
	clone.NextNodes = append([]string(nil), c.NextNodes...)
	return &clone
}

// NewThreadID returns a new prefixed thread ID.
func NewThreadID() string {
	id, err := typeid.WithPrefix("thread")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// NewCheckpointID returns a new prefixed checkpoint ID.
func NewCheckpointID() string {
	id, err := typeid.WithPrefix("chk")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Store is durable, keyed persistence of checkpoints. Implementations must
// make Put atomic and idempotent under retry with the same checkpoint ID,
// and must support storing a checkpoint whose parent is not the thread's
// current latest (resume and branch both do this). Get must never return a
// torn snapshot.
type Store interface {
	// Put persists a checkpoint and advances the thread's latest pointer.
	Put(ctx context.Context, checkpoint *Checkpoint) error

	// Get returns a checkpoint by ID, or nil when not found.
	Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error)

	// Latest returns the thread's most recent checkpoint, or nil for an
	// unknown thread.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// DeleteThread removes a thread's entire checkpoint chain.
	DeleteThread(ctx context.Context, threadID string) error
}

// HistoryIterator walks a thread's checkpoint chain from the latest
// checkpoint toward genesis, fetching one checkpoint per step so long
// chains are never materialized in memory.
type HistoryIterator struct {
	ctx      context.Context
	store    Store
	threadID string
	nextID   string
	remain   int
	started  bool
	current  *Checkpoint
	err      error
}

// History returns an iterator over a thread's checkpoints, most recent
// first, visiting at most limit checkpoints (limit <= 0 means no limit).
func History(ctx context.Context, store Store, threadID string, limit int) *HistoryIterator {
	if limit <= 0 {
		limit = -1
	}
	return &HistoryIterator{
		ctx:      ctx,
		store:    store,
		threadID: threadID,
		remain:   limit,
	}
}

// Next advances the iterator. It returns false at the end of the chain, at
// the limit, or on error.
func (it *HistoryIterator) Next() bool {
	if it.err != nil || it.remain == 0 {
		return false
	}
	if !it.started {
		it.started = true
		it.current, it.err = it.store.Latest(it.ctx, it.threadID)
	} else {
		if it.nextID == "" {
			it.current = nil
		} else {
			it.current, it.err = it.store.Get(it.ctx, it.threadID, it.nextID)
		}
	}
	if it.err != nil || it.current == nil {
		return false
	}
	it.nextID = it.current.ParentID
	if it.remain > 0 {
		it.remain--
	}
	return true
}

// Checkpoint returns the checkpoint at the iterator's current position.
func (it *HistoryIterator) Checkpoint() *Checkpoint {
	return it.current
}

// Err returns the first error encountered while walking the chain.
func (it *HistoryIterator) Err() error {
	return it.err
}
