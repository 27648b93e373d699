package forkline

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory checkpoint store for tests and local use.
// Checkpoints are copied on the way in and out, so callers can never observe
// a partially-written or shared snapshot.
type MemoryStore struct {
	mutex   sync.RWMutex
	threads map[string]*memoryThread
}

type memoryThread struct {
	checkpoints map[string]*Checkpoint
	latestID    string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: map[string]*memoryThread{}}
}

func (s *MemoryStore) Put(ctx context.Context, checkpoint *Checkpoint) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	thread, ok := s.threads[checkpoint.ThreadID]
	if !ok {
		thread = &memoryThread{checkpoints: map[string]*Checkpoint{}}
		s.threads[checkpoint.ThreadID] = thread
	}
	thread.checkpoints[checkpoint.ID] = checkpoint.Clone()
	thread.latestID = checkpoint.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	thread, ok := s.threads[threadID]
	if !ok {
		return nil, nil
	}
	checkpoint, ok := thread.checkpoints[checkpointID]
	if !ok {
		return nil, nil
	}
	return checkpoint.Clone(), nil
}

func (s *MemoryStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	thread, ok := s.threads[threadID]
	if !ok || thread.latestID == "" {
		return nil, nil
	}
	return thread.checkpoints[thread.latestID].Clone(), nil
}

func (s *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.threads, threadID)
	return nil
}
