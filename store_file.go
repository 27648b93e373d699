package forkline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists checkpoints to disk, one JSON file per checkpoint,
// grouped by thread. A "latest" pointer file tracks each thread's tip.
// Writes go through a temp file and rename so a reader never sees a torn
// checkpoint.
type FileStore struct {
	dataDir string
}

// NewFileStore creates a file-backed checkpoint store rooted at dataDir.
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".forkline", "threads")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) threadDir(threadID string) string {
	// Thread IDs are generated, but sanitize anyway in case a caller-chosen
	// ID contains a separator.
	return filepath.Join(s.dataDir, strings.ReplaceAll(threadID, string(filepath.Separator), "_"))
}

func (s *FileStore) checkpointPath(threadID, checkpointID string) string {
	return filepath.Join(s.threadDir(threadID), fmt.Sprintf("checkpoint-%s.json", checkpointID))
}

func (s *FileStore) latestPath(threadID string) string {
	return filepath.Join(s.threadDir(threadID), "latest")
}

func (s *FileStore) Put(ctx context.Context, checkpoint *Checkpoint) error {
	dir := s.threadDir(checkpoint.ThreadID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create thread directory: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	path := s.checkpointPath(checkpoint.ThreadID, checkpoint.ID)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := writeFileAtomic(s.latestPath(checkpoint.ThreadID), []byte(checkpoint.ID)); err != nil {
		return fmt.Errorf("failed to update latest pointer: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.checkpointPath(threadID, checkpointID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (s *FileStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.latestPath(threadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest pointer: %w", err)
	}
	return s.Get(ctx, threadID, strings.TrimSpace(string(data)))
}

func (s *FileStore) DeleteThread(ctx context.Context, threadID string) error {
	if err := os.RemoveAll(s.threadDir(threadID)); err != nil {
		return fmt.Errorf("failed to delete thread directory: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
