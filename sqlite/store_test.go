package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forkline-ai/forkline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func checkpoint(threadID, id, parentID string) *forkline.Checkpoint {
	return &forkline.Checkpoint{
		ThreadID: threadID,
		ID:       id,
		ParentID: parentID,
		State: forkline.State{
			"intent": "general",
			"messages": []forkline.Message{
				forkline.UserMessage("hello"),
			},
		},
		NextNodes: []string{"router"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, checkpoint("t1", "c1", "")))

	got, err := store.Get(ctx, "t1", "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID)
	require.Equal(t, "", got.ParentID)
	require.Equal(t, []string{"router"}, got.NextNodes)
	require.Equal(t, "general", got.State.StringValue("intent"))
	require.Len(t, got.State.Messages("messages"), 1)
	require.False(t, got.CreatedAt.IsZero())
}

func TestStoreUnknownIsNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "t1", "missing")
	require.NoError(t, err)
	require.Nil(t, got)

	latest, err := store.Latest(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestStoreLatestFollowsPuts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, checkpoint("t1", "c1", "")))
	require.NoError(t, store.Put(ctx, checkpoint("t1", "c2", "c1")))

	latest, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "c2", latest.ID)
	require.Equal(t, "c1", latest.ParentID)
}

func TestStoreIdempotentPut(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chk := checkpoint("t1", "c1", "")
	require.NoError(t, store.Put(ctx, chk))
	require.NoError(t, store.Put(ctx, chk))

	latest, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "c1", latest.ID)
}

func TestStoreNonTipParent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, checkpoint("t1", "c1", "")))
	require.NoError(t, store.Put(ctx, checkpoint("t1", "c2", "c1")))
	// A resume writes a sibling of c2 whose parent is the older c1.
	require.NoError(t, store.Put(ctx, checkpoint("t1", "c3", "c1")))

	latest, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "c3", latest.ID)
	require.Equal(t, "c1", latest.ParentID)

	// The superseded branch stays readable.
	got, err := store.Get(ctx, "t1", "c2")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ParentID)
}

func TestStoreDeleteThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, checkpoint("t1", "c1", "")))
	require.NoError(t, store.Put(ctx, checkpoint("t1", "c2", "c1")))
	require.NoError(t, store.Put(ctx, checkpoint("t2", "other", "")))

	require.NoError(t, store.DeleteThread(ctx, "t1"))

	latest, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.Nil(t, latest)
	got, err := store.Get(ctx, "t1", "c1")
	require.NoError(t, err)
	require.Nil(t, got)

	kept, err := store.Latest(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, "other", kept.ID)
}

func TestStoreHistoryWalk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, checkpoint("t1", "c1", "")))
	require.NoError(t, store.Put(ctx, checkpoint("t1", "c2", "c1")))
	require.NoError(t, store.Put(ctx, checkpoint("t1", "c3", "c2")))

	iter := forkline.History(ctx, store, "t1", 0)
	var ids []string
	for iter.Next() {
		ids = append(ids, iter.Checkpoint().ID)
	}
	require.NoError(t, iter.Err())
	require.Equal(t, []string{"c3", "c2", "c1"}, ids)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, checkpoint("t1", "c1", "")))
	require.NoError(t, store.Close())

	// The data survives reopening the same directory.
	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	latest, err := reopened.Latest(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "c1", latest.ID)
}
