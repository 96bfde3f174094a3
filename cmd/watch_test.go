/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seckatie/marksync/internal/core/db"
	"github.com/seckatie/marksync/internal/core/feed"
	"github.com/seckatie/marksync/internal/core/live"
)

// syncBuffer is written by the engine goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newWatchBackend(t *testing.T) (*db.DB, *feed.Hub) {
	t.Helper()
	database, err := db.NewSQLiteDB(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })

	hub := feed.NewHub(16, nil, nil)
	t.Cleanup(hub.Close)
	feed.Bridge(database, hub)
	return database, hub
}

func TestRunWatch(t *testing.T) {
	database, hub := newWatchBackend(t)
	_, err := database.InsertBookmark(context.Background(), db.NewBookmark{OwnerID: "alice", Title: "Seed", URL: "https://seed.example"})
	require.NoError(t, err)

	in := strings.NewReader(strings.Join([]string{
		"help",
		"add https://go.dev The Go Language",
		"add not-a-url Broken",
		"add https://only-url.example",
		"rm 9",
		"bogus",
		"ls",
		"quit",
		"add https://never.example Never",
	}, "\n"))
	out := &syncBuffer{}

	err = runWatch(context.Background(), in, out, database.ForOwner("alice"), hub, "alice")
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "1. Seed  https://seed.example")
	assert.Contains(t, got, "1. The Go Language  https://go.dev")
	assert.Contains(t, got, "commands:")
	assert.Contains(t, got, "error: ")
	assert.Contains(t, got, "usage: add")
	assert.Contains(t, got, "no bookmark at position 9")
	assert.Contains(t, got, `unknown command "bogus"`)
	assert.NotContains(t, got, "Never", "input after quit is ignored")
}

func TestRunWatchDeletes(t *testing.T) {
	database, hub := newWatchBackend(t)
	ctx := context.Background()
	b, err := database.InsertBookmark(ctx, db.NewBookmark{OwnerID: "alice", Title: "Gone", URL: "https://gone.example"})
	require.NoError(t, err)

	in := strings.NewReader("rm 1\n")
	err = runWatch(ctx, in, io.Discard, database.ForOwner("alice"), hub, "alice")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := database.GetBookmark(ctx, b.ID)
		return errors.Is(err, db.ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

type failingStore struct{}

func (failingStore) List(context.Context, string) ([]live.Bookmark, error) {
	return nil, errors.New("store offline")
}
func (failingStore) Insert(context.Context, live.NewBookmark) error { return errors.New("store offline") }
func (failingStore) Delete(context.Context, string) error          { return errors.New("store offline") }

func TestRunWatchLoadFailure(t *testing.T) {
	_, hub := newWatchBackend(t)

	out := &syncBuffer{}
	err := runWatch(context.Background(), strings.NewReader("ls\n"), out, failingStore{}, hub, "alice")
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "store offline")
	assert.Contains(t, got, "--- 0 bookmark(s)")
}

func TestRunWatchStopsOnCancel(t *testing.T) {
	database, hub := newWatchBackend(t)
	ctx, cancel := context.WithCancel(context.Background())

	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, pr, io.Discard, database.ForOwner("alice"), hub, "alice") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWatch did not stop on cancel")
	}
}

func TestRunWatchSubscribeFailure(t *testing.T) {
	database, hub := newWatchBackend(t)
	hub.Close()

	err := runWatch(context.Background(), strings.NewReader(""), io.Discard, database.ForOwner("alice"), hub, "alice")
	assert.ErrorIs(t, err, feed.ErrClosed)
}
