package feed

import (
	"context"
	"testing"
	"time"

	"github.com/seckatie/marksync/internal/core/db"
	"github.com/seckatie/marksync/internal/core/live"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.NewSQLiteDB(":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })
	return database
}

func TestBridge(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	hub := NewHub(8, nil, nil)
	Bridge(database, hub)

	sub, err := hub.Subscribe(ctx, live.Filter{Table: "bookmarks", OwnerID: "u1"})
	require.NoError(t, err)

	b, err := database.InsertBookmark(ctx, db.NewBookmark{OwnerID: "u1", URL: "https://x.example", Title: "X"})
	require.NoError(t, err)
	require.NoError(t, database.DeleteBookmark(ctx, "u1", b.ID))

	ins := recv(t, sub)
	assert.Equal(t, live.EventInsert, ins.Kind)
	assert.Equal(t, b.ID, ins.Row.ID)
	assert.Equal(t, "X", ins.Row.Title)

	del := recv(t, sub)
	assert.Equal(t, live.EventDelete, del.Kind)
	assert.Equal(t, b.ID, del.Row.ID)
}

// TestEngineInProcess runs two engines for the same user against the real
// store and hub, the way two tabs would.
func TestEngineInProcess(t *testing.T) {
	database := newTestDB(t)
	hub := NewHub(16, nil, nil)
	Bridge(database, hub)

	start := func() *live.Engine {
		e := live.New(database.ForOwner("u1"), hub, "u1")
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			e.Run(ctx)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
		<-e.Ready()
		return e
	}
	tabA, tabB := start(), start()
	ctx := context.Background()

	m, err := tabA.AddLocal(ctx, "Docs", "https://docs.example")
	require.NoError(t, err)
	require.NoError(t, m.Wait(ctx))

	single := func(e *live.Engine) func() bool {
		return func() bool {
			items, err := e.Items(ctx)
			return err == nil && len(items) == 1 && !live.IsProvisional(items[0].ID)
		}
	}
	require.Eventually(t, single(tabA), time.Second, 5*time.Millisecond)
	require.Eventually(t, single(tabB), time.Second, 5*time.Millisecond)

	items, _ := tabB.Items(ctx)
	del, err := tabB.DeleteLocal(ctx, items[0].ID)
	require.NoError(t, err)
	require.NoError(t, del.Wait(ctx))

	require.Eventually(t, func() bool {
		items, err := tabA.Items(ctx)
		return err == nil && len(items) == 0
	}, time.Second, 5*time.Millisecond)

	stored, err := database.ListBookmarks(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 2, hub.Subscribers())
}
