package feed

import (
	"github.com/seckatie/marksync/internal/core"
	"github.com/seckatie/marksync/internal/core/db"
	"github.com/seckatie/marksync/internal/core/live"
)

// Bridge publishes the store's created and deleted events on the hub.
func Bridge(database *db.DB, hub *Hub) {
	database.RegisterEventListener(db.OnBookmarkCreatedEvent, func(event db.Event) error {
		ev := event.(db.BookmarkCreatedEvent)
		hub.Publish(core.BookmarksTable, live.Event{Kind: live.EventInsert, Row: db.ToLive(ev.Bookmark)})
		return nil
	})
	database.RegisterEventListener(db.OnBookmarkDeletedEvent, func(event db.Event) error {
		ev := event.(db.BookmarkDeletedEvent)
		hub.Publish(core.BookmarksTable, live.Event{Kind: live.EventDelete, Row: db.ToLive(ev.Bookmark)})
		return nil
	})
}
