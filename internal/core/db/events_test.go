package db

import (
	"context"
	"errors"
	"testing"
)

// TestEventKindString tests the String method on EventKind.
func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind     EventKind
		expected string
	}{
		{OnBookmarkCreatedEvent, "bookmark_created"},
		{OnBookmarkDeletedEvent, "bookmark_deleted"},
		{EventKind(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// TestBookmarkCreatedEvent tests that event is emitted on bookmark creation.
func TestBookmarkCreatedEvent(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	var receivedEvent BookmarkCreatedEvent
	db.RegisterEventListener(OnBookmarkCreatedEvent, func(event Event) error {
		receivedEvent = event.(BookmarkCreatedEvent)
		return nil
	})

	b, err := db.InsertBookmark(context.Background(), NewBookmark{OwnerID: "u1", URL: "https://example.com", Title: "Test Site"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if receivedEvent.Bookmark.ID != b.ID {
		t.Errorf("expected bookmark ID %q, got %q", b.ID, receivedEvent.Bookmark.ID)
	}
	if receivedEvent.Bookmark.OwnerID != "u1" {
		t.Errorf("expected owner 'u1', got %q", receivedEvent.Bookmark.OwnerID)
	}
	if receivedEvent.Bookmark.Title != "Test Site" {
		t.Errorf("expected Title 'Test Site', got %q", receivedEvent.Bookmark.Title)
	}
}

// TestBookmarkDeletedEvent tests that event is emitted on bookmark deletion.
func TestBookmarkDeletedEvent(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	b, _ := db.InsertBookmark(ctx, NewBookmark{OwnerID: "u1", URL: "https://example.com", Title: "To Delete"})

	var receivedEvent BookmarkDeletedEvent
	db.RegisterEventListener(OnBookmarkDeletedEvent, func(event Event) error {
		receivedEvent = event.(BookmarkDeletedEvent)
		return nil
	})

	if err := db.DeleteBookmark(ctx, "u1", b.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if receivedEvent.Bookmark.ID != b.ID {
		t.Errorf("expected bookmark ID %q, got %q", b.ID, receivedEvent.Bookmark.ID)
	}
	if receivedEvent.Bookmark.URL != "https://example.com" {
		t.Errorf("expected the pre-delete row in the event, got %+v", receivedEvent.Bookmark)
	}
}

// TestNoEventOnFailure tests that failed writes emit nothing.
func TestNoEventOnFailure(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	calls := 0
	listener := func(event Event) error {
		calls++
		return nil
	}
	db.RegisterEventListener(OnBookmarkCreatedEvent, listener)
	db.RegisterEventListener(OnBookmarkDeletedEvent, listener)

	db.InsertBookmark(ctx, NewBookmark{OwnerID: "u1", URL: "bad", Title: "Bad"})
	db.DeleteBookmark(ctx, "u1", "missing")

	if calls != 0 {
		t.Errorf("expected no events, got %d", calls)
	}
}

// TestListenerOrderAndErrors tests listeners run in registration order and
// a failing listener does not stop the others.
func TestListenerOrderAndErrors(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	var order []int
	db.RegisterEventListener(OnBookmarkCreatedEvent, func(event Event) error {
		order = append(order, 1)
		return errors.New("boom")
	})
	db.RegisterEventListener(OnBookmarkCreatedEvent, func(event Event) error {
		order = append(order, 2)
		return nil
	})

	if _, err := db.InsertBookmark(context.Background(), NewBookmark{OwnerID: "u1", URL: "https://example.com", Title: "T"}); err != nil {
		t.Fatalf("listener error must not fail the insert: %v", err)
	}

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected listeners called in order [1 2], got %v", order)
	}
}
