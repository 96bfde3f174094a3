package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind is the kind of change a feed event describes.
type EventKind int

const (
	EventInsert EventKind = iota + 1
	EventDelete
)

func (k EventKind) String() string {
	switch k {
	case EventInsert:
		return "insert"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalText() ([]byte, error) {
	if k != EventInsert && k != EventDelete {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "insert":
		*k = EventInsert
	case "delete":
		*k = EventDelete
	default:
		return fmt.Errorf("unknown event kind %q", b)
	}
	return nil
}

// Event is one change-feed notification. Delete events only need Row.ID.
type Event struct {
	Kind EventKind `json:"kind"`
	Row  Bookmark  `json:"row"`
}

// Filter selects the rows a subscription receives.
type Filter struct {
	Table   string `json:"table"`
	OwnerID string `json:"owner_id"`
}

// Matches reports whether an event for a row of table belongs to the filter.
func (f Filter) Matches(table string, row Bookmark) bool {
	if f.Table != "" && f.Table != table {
		return false
	}
	return f.OwnerID == "" || f.OwnerID == row.OwnerID
}

// Feed opens change-feed subscriptions.
type Feed interface {
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)
}

// Subscription delivers events in arrival order until Close is called or the
// transport ends, at which point Events is closed.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Store is the durable store as seen by the engine.
type Store interface {
	List(ctx context.Context, ownerID string) ([]Bookmark, error)
	Insert(ctx context.Context, nb NewBookmark) error
	Delete(ctx context.Context, id string) error
}

// DecodeEvent parses a JSON feed frame.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode feed event: %w", err)
	}
	if ev.Row.ID == "" {
		return Event{}, fmt.Errorf("decode feed event: missing row id")
	}
	return ev, nil
}
