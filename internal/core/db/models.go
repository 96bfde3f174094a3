package db

import "time"

type Bookmark struct {
	ID      string
	OwnerID string
	URL     string
	Title   string
	// CreatedAt is stored in the DB as fixed-width UTC text so that
	// lexical order matches time order.
	CreatedAt time.Time
}

// NewBookmark is the input to InsertBookmark. The store assigns the id and
// creation time.
type NewBookmark struct {
	OwnerID string
	URL     string
	Title   string
}

const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
