// Package live keeps a locally rendered bookmark list consistent while local
// optimistic mutations and a server-pushed change feed both modify it.
package live

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Bookmark is one saved link as rendered to the user.
type Bookmark struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	OwnerID   string    `json:"owner_id"`
}

// NewBookmark is what the engine sends to the store on a local add. The
// store assigns the durable id.
type NewBookmark struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	OwnerID string `json:"owner_id"`
}

// provisionalPrefix keeps provisional ids disjoint from store-assigned UUIDs.
const provisionalPrefix = "tmp_"

func newProvisionalID() string {
	return provisionalPrefix + ulid.Make().String()
}

// IsProvisional reports whether id was synthesized locally and has not been
// replaced by a durable id.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}

// sameContent is the promotion match: a feed row confirms a provisional row
// when title, url and owner are equal.
func sameContent(a, b Bookmark) bool {
	return a.Title == b.Title && a.URL == b.URL && a.OwnerID == b.OwnerID
}
