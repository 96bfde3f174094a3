package db

import (
	"context"

	"github.com/seckatie/marksync/internal/core/live"
)

// OwnerStore is the store scoped to one signed-in user, in the shape the
// reconciliation engine and loader expect.
type OwnerStore struct {
	db      *DB
	ownerID string
}

// ForOwner scopes the store to ownerID.
func (db *DB) ForOwner(ownerID string) *OwnerStore {
	return &OwnerStore{db: db, ownerID: ownerID}
}

var _ live.Store = (*OwnerStore)(nil)

func (s *OwnerStore) List(ctx context.Context, ownerID string) ([]live.Bookmark, error) {
	if ownerID == "" {
		ownerID = s.ownerID
	}
	if ownerID != s.ownerID {
		return nil, ErrNotFound
	}
	rows, err := s.db.ListBookmarks(ctx, ownerID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]live.Bookmark, len(rows))
	for i, b := range rows {
		out[i] = ToLive(b)
	}
	return out, nil
}

func (s *OwnerStore) Insert(ctx context.Context, nb live.NewBookmark) error {
	_, err := s.db.InsertBookmark(ctx, NewBookmark{OwnerID: s.ownerID, URL: nb.URL, Title: nb.Title})
	return err
}

func (s *OwnerStore) Delete(ctx context.Context, id string) error {
	return s.db.DeleteBookmark(ctx, s.ownerID, id)
}

// ToLive converts a stored row to the form the engine and the wire use.
func ToLive(b Bookmark) live.Bookmark {
	return live.Bookmark{
		ID:        b.ID,
		Title:     b.Title,
		URL:       b.URL,
		CreatedAt: b.CreatedAt,
		OwnerID:   b.OwnerID,
	}
}
