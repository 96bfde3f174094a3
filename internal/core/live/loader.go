package live

import (
	"context"
	"sort"
)

// Load fetches the seed list for ownerID, newest first. On failure it
// returns a *LoadError; callers render an empty list and surface the error.
func Load(ctx context.Context, store Store, ownerID string) ([]Bookmark, error) {
	if ownerID == "" {
		return nil, &LoadError{Err: ErrNoUser}
	}
	items, err := store.List(ctx, ownerID)
	if err != nil {
		return nil, &LoadError{OwnerID: ownerID, Err: err}
	}
	out := make([]Bookmark, len(items))
	copy(out, items)
	sortNewestFirst(out)
	return out, nil
}

// sortNewestFirst orders by CreatedAt descending, keeping the existing order
// of equal timestamps.
func sortNewestFirst(items []Bookmark) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
