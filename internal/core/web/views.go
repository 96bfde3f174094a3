package web

import (
	"time"

	"github.com/seckatie/marksync/internal/core/live"
)

type bookmarkView struct {
	ID        string
	URL       string
	Title     string
	CreatedAt string
}

type indexView struct {
	ActivePage string
	SignedIn   bool
	Email      string
	Bookmarks  []bookmarkView
	Error      string
}

func toViews(items []live.Bookmark) []bookmarkView {
	views := make([]bookmarkView, len(items))
	for i, b := range items {
		views[i] = bookmarkView{
			ID:        b.ID,
			URL:       b.URL,
			Title:     b.Title,
			CreatedAt: b.CreatedAt.Local().Format(time.DateTime),
		}
	}
	return views
}
