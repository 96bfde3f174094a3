package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/seckatie/marksync/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a bookmark does not exist for the requested owner.
var ErrNotFound = errors.New("bookmark not found")

// now is the store clock, replaced in tests.
var now = time.Now

// ------------------------------
// Bookmark methods
// ------------------------------

func (db *DB) GetBookmark(ctx context.Context, id string) (Bookmark, error) {
	row := db.db.QueryRowContext(ctx,
		"SELECT id, owner_id, url, title, created_at FROM bookmarks WHERE id = ?", id)
	b, err := scanBookmark(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bookmark{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return b, nil
}

// InsertBookmark adds a new bookmark and returns it with its durable id.
//
// It validates the title and URL before inserting and returns core.ErrInvalidURL
// or core.ErrEmptyTitle if validation fails.
// Emits a BookmarkCreatedEvent after successful insert.
func (db *DB) InsertBookmark(ctx context.Context, nb NewBookmark) (Bookmark, error) {
	if strings.TrimSpace(nb.OwnerID) == "" {
		return Bookmark{}, errors.New("owner id is required")
	}
	if err := core.ValidateBookmark(nb.Title, nb.URL); err != nil {
		return Bookmark{}, err
	}

	b := Bookmark{
		ID:        uuid.NewString(),
		OwnerID:   nb.OwnerID,
		URL:       nb.URL,
		Title:     strings.TrimSpace(nb.Title),
		CreatedAt: now().UTC(),
	}
	_, err := db.db.ExecContext(ctx,
		"INSERT INTO bookmarks (id, owner_id, url, title, created_at) VALUES (?, ?, ?, ?, ?)",
		b.ID,
		b.OwnerID,
		b.URL,
		b.Title,
		formatTime(b.CreatedAt),
	)
	if err != nil {
		return Bookmark{}, fmt.Errorf("failed to add bookmark: %w", err)
	}

	db.logger.Debug("bookmark inserted",
		zap.String("bookmarkID", b.ID),
		zap.String("ownerID", b.OwnerID),
	)
	db.emit(BookmarkCreatedEvent{Bookmark: b})

	return b, nil
}

// ListBookmarks returns the owner's bookmarks, newest first. A limit of 0
// returns all of them.
func (db *DB) ListBookmarks(ctx context.Context, ownerID string, limit int) ([]Bookmark, error) {
	query := `
		SELECT id, owner_id, url, title, created_at
		FROM bookmarks
		WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.db.QueryContext(ctx, query+" LIMIT ?", ownerID, limit)
	} else {
		rows, err = db.db.QueryContext(ctx, query, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			db.logger.Warn("failed to close rows", zap.Error(err))
		}
	}()

	out := []Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return out, nil
}

// DeleteBookmark removes one of the owner's bookmarks.
// Emits a BookmarkDeletedEvent after successful deletion.
func (db *DB) DeleteBookmark(ctx context.Context, ownerID, id string) error {
	// Fetch bookmark before deletion to include in event
	b, err := db.GetBookmark(ctx, id)
	if err != nil {
		return err
	}
	if b.OwnerID != ownerID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	res, err := db.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	db.logger.Debug("bookmark deleted",
		zap.String("bookmarkID", id),
		zap.String("ownerID", ownerID),
	)
	db.emit(BookmarkDeletedEvent{Bookmark: b})

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (Bookmark, error) {
	var b Bookmark
	var createdAt string
	if err := row.Scan(&b.ID, &b.OwnerID, &b.URL, &b.Title, &createdAt); err != nil {
		return Bookmark{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return Bookmark{}, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	b.CreatedAt = t
	return b, nil
}
