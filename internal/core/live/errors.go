package live

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownBookmark is returned by DeleteLocal for an id that is not in the list.
	ErrUnknownBookmark = errors.New("unknown bookmark")
	// ErrNoUser is returned when an engine or load is attempted without a signed-in user.
	ErrNoUser = errors.New("no current user")
	// ErrStopped is returned by operations on an engine that is not running.
	ErrStopped = errors.New("engine stopped")
	// ErrPending is returned by Mutation.Err before the mutation resolves.
	ErrPending = errors.New("mutation pending")
)

// ValidationError reports bad input. No state was changed.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid input: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// LoadError reports a failed initial snapshot. The list renders empty.
type LoadError struct {
	OwnerID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load bookmarks for %q: %v", e.OwnerID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PersistenceError reports a store call that failed after the mutation was
// already applied locally. Failed inserts have been rolled back; failed
// deletes have not.
type PersistenceError struct {
	Op         string
	BookmarkID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.BookmarkID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
