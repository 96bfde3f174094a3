package live

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/seckatie/marksync/internal/core"
	"go.uber.org/zap"
)

// Clock is injectable so tests can pin creation times.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for provisional creation times.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithOnChange registers an observer that receives the full list after every
// state transition. It runs on the engine goroutine and must not call back
// into the engine.
func WithOnChange(fn func([]Bookmark)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithErrorHandler receives load and persistence errors as they happen, in
// addition to the mutation handles.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) { e.onError = fn }
}

// WithTable sets the change-feed table name.
func WithTable(table string) Option {
	return func(e *Engine) { e.table = table }
}

// WithStoreTimeout bounds each store call. Non-positive values keep the
// default.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// Engine owns one user's rendered bookmark list. All state transitions run
// on the goroutine executing Run; local operations, store completions and
// feed events are queued to it and applied one at a time.
type Engine struct {
	store   Store
	feed    Feed
	ownerID string

	clock        Clock
	logger       *zap.Logger
	onChange     func([]Bookmark)
	onError      func(error)
	table        string
	storeTimeout time.Duration

	ops     chan func()
	ready   chan struct{}
	stopped chan struct{}
	started atomic.Bool

	// state is only touched on the Run goroutine.
	state *State
}

// New creates an engine for ownerID. Call Run to load the snapshot and
// start applying mutations.
func New(store Store, feed Feed, ownerID string, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		feed:         feed,
		ownerID:      ownerID,
		clock:        realClock{},
		logger:       zap.NewNop(),
		table:        core.BookmarksTable,
		storeTimeout: core.DefaultStoreTimeout,
		ops:          make(chan func()),
		ready:        make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("ownerID", ownerID))
	return e
}

// Run subscribes to the change feed, loads the initial snapshot and applies
// queued operations until ctx is cancelled. A failed load is reported and
// leaves the list empty; the engine keeps running. The subscription is
// closed on every return path.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("engine already started")
	}
	defer close(e.stopped)

	if e.ownerID == "" {
		return ErrNoUser
	}

	// Subscribe before loading so nothing committed in between is missed;
	// rows present in both are absorbed as duplicates.
	sub, err := e.feed.Subscribe(ctx, Filter{Table: e.table, OwnerID: e.ownerID})
	if err != nil {
		return fmt.Errorf("subscribe to %s feed: %w", e.table, err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			e.logger.Warn("failed to close feed subscription", zap.Error(err))
		}
	}()

	seed, err := Load(ctx, e.store, e.ownerID)
	if err != nil {
		e.logger.Error("initial load failed", zap.Error(err))
		e.report(err)
	}
	e.state = NewState(seed)
	e.logger.Info("engine started", zap.Int("bookmarks", len(e.state.items)))
	e.changed()
	close(e.ready)

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return nil
		case op := <-e.ops:
			op()
		case ev, ok := <-events:
			if !ok {
				e.logger.Warn("feed subscription ended")
				events = nil
				continue
			}
			e.apply(ev)
		}
	}
}

// Ready is closed once the snapshot has been applied.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// AddLocal validates and optimistically prepends a new bookmark under a
// provisional id, then inserts it in the store in the background. The row
// is visible when AddLocal returns. The returned handle resolves with a
// *PersistenceError if the insert fails, by which time the row has been
// rolled back.
func (e *Engine) AddLocal(ctx context.Context, title, url string) (*Mutation, error) {
	if err := core.ValidateBookmark(title, url); err != nil {
		return nil, &ValidationError{Op: "add", Err: err}
	}
	title = strings.TrimSpace(title)

	var (
		row Bookmark
		m   *Mutation
	)
	err := e.do(ctx, func() {
		row = Bookmark{
			ID:        newProvisionalID(),
			Title:     title,
			URL:       url,
			CreatedAt: e.clock.Now(),
			OwnerID:   e.ownerID,
		}
		m = newMutation(MutationAdd, row.ID)
		e.state.AddProvisional(row, m)
		e.changed()
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("optimistic add", zap.String("provisionalID", row.ID), zap.String("url", url))
	go e.insert(ctx, row, m)
	return m, nil
}

func (e *Engine) insert(ctx context.Context, row Bookmark, m *Mutation) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	err := e.store.Insert(sctx, NewBookmark{Title: row.Title, URL: row.URL, OwnerID: row.OwnerID})
	if err == nil {
		e.post(func() {
			// A row deleted while in flight waits a bounded time for its echo.
			if e.state.ConfirmOrphan(row.ID, e.clock.Now().Add(e.storeTimeout)) {
				e.logger.Debug("orphan insert confirmed", zap.String("provisionalID", row.ID))
			}
		})
		m.resolve(nil)
		return
	}

	perr := &PersistenceError{Op: "insert", BookmarkID: row.ID, Err: err}
	e.post(func() {
		if e.state.Rollback(row.ID) {
			e.logger.Warn("insert failed, rolled back",
				zap.String("provisionalID", row.ID), zap.Error(err))
			e.changed()
			return
		}
		e.state.DropOrphan(row.ID)
	})
	m.resolve(perr)
	e.report(perr)
}

// DeleteLocal removes a bookmark from the list immediately. A durable row is
// then deleted from the store in the background; if that fails the handle
// resolves with a *PersistenceError and the row stays removed. A
// provisional row has nothing in the store yet, so its handle resolves at
// once.
func (e *Engine) DeleteLocal(ctx context.Context, id string) (*Mutation, error) {
	var provisional, found bool
	err := e.do(ctx, func() {
		_, provisional, found = e.state.RemoveLocal(id)
		if found {
			e.changed()
		}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &ValidationError{Op: "delete", Err: fmt.Errorf("%w: %s", ErrUnknownBookmark, id)}
	}

	m := newMutation(MutationDelete, id)
	if provisional {
		e.logger.Debug("provisional row deleted before confirmation", zap.String("provisionalID", id))
		m.resolve(nil)
		return m, nil
	}

	go e.remove(ctx, id, m)
	return m, nil
}

func (e *Engine) remove(ctx context.Context, id string, m *Mutation) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	if err := e.store.Delete(sctx, id); err != nil {
		perr := &PersistenceError{Op: "delete", BookmarkID: id, Err: err}
		e.logger.Warn("delete failed", zap.String("bookmarkID", id), zap.Error(err))
		m.resolve(perr)
		e.report(perr)
		return
	}
	m.resolve(nil)
}

// OnRemoteInsert applies a feed insert delivered outside the engine's own
// subscription.
func (e *Engine) OnRemoteInsert(ctx context.Context, row Bookmark) error {
	return e.do(ctx, func() { e.apply(Event{Kind: EventInsert, Row: row}) })
}

// OnRemoteDelete applies a feed delete delivered outside the engine's own
// subscription. Deleting an absent id is a no-op.
func (e *Engine) OnRemoteDelete(ctx context.Context, id string) error {
	return e.do(ctx, func() { e.apply(Event{Kind: EventDelete, Row: Bookmark{ID: id}}) })
}

// Items returns the rendered list.
func (e *Engine) Items(ctx context.Context) ([]Bookmark, error) {
	var items []Bookmark
	err := e.do(ctx, func() { items = e.state.Items() })
	return items, err
}

// PendingIDs returns the provisional ids still awaiting confirmation.
func (e *Engine) PendingIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := e.do(ctx, func() { ids = e.state.PendingIDs() })
	return ids, err
}

// apply runs on the engine goroutine.
func (e *Engine) apply(ev Event) {
	switch ev.Kind {
	case EventInsert:
		if ev.Row.OwnerID != "" && ev.Row.OwnerID != e.ownerID {
			e.logger.Warn("ignoring feed row for another owner", zap.String("bookmarkID", ev.Row.ID))
			return
		}
		if n := e.state.ExpireOrphans(e.clock.Now()); n > 0 {
			e.logger.Debug("expired orphans without a feed echo", zap.Int("count", n))
		}
		outcome, replaced := e.state.ApplyInsert(ev.Row)
		switch outcome {
		case Inserted:
			e.changed()
		case Promoted:
			e.logger.Debug("promoted provisional row",
				zap.String("provisionalID", replaced), zap.String("bookmarkID", ev.Row.ID))
			e.changed()
		case Orphaned:
			// The user deleted the row before the store confirmed it.
			e.logger.Debug("deleting confirmed orphan",
				zap.String("provisionalID", replaced), zap.String("bookmarkID", ev.Row.ID))
			go e.removeOrphan(ev.Row.ID)
		}
	case EventDelete:
		if e.state.ApplyDelete(ev.Row.ID) {
			e.changed()
		}
	default:
		e.logger.Warn("ignoring unknown feed event", zap.Stringer("kind", ev.Kind))
	}
}

func (e *Engine) removeOrphan(id string) {
	ctx, cancel := e.storeContext(context.Background())
	defer cancel()
	if err := e.store.Delete(ctx, id); err != nil {
		perr := &PersistenceError{Op: "delete", BookmarkID: id, Err: err}
		e.logger.Warn("orphan delete failed", zap.String("bookmarkID", id), zap.Error(err))
		e.report(perr)
	}
}

// do runs fn on the engine goroutine and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func()) error {
	select {
	case <-e.ready:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}
	select {
	case e.ops <- op:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// post queues a store completion. It returns false if the engine has stopped.
func (e *Engine) post(fn func()) bool {
	return e.do(context.Background(), fn) == nil
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.storeTimeout)
}

func (e *Engine) changed() {
	if e.onChange != nil {
		e.onChange(e.state.Items())
	}
}

func (e *Engine) report(err error) {
	if e.onError != nil {
		e.onError(err)
	}
}
