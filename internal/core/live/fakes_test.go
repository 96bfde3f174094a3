package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	rows      []Bookmark
	listErr   error
	insertErr error
	deleteErr error
	// gate, when set, holds Insert until it is closed.
	gate chan struct{}

	inserted []NewBookmark
	deleted  []string
}

func (s *fakeStore) List(ctx context.Context, ownerID string) ([]Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]Bookmark(nil), s.rows...), nil
}

func (s *fakeStore) Insert(ctx context.Context, nb NewBookmark) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, nb)
	return s.insertErr
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

func (s *fakeStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func (s *fakeStore) Inserted() []NewBookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]NewBookmark(nil), s.inserted...)
}

type fakeFeed struct {
	events    chan Event
	subErr    error
	filter    Filter
	subscribe atomic.Int32
	closed    atomic.Int32
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{events: make(chan Event, 16)}
}

func (f *fakeFeed) Subscribe(ctx context.Context, filter Filter) (Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.filter = filter
	f.subscribe.Add(1)
	return fakeSub{f}, nil
}

type fakeSub struct{ f *fakeFeed }

func (s fakeSub) Events() <-chan Event { return s.f.events }

func (s fakeSub) Close() error {
	s.f.closed.Add(1)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// startEngine runs an engine until the test ends.
func startEngine(t *testing.T, store Store, feed Feed, opts ...Option) *Engine {
	t.Helper()
	e := New(store, feed, "u1", opts...)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	select {
	case <-e.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("engine exited early: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("engine did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("engine returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return e
}

func mustItems(t *testing.T, e *Engine) []Bookmark {
	t.Helper()
	items, err := e.Items(context.Background())
	require.NoError(t, err)
	return items
}
