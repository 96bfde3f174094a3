// Package feed fans store changes out to change-feed subscribers.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/seckatie/marksync/internal/core"
	"github.com/seckatie/marksync/internal/core/live"
	"go.uber.org/zap"
)

// ErrClosed is returned when subscribing to a closed hub.
var ErrClosed = errors.New("feed hub closed")

// Hub delivers published events to every subscriber whose filter matches.
// A subscriber that falls a full buffer behind is dropped and its channel
// closed; the engine on the other end treats that as the end of the feed.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	closed      bool

	buffer  int
	logger  *zap.Logger
	metrics *metrics
}

// NewHub creates a hub whose subscribers buffer up to buffer events. A nil
// registerer skips metric registration.
func NewHub(buffer int, logger *zap.Logger, reg prometheus.Registerer) *Hub {
	if buffer <= 0 {
		buffer = core.DefaultFeedBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		buffer:      buffer,
		logger:      logger,
		metrics:     newMetrics(reg),
	}
}

// Subscription is one subscriber's view of the hub.
type Subscription struct {
	hub    *Hub
	filter live.Filter
	ch     chan live.Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Events() <-chan live.Event { return s.ch }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.hub.remove(s)
	return nil
}

// Subscribe registers a subscriber. The subscription also ends when ctx is
// cancelled.
func (h *Hub) Subscribe(ctx context.Context, filter live.Filter) (live.Subscription, error) {
	sub := &Subscription{
		hub:    h,
		filter: filter,
		ch:     make(chan live.Event, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.subscribers[sub] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()

	h.metrics.subscribers.Set(float64(n))
	h.logger.Debug("feed subscriber added",
		zap.String("table", filter.Table),
		zap.String("ownerID", filter.OwnerID),
	)

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

// Publish pushes an event for a row of table to all matching subscribers.
func (h *Hub) Publish(table string, ev live.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.published.WithLabelValues(ev.Kind.String()).Inc()
	for sub := range h.subscribers {
		if !sub.filter.Matches(table, ev.Row) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("feed subscriber buffer full, dropping",
				zap.String("ownerID", sub.filter.OwnerID))
			h.metrics.dropped.Inc()
			h.removeLocked(sub)
		}
	}
	h.metrics.subscribers.Set(float64(len(h.subscribers)))
}

// Subscribers returns the current number of subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close ends every subscription and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subscribers {
		h.removeLocked(sub)
	}
	h.metrics.subscribers.Set(0)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
	h.metrics.subscribers.Set(float64(len(h.subscribers)))
}

func (h *Hub) removeLocked(sub *Subscription) {
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	sub.once.Do(func() {
		close(sub.ch)
		close(sub.done)
	})
}
