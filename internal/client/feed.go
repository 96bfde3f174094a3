package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seckatie/marksync/internal/core"
	"github.com/seckatie/marksync/internal/core/live"
)

const closeWait = time.Second

// Subscribe dials the server's change feed. The server scopes the stream to
// the token's user; filter is applied again locally.
func (c *Client) Subscribe(ctx context.Context, filter live.Filter) (live.Subscription, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/feed"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("dial feed: %w", decodeAPIError(resp))
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	sub := &subscription{
		conn:   conn,
		filter: filter,
		ch:     make(chan live.Event, core.DefaultFeedBuffer),
		done:   make(chan struct{}),
		logger: c.logger,
	}
	go sub.read()
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

type subscription struct {
	conn   *websocket.Conn
	filter live.Filter
	ch     chan live.Event
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (s *subscription) Events() <-chan live.Event { return s.ch }

// Close ends the subscription. Events is closed once the reader stops.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait))
		err = s.conn.Close()
	})
	return err
}

// read is the only writer of ch. Pings are answered by the default handler
// while ReadMessage runs.
func (s *subscription) read() {
	defer close(s.ch)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("feed connection ended", zap.Error(err))
				s.Close()
			}
			return
		}
		ev, err := live.DecodeEvent(data)
		if err != nil {
			s.logger.Warn("dropping malformed feed frame", zap.Error(err))
			continue
		}
		if !s.filter.Matches(core.BookmarksTable, ev.Row) {
			continue
		}
		select {
		case s.ch <- ev:
		case <-s.done:
			return
		}
	}
}
