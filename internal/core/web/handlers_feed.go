package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seckatie/marksync/internal/core"
	"github.com/seckatie/marksync/internal/core/live"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Clients only send control frames.
	maxMessageSize = 4 << 10
)

// handleFeed streams the authenticated owner's change feed as JSON
// live.Event frames until either side closes the socket.
func (ws *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	log := ws.logger.With(zap.String("ownerID", u.ID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := ws.hub.Subscribe(ctx, live.Filter{Table: core.BookmarksTable, OwnerID: u.ID})
	if err != nil {
		log.Error("feed subscribe failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	defer sub.Close()

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Warn("feed upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ws.metrics.feedSockets.Inc()
	defer ws.metrics.feedSockets.Dec()
	log.Info("feed socket opened")

	go ws.readPump(conn, cancel)
	ws.writePump(ctx, conn, sub, log)
	log.Info("feed socket closed")
}

// readPump keeps the read deadline fresh on pongs and cancels the feed when
// the peer goes away.
func (ws *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	pongWait := ws.ping * 2
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Debug("feed read error", zap.Error(err))
			}
			return
		}
	}
}

func (ws *Server) writePump(ctx context.Context, conn *websocket.Conn, sub live.Subscription, log *zap.Logger) {
	ticker := time.NewTicker(ws.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case ev, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped this subscriber or shut down.
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Warn("feed write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("feed ping failed", zap.Error(err))
				return
			}
		}
	}
}
