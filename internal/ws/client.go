package ws

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout    = 10 * time.Second
	pingInterval    = 30 * time.Second
	pingTimeout     = 10 * time.Second
	maxConnLifetime = 4 * time.Hour
)

// ServeSubscriber pumps feed events to one WebSocket connection until the
// subscription ends, the connection drops, or the lifetime cap is hit.
func ServeSubscriber(ctx context.Context, conn *websocket.Conn, feed *Feed, log *logrus.Logger) {
	ch := feed.Subscribe()
	if ch == nil {
		conn.Close(websocket.StatusTryAgainLater, "subscriber limit reached") //nolint:errcheck // best-effort close
		return
	}

	defer feed.Unsubscribe(ch)
	defer conn.CloseNow() //nolint:errcheck // best-effort close on teardown

	lifetime := time.NewTimer(maxConnLifetime)
	defer lifetime.Stop()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-lifetime.C:
			conn.Close(websocket.StatusNormalClosure, "max connection lifetime exceeded") //nolint:errcheck // best-effort
			return

		case <-pingTicker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pingCtx)
			cancel()

			if err != nil {
				log.WithError(err).Debug("audit feed ping failed")

				return
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()

			if err != nil {
				log.WithError(err).Debug("audit feed write failed")

				return
			}
		}
	}
}
