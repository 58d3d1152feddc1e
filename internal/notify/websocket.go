package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// ServeWebSocket upgrades the request and streams the session's events as
// JSON messages until the client goes away or the request context ends.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request, sessionID string, originPatterns []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := h.Subscribe(sessionID)
	defer cancel()

	// Clients never send; CloseRead handles control frames and cancels ctx
	// once the peer disconnects.
	ctx := conn.CloseRead(r.Context())

	if err := stream(ctx, conn, events); err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("websocket stream ended", "session_id", sessionID, "error", err)
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func stream(ctx context.Context, conn *websocket.Conn, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
