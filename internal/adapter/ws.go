package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/localmodels/modellake/internal/eventbus"
)

// wsWriteTimeout bounds how long a single event write may block before the
// connection is considered stalled and dropped.
const wsWriteTimeout = 5 * time.Second

// handleWS upgrades the connection and relays every engine event to the
// client as a JSON text frame until the client disconnects or a reliable
// topic overflows and the subscription is dropped.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("ws accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	sub := s.eng.Events(
		eventbus.TopicQueueProgress,
		eventbus.TopicTaskStarted,
		eventbus.TopicTaskComplete,
		eventbus.TopicHashProgress,
		eventbus.TopicVerifyProgress,
		eventbus.TopicScanProgress,
		eventbus.TopicIndexRefreshed,
	)
	defer s.eng.Unsubscribe(sub)

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscriber disconnected")
				return
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("ws marshal event", "error", err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)

			err = conn.Write(writeCtx, websocket.MessageText, payload)

			cancel()

			if err != nil {
				s.logger.Debug("ws write failed, closing", "error", err)
				return
			}
		}
	}
}
