package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const eventsWriteTimeout = 5 * time.Second

// handleEvents streams snapshots: the current one first, then one per change.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.coord.Subscribe()
	defer unsubscribe()

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
		if err := conn.WriteJSON(v); err != nil {
			if !isClosed(err) {
				logger.Debug().Err(err).Msg("events write failed")
			}
			return false
		}
		return true
	}

	if !write(s.coord.Snapshot()) {
		return
	}
	for {
		select {
		case snap, ok := <-updates:
			if !ok || !write(snap) {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		}
	}
}
