package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"aquacore/pkg/domain"
)

const (
	watchWriteWait = 5 * time.Second
	watchPongWait  = 60 * time.Second
	watchQueue     = 16
)

// watchEvent is one websocket frame: the full committed document after a
// write, or deleted=true when the tank is removed.
type watchEvent struct {
	TankID  string          `json:"tankId"`
	Doc     domain.Document `json:"doc,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// handleWatch upgrades to a websocket and streams committed document changes
// until the client disconnects. A slow client that falls more than a full
// queue behind is dropped rather than blocking the store's notification path.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events := make(chan watchEvent, watchQueue)
	done := make(chan struct{})
	var closeOnce sync.Once
	stop := func() { closeOnce.Do(func() { close(done) }) }

	cancel, err := s.svc.Watch(r.Context(), key, func(doc domain.Document) {
		ev := watchEvent{TankID: key.TankID, Doc: doc, Deleted: doc == nil}
		select {
		case events <- ev:
		case <-done:
		default:
			// Queue full: drop the client instead of blocking the store.
			stop()
		}
	})
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second))
		return
	}
	defer cancel()

	// Reader loop: the client sends nothing meaningful, but reading is what
	// detects disconnects and services pong frames.
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(watchPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(watchPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				stop()
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("encode watch event", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
