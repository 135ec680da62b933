package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evcraddock/canvasser/internal/tracker"
)

const (
	streamBuffer = 32
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

func (s *Server) apiLocationStatus(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, s.svc.LocationStatus(), http.StatusOK)
}

func (s *Server) apiStartTracking(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.StartTracking(r.Context()); err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, s.svc.LocationStatus(), http.StatusOK)
}

func (s *Server) apiStopTracking(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.StopTracking(r.Context()); err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, s.svc.LocationStatus(), http.StatusOK)
}

// apiPushFix accepts one device fix.
func (s *Server) apiPushFix(w http.ResponseWriter, r *http.Request) {
	var f tracker.Fix
	if !decodeJSON(w, r, &f) {
		return
	}
	if err := s.svc.PushFix(f); err != nil {
		apiFail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// apiCurrentFix returns one position from the source, bypassing the
// displacement filter.
func (s *Server) apiCurrentFix(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.CurrentFix(r.Context())
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, f, http.StatusOK)
}

// handleLocationStream upgrades to a websocket that carries live updates out
// and accepts device fixes in. Each inbound text message is one JSON fix.
func (s *Server) handleLocationStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			slog.Debug("closing websocket", "error", cerr)
		}
	}()

	updates, unsubscribe := s.svc.Subscribe(streamBuffer)
	defer unsubscribe()

	// Replies to bad inbound fixes go through the writer so only one
	// goroutine ever writes to conn.
	replies := make(chan map[string]string, 4)
	readDone := make(chan struct{})
	go s.readFixes(conn, replies, readDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case u, ok := <-updates:
			if !ok {
				s.writeClose(conn)
				return
			}
			if err := s.writeJSON(conn, u); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		case msg := <-replies:
			if err := s.writeJSON(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) readFixes(conn *websocket.Conn, replies chan<- map[string]string, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f tracker.Fix
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := s.svc.PushFix(f); err != nil {
			select {
			case replies <- map[string]string{"error": err.Error()}:
			default:
			}
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (s *Server) writeClose(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
