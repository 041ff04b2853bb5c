package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const activityWriteTimeout = 5 * time.Second

var activityUpgrader = websocket.Upgrader{CheckOrigin: sameOrigin}

// sameOrigin accepts clients without an Origin header and browsers on the
// host serving the feed.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, strings.TrimSpace(r.Host))
}

// activitySnapshot is pushed to live activity subscribers.
type activitySnapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []string  `json:"entries"`
}

func (s *Server) buildActivitySnapshot() activitySnapshot {
	return activitySnapshot{
		GeneratedAt: time.Now().UTC(),
		Entries:     s.monitor.RecentActivity(statusTailLines),
	}
}

func (s *Server) handleActivityWS(w http.ResponseWriter, r *http.Request) {
	conn, err := activityUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("activity upgrade failed", slog.String("error", err.Error()))
		return
	}
	s.serveActivityConnection(conn)
}

func (s *Server) serveActivityConnection(conn *websocket.Conn) {
	defer conn.Close()

	if err := writeActivityPayload(conn, s.buildActivitySnapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := writeActivityPayload(conn, s.buildActivitySnapshot()); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeActivityPayload(conn *websocket.Conn, payload activitySnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(activityWriteTimeout))
	return conn.WriteJSON(payload)
}
