package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"market-chat-gateway/internal/realtime"
)

// Hub fans realtime updates out to the WebSocket clients watching each
// session. A slow client drops updates rather than blocking the
// controller; the next polling cycle replaces them anyway.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zerolog.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{} // keyed by session id
}

type client struct {
	conn *websocket.Conn
	out  chan any
	done chan struct{}
}

func NewHub(allowedOrigins []string, logger *zerolog.Logger) *Hub {
	l := logger.With().Str("component", "WSHub").Logger()
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		log:     &l,
		clients: make(map[string]map[*client]struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// Publish implements realtime.Sink.
func (h *Hub) Publish(u realtime.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[u.SessionID] {
		select {
		case c.out <- u:
		default:
		}
	}
}

// ServeSession upgrades the connection and streams the session's
// realtime updates until the client goes away. greet is sent first so
// a reconnecting client sees the current state without waiting a full
// polling interval.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string, greet []any) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	cl := &client{conn: conn, out: make(chan any, 64), done: make(chan struct{})}
	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*client]struct{})
	}
	h.clients[sessionID][cl] = struct{}{}
	h.mu.Unlock()

	// writer
	go func() {
		ping := time.NewTicker(45 * time.Second)
		defer ping.Stop()
		for {
			select {
			case v := <-cl.out:
				_ = conn.WriteJSON(v)
			case <-ping.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			case <-cl.done:
				return
			}
		}
	}()

	for _, g := range greet {
		select {
		case cl.out <- g:
		default:
		}
	}

	// reader: only liveness, no inbound protocol
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(cl.done)
	h.mu.Lock()
	delete(h.clients[sessionID], cl)
	if len(h.clients[sessionID]) == 0 {
		delete(h.clients, sessionID)
	}
	h.mu.Unlock()
}
