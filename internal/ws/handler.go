package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"formrelay/internal/config"
	"formrelay/internal/logbus"
)

const writeWait = 5 * time.Second

// Handler streams the log bus over a websocket: buffered history first, then
// live messages. Origins are checked against the same allow list as the CORS
// policy.
type Handler struct {
	bus      *logbus.Bus
	cors     config.CorsConfig
	upgrader websocket.Upgrader
}

func NewHandler(bus *logbus.Bus, cors config.CorsConfig) *Handler {
	h := &Handler{
		bus:  bus,
		cors: cors,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		http.Error(w, "log stream unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for _, msg := range h.bus.Snapshot() {
		if !writeMessage(conn, msg) {
			return
		}
	}

	ch, cancel := h.bus.Subscribe(256)
	defer cancel()

	// Drain the read side so close frames and pings are processed.
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
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !writeMessage(conn, msg) {
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, msg logbus.Message) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg) == nil
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return h.cors.OriginAllowed(origin)
}
