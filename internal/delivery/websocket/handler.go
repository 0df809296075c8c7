package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fx-screener/internal/domain"
	"fx-screener/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard may be served from another origin
	},
}

const writeWait = 10 * time.Second

// SnapshotSource provides the state pushed to clients.
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

type Handler struct {
	source   SnapshotSource
	interval time.Duration
	logger   zerolog.Logger
}

func NewHandler(source SnapshotSource, interval time.Duration, logger zerolog.Logger) *Handler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Handler{
		source:   source,
		interval: interval,
		logger:   util.Component(logger, "websocket"),
	}
}

// Handle sends the snapshot right away, then every interval until the
// client goes away.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Upgrade failed")
		return
	}
	defer conn.Close()

	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("New client connected")

	// Reads only serve to notice the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.push(conn); err != nil {
		h.logger.Debug().Err(err).Msg("Write error")
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.Debug().Str("remote", r.RemoteAddr).Msg("Client disconnected")
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := h.push(conn); err != nil {
				h.logger.Debug().Err(err).Msg("Write error")
				return
			}
		}
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Handle(w, r)
}

func (h *Handler) push(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(h.source.Snapshot())
}
