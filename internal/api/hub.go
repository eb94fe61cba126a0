package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

type client struct {
	send chan []byte
}

// Hub pushes every published dashboard to the connected websocket clients.
// Clients that cannot keep up are dropped.
type Hub struct {
	model      *model.Model
	logger     *logger.Logger
	register   chan *client
	unregister chan *client
	clients    map[*client]struct{}
	upgrader   websocket.Upgrader
	done       chan struct{}
}

func NewHub(m *model.Model, log *logger.Logger) *Hub {
	return &Hub{
		model:      m,
		logger:     log.Named("hub"),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	updates, cancel := h.model.Subscribe()
	defer cancel()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}

			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case d, ok := <-updates:
			if !ok {
				return
			}

			b, err := json.Marshal(d)
			if err != nil {
				h.logger.Warn("Failed to encode dashboard", zap.Error(err))

				continue
			}

			h.broadcast(b)
		}
	}
}

func (h *Hub) broadcast(b []byte) {
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeWS upgrades the request and streams dashboards. The current snapshot
// is sent first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))

		return
	}

	c := &client{send: make(chan []byte, sendBuffer)}

	if first, err := json.Marshal(h.model.Snapshot()); err == nil {
		c.send <- first
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()

		return
	case <-r.Context().Done():
		conn.Close()

		return
	}

	writeDone := make(chan struct{})

	go func() {
		defer close(writeDone)
		defer conn.Close()

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		for {
			select {
			case msg, ok := <-c.send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})

					return
				}

				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- c:
	case <-h.done:
	case <-writeDone:
	}

	<-writeDone
}
