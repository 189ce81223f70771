// Package server exposes the HTTP surface of the relay: the WebSocket
// upgrade endpoint and the health check.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nexuschat/relay/internal/chat"
)

// Handler owns the HTTP-facing side of the relay: it upgrades connections,
// applies origin policy, and hands new clients to the dispatch gateway. It
// is constructed once at startup; nothing here is a package global, so tests
// can run isolated instances side by side.
type Handler struct {
	cfg      *Config
	gateway  *chat.Gateway
	upgrader websocket.Upgrader
}

// NewHandler wires a configuration and gateway into an HTTP handler set.
func NewHandler(cfg *Config, gateway *chat.Gateway) *Handler {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	return &Handler{
		cfg:     cfg,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// WebSocket handles WebSocket upgrade requests. It validates the method,
// upgrades the connection, and starts the client's read/write pumps. The
// client announces itself to the gateway with its first register event.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, h.gateway, r.RemoteAddr, h.cfg)
	client.Start()
}

// Health provides a simple health check endpoint that returns server status.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relay server is running!")
}
