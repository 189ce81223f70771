// Package testhelpers provides common utilities for testing the relay
// server: spinning up a full server instance, dialing WebSocket clients,
// and exchanging protocol envelopes.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexuschat/relay/internal/chat"
	"github.com/nexuschat/relay/internal/server"
)

// TestOrigin is the origin header used by test clients; it matches the
// default allowed-origin configuration.
const TestOrigin = "http://localhost:8080"

// Relay bundles a running gateway and HTTP test server.
type Relay struct {
	Gateway *chat.Gateway
	Server  *httptest.Server
	WSURL   string
}

// StartRelay boots an isolated relay instance: its own gateway, handler,
// and httptest server. Everything is torn down via t.Cleanup.
func StartRelay(t *testing.T, customize func(cfg *server.Config)) *Relay {
	t.Helper()

	cfg := server.NewConfig()
	cfg.GracePeriod = time.Hour // tests control eviction explicitly
	if customize != nil {
		customize(cfg)
	}

	gateway := chat.NewGateway(cfg.GracePeriod)
	go gateway.Run()

	handler := server.NewHandler(cfg, gateway)
	ts := httptest.NewServer(handler.Routes())

	t.Cleanup(func() {
		ts.Close()
		if err := gateway.Shutdown(5 * time.Second); err != nil {
			t.Errorf("Gateway shutdown failed: %v", err)
		}
	})

	return &Relay{
		Gateway: gateway,
		Server:  ts,
		WSURL:   "ws" + ts.URL[len("http"):] + "/ws",
	}
}

// Dial connects a WebSocket client with the standard test origin.
func Dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, err := DialWithOrigin(wsURL, TestOrigin)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialWithOrigin connects with an explicit origin header, returning the
// error so tests can assert on rejected handshakes.
func DialWithOrigin(wsURL, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent marshals and sends one protocol envelope.
func SendEvent(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal %s payload: %v", eventType, err)
	}
	env := chat.Envelope{Type: eventType, Payload: body}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("Failed to send %s event: %v", eventType, err)
	}
}

// ReadEvent reads the next envelope off the connection.
func ReadEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) chat.Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var env chat.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	return env
}

// ReadUntil reads envelopes until one of the given type arrives, failing
// the test when the deadline passes first.
func ReadUntil(t *testing.T, conn *websocket.Conn, eventType string) chat.Envelope {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		env := ReadEvent(t, conn, time.Until(deadline))
		if env.Type == eventType {
			return env
		}
	}
	t.Fatalf("Never received a %s event", eventType)
	return chat.Envelope{}
}

// ExpectNoEvent asserts that nothing of the given type arrives within the
// window. Other event types are ignored.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, eventType string, window time.Duration) {
	t.Helper()
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		var env chat.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return // deadline hit, nothing arrived
		}
		if env.Type == eventType {
			t.Fatalf("Expected no %s event, but received one", eventType)
		}
	}
}

// DecodePayload unmarshals an envelope payload into target.
func DecodePayload(t *testing.T, env chat.Envelope, target any) {
	t.Helper()
	if err := json.Unmarshal(env.Payload, target); err != nil {
		t.Fatalf("Failed to decode %s payload: %v", env.Type, err)
	}
}

// Register sends a register event and returns the session info from the
// registered reply.
func Register(t *testing.T, conn *websocket.Conn, username string) chat.SessionInfo {
	t.Helper()
	SendEvent(t, conn, chat.EventRegister, chat.RegisterPayload{Username: username})
	var info chat.SessionInfo
	DecodePayload(t, ReadUntil(t, conn, chat.EventRegistered), &info)
	return info
}
