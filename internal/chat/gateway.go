// Package chat coordinates sessions, rooms, and direct channels behind a
// single dispatch gateway. The gateway owns all mutable state and serializes
// every mutation through one goroutine, so the registry and directories need
// no locking of their own.
package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Conn is the transport-side handle for one live client connection. Send
// must not block: it hands the frame to the connection's outbound buffer and
// reports false when the buffer is full or the connection is gone. Actual
// network writes happen on the transport's own goroutine, never inside the
// dispatch loop.
type Conn interface {
	Send(frame []byte) bool
	Addr() string
}

// statsInterval is how often the gateway logs registry and channel counts.
const statsInterval = 5 * time.Minute

type inboundEvent struct {
	conn Conn
	env  Envelope
}

// Gateway is the single entry point for inbound events. It validates the
// calling connection, routes the event to the registry or a directory, and
// fans the resulting outbound events to the affected connections.
type Gateway struct {
	registry *registry
	rooms    *roomDirectory
	dms      *dmDirectory
	grace    time.Duration

	inbound   chan inboundEvent
	detached  chan Conn
	evictions chan string
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewGateway creates a gateway with freshly seeded rooms and an empty
// registry. A non-positive grace period falls back to the default 60s.
func NewGateway(grace time.Duration) *Gateway {
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		registry:  newRegistry(),
		rooms:     newRoomDirectory(),
		dms:       newDMDirectory(),
		grace:     grace,
		inbound:   make(chan inboundEvent, 64),
		detached:  make(chan Conn, 16),
		evictions: make(chan string, 16),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Run drains the gateway's event queues until Shutdown. It must be running
// before any connection dispatches events, and should be started in its own
// goroutine.
func (g *Gateway) Run() {
	defer close(g.done)

	stats := time.NewTicker(statsInterval)
	defer stats.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case ev := <-g.inbound:
			g.handleEvent(ev.conn, ev.env)
		case conn := <-g.detached:
			g.handleDetach(conn)
		case userID := <-g.evictions:
			g.handleEvict(userID)
		case <-stats.C:
			log.Printf("Sessions: %d, rooms: %d, DM channels: %d",
				len(g.registry.byID), len(g.rooms.rooms), len(g.dms.channels))
		}
	}
}

// Shutdown stops the dispatch loop and waits for it to drain, up to the
// timeout. Connections themselves are closed by the transport layer.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	g.cancel()
	select {
	case <-g.done:
		log.Println("Gateway shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Gateway shutdown timeout reached")
		return context.DeadlineExceeded
	}
}

// Dispatch decodes one inbound frame from a connection and queues it for the
// dispatch loop. Frames that are not a valid envelope are rejected here with
// an error event; the connection stays open.
func (g *Gateway) Dispatch(conn Conn, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		log.Printf("Invalid frame from %s: %v", conn.Addr(), err)
		g.send(conn, EventError, ErrorPayload{Message: "invalid event envelope"})
		return
	}
	select {
	case g.inbound <- inboundEvent{conn: conn, env: env}:
	case <-g.ctx.Done():
	}
}

// Detach reports that a connection closed. The dispatch loop marks the
// session offline, broadcasts the disconnect, and schedules eviction.
func (g *Gateway) Detach(conn Conn) {
	select {
	case g.detached <- conn:
	case <-g.ctx.Done():
	}
}

// handleEvent routes one decoded envelope. Only register is legal on an
// unregistered connection; everything else is answered with an error event
// and otherwise ignored.
func (g *Gateway) handleEvent(conn Conn, env Envelope) {
	if env.Type == EventRegister {
		var p RegisterPayload
		if !g.decode(conn, env, &p) {
			return
		}
		g.handleRegister(conn, p)
		return
	}

	sess := g.registry.lookup(conn)
	if sess == nil {
		g.send(conn, EventError, ErrorPayload{Message: ErrUnregistered.Error()})
		return
	}

	switch env.Type {
	case EventJoinRoom:
		var room string
		if g.decode(conn, env, &room) {
			g.handleJoinRoom(sess, room)
		}
	case EventLeaveRoom:
		var room string
		if g.decode(conn, env, &room) {
			g.handleLeaveRoom(sess, room)
		}
	case EventMessage:
		var p MessagePayload
		if g.decode(conn, env, &p) {
			g.handleMessage(sess, p)
		}
	case EventDirectMessage:
		var p DirectMessagePayload
		if g.decode(conn, env, &p) {
			g.handleDirectMessage(sess, p)
		}
	case EventGetDMHistory:
		var recipientID string
		if g.decode(conn, env, &recipientID) {
			g.handleDMHistory(sess, recipientID)
		}
	case EventMarkRead:
		var p MarkReadPayload
		if g.decode(conn, env, &p) {
			g.handleMarkRead(sess, p)
		}
	case EventTyping:
		var p TypingPayload
		if g.decode(conn, env, &p) {
			g.handleTyping(sess, p)
		}
	case EventDMTyping:
		var p DMTypingPayload
		if g.decode(conn, env, &p) {
			g.handleDMTyping(sess, p)
		}
	case EventStatus:
		var status Status
		if g.decode(conn, env, &status) {
			g.handleStatus(sess, status)
		}
	default:
		log.Printf("Unknown event %q from %s", env.Type, conn.Addr())
		g.send(conn, EventError, ErrorPayload{Message: "unknown event type"})
	}
}

func (g *Gateway) handleRegister(conn Conn, p RegisterPayload) {
	sess, reconnect, err := g.registry.register(conn, p.Username, p.Avatar, p.UserID)
	if err != nil {
		log.Printf("Registration rejected for %q from %s: %v", p.Username, conn.Addr(), err)
		g.send(conn, EventRegistrationError, ErrorPayload{
			Message: "Username already taken. Please choose another one.",
		})
		return
	}
	if reconnect {
		log.Printf("User reconnected: %s (%s)", sess.Username, sess.ID)
	} else {
		log.Printf("User registered: %s (%s)", sess.Username, sess.ID)
	}

	g.send(conn, EventRegistered, sess.Info())
	g.send(conn, EventRooms, g.rooms.names())
	g.broadcast(g.registry.liveConns(sess), EventUserConnected, UserConnectedPayload{
		ID:       sess.ID,
		Username: sess.Username,
		Avatar:   sess.Avatar,
		Status:   sess.Status,
	})
	g.send(conn, EventActiveUsers, g.registry.summaries())
	g.send(conn, EventRoomHistory, RoomHistoryPayload{
		Room:     defaultRoom,
		Messages: g.rooms.history(defaultRoom),
	})
}

func (g *Gateway) handleJoinRoom(sess *Session, roomName string) {
	if roomName == "" {
		return
	}
	history := g.rooms.join(sess, roomName)
	g.send(sess.conn, EventRoomHistory, RoomHistoryPayload{Room: roomName, Messages: history})
	g.broadcast(g.registry.roomConns(roomName, sess), EventUserJoined, RoomEventPayload{
		Room:     roomName,
		UserID:   sess.ID,
		Username: sess.Username,
	})
	log.Printf("%s joined room: %s", sess.Username, roomName)
}

func (g *Gateway) handleLeaveRoom(sess *Session, roomName string) {
	if roomName == "" {
		return
	}
	g.rooms.leave(sess, roomName)
	g.broadcast(g.registry.roomConns(roomName, sess), EventUserLeft, RoomEventPayload{
		Room:     roomName,
		UserID:   sess.ID,
		Username: sess.Username,
	})
	log.Printf("%s left room: %s", sess.Username, roomName)
}

func (g *Gateway) handleMessage(sess *Session, p MessagePayload) {
	if p.Room == "" || p.Content == "" {
		return
	}
	msg, err := g.rooms.post(sess, p.Room, p.Content, p.Type)
	if err != nil {
		g.send(sess.conn, EventError, ErrorPayload{Message: "You're not in this room"})
		return
	}
	// Fan out to every member including the sender, who uses the echo as
	// delivery confirmation.
	g.broadcast(g.registry.roomConns(p.Room, nil), EventMessage, msg)
}

func (g *Gateway) handleDirectMessage(sess *Session, p DirectMessagePayload) {
	if p.RecipientID == "" || p.Content == "" {
		return
	}
	recipient := g.registry.lookupID(p.RecipientID)
	if recipient == nil {
		g.send(sess.conn, EventError, ErrorPayload{Message: "User not found"})
		return
	}
	msg := g.dms.send(sess, recipient, p.Content, p.Type)

	g.send(sess.conn, EventDirectMessage, msg)
	if recipient.conn != nil {
		g.send(recipient.conn, EventDirectMessage, msg)
		g.send(recipient.conn, EventDMNotification, DMNotificationPayload{
			SenderID:   sess.ID,
			SenderName: sess.Username,
			Message:    preview(p.Content),
		})
	}
}

// handleDMHistory replays the channel tail and, as a side effect, marks
// every replayed message from the counterpart as read, notifying its sender.
// The replay itself carries the pre-mark read state.
func (g *Gateway) handleDMHistory(sess *Session, recipientID string) {
	if recipientID == "" {
		return
	}
	channelID, messages := g.dms.history(sess.ID, recipientID)
	g.send(sess.conn, EventDMHistory, DMHistoryPayload{
		ChannelID:   channelID,
		RecipientID: recipientID,
		Messages:    messages,
	})

	for _, msg := range messages {
		if msg.Sender.ID == sess.ID || msg.Read {
			continue
		}
		msg.Read = true
		g.notifySenderRead(msg, sess.ID, channelID)
	}
}

func (g *Gateway) handleMarkRead(sess *Session, p MarkReadPayload) {
	if p.IsDirectMessage {
		msg, changed := markDirectRead(g.dms, p.ChannelID, p.MessageID)
		if msg == nil || !changed {
			// Evicted or already read: accepted no-op.
			return
		}
		g.notifySenderRead(msg, sess.ID, p.ChannelID)
		return
	}

	msg, changed := markRoomRead(g.rooms, p.ChannelID, p.MessageID, sess.ID)
	if msg == nil || !changed {
		return
	}
	g.broadcast(g.registry.roomConns(p.ChannelID, sess), EventMessageRead, MessageReadPayload{
		MessageID:       p.MessageID,
		ChannelID:       p.ChannelID,
		ReadBy:          sess.ID,
		IsDirectMessage: false,
	})
}

// notifySenderRead delivers a direct-message read receipt to the original
// sender's active connection, if any.
func (g *Gateway) notifySenderRead(msg *Message, readerID, channelID string) {
	sender := g.registry.lookupID(msg.Sender.ID)
	if sender == nil || sender.conn == nil {
		return
	}
	g.send(sender.conn, EventMessageRead, MessageReadPayload{
		MessageID:       msg.ID,
		ChannelID:       channelID,
		ReadBy:          readerID,
		IsDirectMessage: true,
	})
}

func (g *Gateway) handleTyping(sess *Session, p TypingPayload) {
	if p.Room == "" {
		return
	}
	g.broadcast(g.registry.roomConns(p.Room, sess), EventUserTyping, UserTypingPayload{
		Room:     p.Room,
		UserID:   sess.ID,
		Username: sess.Username,
		IsTyping: p.IsTyping,
	})
}

func (g *Gateway) handleDMTyping(sess *Session, p DMTypingPayload) {
	if p.RecipientID == "" {
		return
	}
	recipient := g.registry.lookupID(p.RecipientID)
	if recipient == nil || recipient.conn == nil {
		return
	}
	g.send(recipient.conn, EventUserDMTyping, UserDMTypingPayload{
		UserID:   sess.ID,
		Username: sess.Username,
		IsTyping: p.IsTyping,
	})
}

func (g *Gateway) handleStatus(sess *Session, status Status) {
	switch status {
	case StatusOnline, StatusAway, StatusOffline:
	default:
		g.send(sess.conn, EventError, ErrorPayload{Message: "unknown status"})
		return
	}
	sess.Status = status
	sess.LastSeen = time.Now()
	g.broadcast(g.registry.liveConns(sess), EventUserStatus, UserStatusPayload{
		UserID:   sess.ID,
		Status:   status,
		LastSeen: sess.LastSeen,
	})
}

// handleDetach marks the session offline, announces the disconnect, and
// arms the eviction timer. The timer posts back into the dispatch queue so
// the eviction itself runs serialized, and it re-checks live status at fire
// time; a reconnect both stops the timer and would defeat a stale firing.
func (g *Gateway) handleDetach(conn Conn) {
	sess := g.registry.detach(conn)
	if sess == nil {
		return
	}
	log.Printf("User disconnected: %s (%s)", sess.Username, sess.ID)
	g.broadcast(g.registry.liveConns(sess), EventUserDisconnected, UserDisconnectedPayload{
		UserID:   sess.ID,
		Username: sess.Username,
		LastSeen: sess.LastSeen,
	})

	userID := sess.ID
	sess.evict = time.AfterFunc(g.grace, func() {
		select {
		case g.evictions <- userID:
		case <-g.ctx.Done():
		}
	})
}

func (g *Gateway) handleEvict(userID string) {
	if g.registry.evict(userID) {
		log.Printf("Session evicted: %s", userID)
	}
}

func (g *Gateway) decode(conn Conn, env Envelope, target any) bool {
	if err := json.Unmarshal(env.Payload, target); err != nil {
		log.Printf("Invalid %s payload from %s: %v", env.Type, conn.Addr(), err)
		g.send(conn, EventError, ErrorPayload{Message: "invalid " + env.Type + " payload"})
		return false
	}
	return true
}

// send encodes and queues one outbound event on a single connection. A full
// outbound buffer drops the frame; the connection's own write deadline deals
// with clients that stay stuck.
func (g *Gateway) send(conn Conn, eventType string, payload any) {
	if conn == nil {
		return
	}
	frame, err := encodeEvent(eventType, payload)
	if err != nil {
		log.Printf("Error encoding %s event: %v", eventType, err)
		return
	}
	if !conn.Send(frame) {
		log.Printf("Dropped %s event for %s: send buffer full", eventType, conn.Addr())
	}
}

// broadcast fans one event out to a resolved connection set. State mutation
// has already committed by the time this runs; Send never blocks.
func (g *Gateway) broadcast(conns []Conn, eventType string, payload any) {
	if len(conns) == 0 {
		return
	}
	frame, err := encodeEvent(eventType, payload)
	if err != nil {
		log.Printf("Error encoding %s event: %v", eventType, err)
		return
	}
	for _, conn := range conns {
		if !conn.Send(frame) {
			log.Printf("Dropped %s event for %s: send buffer full", eventType, conn.Addr())
		}
	}
}
