// Package chat defines the wire-level event contract shared by the gateway
// and its clients: tagged envelopes, one payload type per event, and the
// Message record stored in room and DM logs.
package chat

import (
	"encoding/json"
	"time"
)

// Inbound event types accepted from clients.
const (
	EventRegister      = "register"
	EventJoinRoom      = "join_room"
	EventLeaveRoom     = "leave_room"
	EventMessage       = "message"
	EventDirectMessage = "direct_message"
	EventGetDMHistory  = "get_dm_history"
	EventMarkRead      = "mark_read"
	EventTyping        = "typing"
	EventDMTyping      = "dm_typing"
	EventStatus        = "status"
)

// Outbound event types emitted to clients. Message and direct_message are
// reused in both directions.
const (
	EventRegistered        = "registered"
	EventRegistrationError = "registration_error"
	EventRooms             = "rooms"
	EventActiveUsers       = "active_users"
	EventRoomHistory       = "room_history"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventDMNotification    = "dm_notification"
	EventDMHistory         = "dm_history"
	EventMessageRead       = "message_read"
	EventUserTyping        = "user_typing"
	EventUserDMTyping      = "user_dm_typing"
	EventUserStatus        = "user_status"
	EventUserConnected     = "user_connected"
	EventUserDisconnected  = "user_disconnected"
	EventError             = "error"
)

// Envelope is the frame exchanged on the wire in both directions. Payload
// holds the event-specific body; scalar-payload events (join_room,
// leave_room, get_dm_history, status) carry a bare JSON string.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Status is a user's presence state.
type Status string

// Presence states reported by clients and broadcast to the roster.
const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// ChannelKind discriminates where a message lives. It replaces shape-based
// checks on the payload: every stored message knows whether it belongs to a
// room or a direct channel.
type ChannelKind string

// Channel kinds.
const (
	ChannelRoom   ChannelKind = "room"
	ChannelDirect ChannelKind = "direct"
)

// MessageType describes the content of a message.
type MessageType string

// Supported message content types.
const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// UserRef is a point-in-time snapshot of a user identity embedded in
// messages. It is captured at send time and never updated afterwards.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Message is a single chat message stored in a bounded room or DM log.
// Room messages track readers in ReadBy (the sender is pre-added); direct
// messages use the single Read flag, owned by the non-sending party.
type Message struct {
	ID        string      `json:"id"`
	Kind      ChannelKind `json:"channelKind"`
	Room      string      `json:"room,omitempty"`
	ChannelID string      `json:"channelId,omitempty"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Sender    UserRef     `json:"sender"`
	Recipient *UserRef    `json:"recipient,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Read      bool        `json:"read"`
	ReadBy    []string    `json:"readBy,omitempty"`
}

// RegisterPayload is the body of a register event. UserID is set when a
// client attempts to resume a prior identity after a reconnect.
type RegisterPayload struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// MessagePayload is the body of an inbound room message.
type MessagePayload struct {
	Room    string      `json:"room"`
	Content string      `json:"content"`
	Type    MessageType `json:"type,omitempty"`
}

// DirectMessagePayload is the body of an inbound direct message.
type DirectMessagePayload struct {
	RecipientID string      `json:"recipientId"`
	Content     string      `json:"content"`
	Type        MessageType `json:"type,omitempty"`
}

// MarkReadPayload identifies a message being marked as read. ChannelID is
// the room name for room messages and the canonical pair key for direct
// ones; IsDirectMessage selects between the two on the wire.
type MarkReadPayload struct {
	MessageID       string `json:"messageId"`
	ChannelID       string `json:"channelId"`
	IsDirectMessage bool   `json:"isDirectMessage,omitempty"`
}

// TypingPayload is the body of a room typing indicator.
type TypingPayload struct {
	Room     string `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

// DMTypingPayload is the body of a direct-message typing indicator.
type DMTypingPayload struct {
	RecipientID string `json:"recipientId"`
	IsTyping    bool   `json:"isTyping"`
}

// SessionInfo is the registered event body: the caller's own session as the
// server sees it, including current memberships.
type SessionInfo struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Avatar         string    `json:"avatar"`
	Status         Status    `json:"status"`
	LastSeen       time.Time `json:"lastSeen"`
	Rooms          []string  `json:"rooms"`
	DirectMessages []string  `json:"directMessages"`
}

// UserSummary is one roster entry in an active_users payload.
type UserSummary struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// RoomHistoryPayload carries the replayed tail of a room log.
type RoomHistoryPayload struct {
	Room     string     `json:"room"`
	Messages []*Message `json:"messages"`
}

// DMHistoryPayload carries the replayed tail of a direct channel log.
type DMHistoryPayload struct {
	ChannelID   string     `json:"channelId"`
	RecipientID string     `json:"recipientId"`
	Messages    []*Message `json:"messages"`
}

// RoomEventPayload announces a membership change to a room's members.
type RoomEventPayload struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// MessageReadPayload notifies interested parties that ReadBy gained a reader
// (rooms) or the Read flag flipped (direct messages).
type MessageReadPayload struct {
	MessageID       string `json:"messageId"`
	ChannelID       string `json:"channelId"`
	ReadBy          string `json:"readBy"`
	IsDirectMessage bool   `json:"isDirectMessage"`
}

// DMNotificationPayload is the short preview pushed to a DM recipient
// alongside the message itself.
type DMNotificationPayload struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
}

// UserTypingPayload relays a room typing indicator to other members.
type UserTypingPayload struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// UserDMTypingPayload relays a typing indicator to a DM counterpart.
type UserDMTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// UserStatusPayload broadcasts a presence change.
type UserStatusPayload struct {
	UserID   string    `json:"userId"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// UserConnectedPayload announces a newly registered or reconnected user.
type UserConnectedPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Status   Status `json:"status"`
}

// UserDisconnectedPayload announces that a user's connection dropped. The
// session itself lingers for the eviction grace period.
type UserDisconnectedPayload struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"lastSeen"`
}

// ErrorPayload carries a non-fatal error back to the offending client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeEvent marshals an outbound envelope. Payload types are all local
// structs, so a marshal failure indicates a programming error and is
// reported to the caller rather than sent.
func encodeEvent(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: body})
}
