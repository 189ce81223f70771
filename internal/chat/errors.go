package chat

import "errors"

// Engine error taxonomy. None of these are fatal to a connection; the
// gateway surfaces them as registration_error or error events and keeps the
// connection open.
var (
	// ErrDuplicateUsername rejects a fresh registration whose display name
	// collides case-insensitively with an online session. The reconnect
	// path never returns it.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrNotAMember rejects a room post from a session that never joined
	// the room.
	ErrNotAMember = errors.New("not a member of this room")

	// ErrRecipientNotFound rejects a direct message addressed to a user id
	// with no session.
	ErrRecipientNotFound = errors.New("user not found")

	// ErrUnregistered rejects any event arriving on a connection before a
	// successful register.
	ErrUnregistered = errors.New("connection is not registered")
)
