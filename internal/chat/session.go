// Package chat tracks registered identities in a session registry that
// survives connection churn: a session outlives its connection by the
// eviction grace period so a reconnecting client can resume it.
package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// defaultGracePeriod is how long a disconnected session is retained before
// eviction permanently removes the identity and its memberships.
const defaultGracePeriod = 60 * time.Second

// Session is the durable server-side record of a registered identity. At
// most one live connection is bound to it at a time; a new registration with
// the same user id supersedes the previous binding. All fields are guarded
// by the gateway's dispatch goroutine.
type Session struct {
	ID       string
	Username string
	Avatar   string
	Status   Status
	LastSeen time.Time

	conn       Conn
	rooms      map[string]struct{}
	dmChannels map[string]struct{}
	evict      *time.Timer
}

// Info snapshots the session into its wire representation.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:             s.ID,
		Username:       s.Username,
		Avatar:         s.Avatar,
		Status:         s.Status,
		LastSeen:       s.LastSeen,
		Rooms:          sortedKeys(s.rooms),
		DirectMessages: sortedKeys(s.dmChannels),
	}
}

// Summary snapshots the session into a roster entry.
func (s *Session) Summary() UserSummary {
	return UserSummary{
		ID:       s.ID,
		Username: s.Username,
		Avatar:   s.Avatar,
		Status:   s.Status,
		LastSeen: s.LastSeen,
	}
}

// InRoom reports whether the session holds membership in the named room.
func (s *Session) InRoom(room string) bool {
	_, ok := s.rooms[room]
	return ok
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// registry owns every Session, indexed by durable user id and by live
// connection. It has no lock: the gateway serializes all access.
type registry struct {
	byID   map[string]*Session
	byConn map[Conn]*Session
}

func newRegistry() *registry {
	return &registry{
		byID:   make(map[string]*Session),
		byConn: make(map[Conn]*Session),
	}
}

// lookup resolves a connection to its session, or nil when the connection
// never registered.
func (r *registry) lookup(conn Conn) *Session {
	return r.byConn[conn]
}

// lookupID resolves a durable user id to its session.
func (r *registry) lookupID(userID string) *Session {
	return r.byID[userID]
}

// register binds a connection to a session. When priorID resolves to an
// existing session this is a reconnect: the connection is rebound and the
// pending eviction cancelled, and the duplicate-name check is skipped
// entirely. Otherwise a fresh identity is minted, rejecting usernames that
// case-insensitively collide with an online session.
func (r *registry) register(conn Conn, username, avatar, priorID string) (*Session, bool, error) {
	if priorID != "" {
		if sess := r.byID[priorID]; sess != nil {
			if sess.conn != nil && sess.conn != conn {
				// Superseded binding: the old connection no longer maps to
				// this identity.
				delete(r.byConn, sess.conn)
			}
			if sess.evict != nil {
				sess.evict.Stop()
				sess.evict = nil
			}
			sess.conn = conn
			sess.Status = StatusOnline
			sess.LastSeen = time.Now()
			r.byConn[conn] = sess
			return sess, true, nil
		}
	}

	for _, other := range r.byID {
		if other.Status == StatusOnline && strings.EqualFold(other.Username, username) {
			return nil, false, ErrDuplicateUsername
		}
	}

	id := priorID
	if id == "" {
		id = uuid.NewString()
	}
	if username == "" {
		username = "User-" + shortID(id)
	}
	if avatar == "" {
		avatar = fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", id)
	}

	sess := &Session{
		ID:         id,
		Username:   username,
		Avatar:     avatar,
		Status:     StatusOnline,
		LastSeen:   time.Now(),
		conn:       conn,
		rooms:      map[string]struct{}{defaultRoom: {}},
		dmChannels: make(map[string]struct{}),
	}
	r.byID[id] = sess
	r.byConn[conn] = sess
	return sess, false, nil
}

func shortID(id string) string {
	if len(id) > 6 {
		return id[:6]
	}
	return id
}

// detach marks the session behind a connection as offline and unbinds the
// connection. It returns nil when the connection never registered, or when
// the binding was already superseded by a reconnect.
func (r *registry) detach(conn Conn) *Session {
	sess := r.byConn[conn]
	if sess == nil {
		return nil
	}
	delete(r.byConn, conn)
	if sess.conn != conn {
		return nil
	}
	sess.conn = nil
	sess.Status = StatusOffline
	sess.LastSeen = time.Now()
	return sess
}

// evict removes a session permanently, but only if it is still offline: a
// reconnect between timer scheduling and firing wins. Returns true when the
// session was removed.
func (r *registry) evict(userID string) bool {
	sess := r.byID[userID]
	if sess == nil || sess.Status != StatusOffline || sess.conn != nil {
		return false
	}
	delete(r.byID, userID)
	return true
}

// summaries returns a roster snapshot of every known session, including
// offline ones still inside their grace period.
func (r *registry) summaries() []UserSummary {
	out := make([]UserSummary, 0, len(r.byID))
	for _, sess := range r.byID {
		out = append(out, sess.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// liveConns returns the connections of every online session except the one
// given.
func (r *registry) liveConns(except *Session) []Conn {
	out := make([]Conn, 0, len(r.byID))
	for _, sess := range r.byID {
		if sess == except || sess.conn == nil {
			continue
		}
		out = append(out, sess.conn)
	}
	return out
}

// roomConns returns the connections of every online member of a room,
// optionally excluding one session.
func (r *registry) roomConns(room string, except *Session) []Conn {
	out := make([]Conn, 0, len(r.byID))
	for _, sess := range r.byID {
		if sess == except || sess.conn == nil {
			continue
		}
		if sess.InRoom(room) {
			out = append(out, sess.conn)
		}
	}
	return out
}
