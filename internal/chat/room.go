package chat

import (
	"time"

	"github.com/google/uuid"
)

// defaultRoom is the room every fresh registration is subscribed to.
const defaultRoom = "general"

// seedRooms exist from startup so first-time clients have somewhere to land.
var seedRooms = []string{defaultRoom, "random", "support"}

// room is a named broadcast channel with a bounded message log. Rooms are
// created lazily on first join and never destroyed; an orphan room with no
// members costs one map entry and its retained log.
type room struct {
	name string
	log  messageLog
}

// roomDirectory owns every room and its log. Membership lives on sessions,
// not here: fan-out resolves members through the registry.
type roomDirectory struct {
	rooms map[string]*room
}

func newRoomDirectory() *roomDirectory {
	d := &roomDirectory{rooms: make(map[string]*room)}
	for _, name := range seedRooms {
		d.rooms[name] = &room{name: name}
	}
	return d
}

// names lists every room, seed order first for the initial three.
func (d *roomDirectory) names() []string {
	out := make([]string, 0, len(d.rooms))
	for _, name := range seedRooms {
		out = append(out, name)
	}
	for name := range d.rooms {
		if !isSeedRoom(name) {
			out = append(out, name)
		}
	}
	return out
}

func isSeedRoom(name string) bool {
	for _, seed := range seedRooms {
		if name == seed {
			return true
		}
	}
	return false
}

// ensure returns the named room, creating it when absent.
func (d *roomDirectory) ensure(name string) *room {
	rm := d.rooms[name]
	if rm == nil {
		rm = &room{name: name}
		d.rooms[name] = rm
	}
	return rm
}

// history returns the replay tail for a room. A room that was never created
// replays empty history rather than failing: joining is what creates it.
func (d *roomDirectory) history(name string) []*Message {
	rm := d.rooms[name]
	if rm == nil {
		return []*Message{}
	}
	return rm.log.tail(replayCap)
}

// join adds the session to the room, creating it on first use. Re-joining
// is idempotent. Returns the replay tail for the joiner.
func (d *roomDirectory) join(sess *Session, name string) []*Message {
	rm := d.ensure(name)
	sess.rooms[name] = struct{}{}
	return rm.log.tail(replayCap)
}

// leave drops the session's membership. Leaving a room never joined is a
// no-op.
func (d *roomDirectory) leave(sess *Session, name string) {
	delete(sess.rooms, name)
}

// post appends a message to a room on behalf of a member. The membership
// check and the append happen in one step under the gateway's serialization,
// so a racing leave cannot interleave between them. The sender is pre-added
// to ReadBy.
func (d *roomDirectory) post(sess *Session, name string, content string, msgType MessageType) (*Message, error) {
	if !sess.InRoom(name) {
		return nil, ErrNotAMember
	}
	if msgType == "" {
		msgType = MessageText
	}
	msg := &Message{
		ID:      uuid.NewString(),
		Kind:    ChannelRoom,
		Room:    name,
		Content: content,
		Type:    msgType,
		Sender: UserRef{
			ID:       sess.ID,
			Username: sess.Username,
			Avatar:   sess.Avatar,
		},
		Timestamp: time.Now(),
		ReadBy:    []string{sess.ID},
	}
	d.ensure(name).log.push(msg)
	return msg, nil
}

// findMessage locates a stored room message by id, or nil when the room is
// unknown or the message has been evicted.
func (d *roomDirectory) findMessage(name, messageID string) *Message {
	rm := d.rooms[name]
	if rm == nil {
		return nil
	}
	return rm.log.find(messageID)
}
