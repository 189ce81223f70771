package chat

import (
	"fmt"
	"testing"
)

// TestJoinRoomCreatesAndReplays verifies lazy room creation, history replay
// to the joiner, and the join notice to existing members only.
func TestJoinRoomCreatesAndReplays(t *testing.T) {
	g := newTestGateway(t)
	connA := &fakeConn{addr: "a"}
	sessA := registerUser(t, g, connA, "alice")
	connB := &fakeConn{addr: "b"}
	sessB := registerUser(t, g, connB, "bob")

	g.handleJoinRoom(sessA, "games")
	if g.rooms.rooms["games"] == nil {
		t.Fatal("Joining did not create the room")
	}
	if !sessA.InRoom("games") {
		t.Fatal("Join did not record membership")
	}

	var history RoomHistoryPayload
	decodeInto(t, connA.lastEvent(t, EventRoomHistory), &history)
	if history.Room != "games" || len(history.Messages) != 0 {
		t.Errorf("Expected empty games history, got %+v", history)
	}

	connA.reset()
	g.handleJoinRoom(sessB, "games")

	var joined RoomEventPayload
	decodeInto(t, connA.lastEvent(t, EventUserJoined), &joined)
	if joined.UserID != sessB.ID || joined.Room != "games" {
		t.Errorf("Unexpected join notice: %+v", joined)
	}
	if got := connB.events(t, EventUserJoined); len(got) != 0 {
		t.Error("Joiner received its own join notice")
	}

	// Re-joining is idempotent and replays history again.
	g.handleJoinRoom(sessB, "games")
	if !sessB.InRoom("games") {
		t.Error("Membership lost on re-join")
	}
}

// TestLeaveRoom verifies membership removal, the leave notice to remaining
// members, and that leaving a room never joined is a no-op.
func TestLeaveRoom(t *testing.T) {
	g := newTestGateway(t)
	connA := &fakeConn{addr: "a"}
	sessA := registerUser(t, g, connA, "alice")
	connB := &fakeConn{addr: "b"}
	sessB := registerUser(t, g, connB, "bob")

	g.handleLeaveRoom(sessA, "general")
	if sessA.InRoom("general") {
		t.Error("Leave did not remove membership")
	}

	var left RoomEventPayload
	decodeInto(t, connB.lastEvent(t, EventUserLeft), &left)
	if left.UserID != sessA.ID || left.Room != "general" {
		t.Errorf("Unexpected leave notice: %+v", left)
	}

	// Leaving again, or a room never joined, changes nothing.
	g.handleLeaveRoom(sessA, "general")
	g.handleLeaveRoom(sessB, "no-such-room")
}

// TestPostMessage verifies the room post path: membership guard, sender
// pre-added to ReadBy, and fan-out to every member including the sender.
func TestPostMessage(t *testing.T) {
	g := newTestGateway(t)
	connA := &fakeConn{addr: "a"}
	sessA := registerUser(t, g, connA, "alice")
	connB := &fakeConn{addr: "b"}
	registerUser(t, g, connB, "bob")

	g.handleMessage(sessA, MessagePayload{Room: "general", Content: "hi"})

	for _, conn := range []*fakeConn{connA, connB} {
		var msg Message
		decodeInto(t, conn.lastEvent(t, EventMessage), &msg)
		if msg.Content != "hi" || msg.Room != "general" || msg.Kind != ChannelRoom {
			t.Errorf("Unexpected message on %s: %+v", conn.Addr(), msg)
		}
		if len(msg.ReadBy) != 1 || msg.ReadBy[0] != sessA.ID {
			t.Errorf("Expected ReadBy to contain only the sender, got %v", msg.ReadBy)
		}
		if msg.Sender.ID != sessA.ID || msg.Sender.Username != "alice" {
			t.Errorf("Unexpected sender snapshot: %+v", msg.Sender)
		}
	}
}

// TestPostMessageNotAMember verifies that posting to a room the session
// never joined fails with an error event and appends nothing.
func TestPostMessageNotAMember(t *testing.T) {
	g := newTestGateway(t)
	connA := &fakeConn{addr: "a"}
	sessA := registerUser(t, g, connA, "alice")

	g.handleMessage(sessA, MessagePayload{Room: "random", Content: "sneaky"})

	if got := connA.events(t, EventError); len(got) != 1 {
		t.Fatalf("Expected one error event, got %d", len(got))
	}
	if got := g.rooms.rooms["random"].log.len(); got != 0 {
		t.Errorf("Rejected post still appended: log has %d entries", got)
	}
	if got := connA.events(t, EventMessage); len(got) != 0 {
		t.Error("Rejected post was still fanned out")
	}
}

// TestRoomHistoryScenario verifies the canonical flow: alice posts "hi" to
// general, bob joins and must see exactly that one message, read only by
// alice.
func TestRoomHistoryScenario(t *testing.T) {
	g := newTestGateway(t)
	connA := &fakeConn{addr: "a"}
	sessA := registerUser(t, g, connA, "alice")

	g.handleMessage(sessA, MessagePayload{Room: "general", Content: "hi"})

	connB := &fakeConn{addr: "b"}
	sessB := registerUser(t, g, connB, "bob")
	g.handleJoinRoom(sessB, "general")

	var history RoomHistoryPayload
	decodeInto(t, connB.lastEvent(t, EventRoomHistory), &history)
	if len(history.Messages) != 1 {
		t.Fatalf("Expected exactly one message in history, got %d", len(history.Messages))
	}
	msg := history.Messages[0]
	if msg.Content != "hi" {
		t.Errorf("Expected content hi, got %q", msg.Content)
	}
	if len(msg.ReadBy) != 1 || msg.ReadBy[0] != sessA.ID {
		t.Errorf("Expected ReadBy={alice}, got %v", msg.ReadBy)
	}
}

// TestRoomLogCap verifies the storage cap: the log never exceeds 100
// entries and evicts oldest first, while history replays at most 50.
func TestRoomLogCap(t *testing.T) {
	g := newTestGateway(t)
	connA := &fakeConn{addr: "a"}
	sessA := registerUser(t, g, connA, "alice")

	for i := 0; i < 150; i++ {
		g.handleMessage(sessA, MessagePayload{Room: "general", Content: fmt.Sprintf("msg-%d", i)})
	}

	rm := g.rooms.rooms["general"]
	if rm.log.len() != storageCap {
		t.Fatalf("Expected log capped at %d, got %d", storageCap, rm.log.len())
	}
	if got := rm.log.entries[0].Content; got != "msg-50" {
		t.Errorf("Expected oldest surviving entry msg-50, got %q", got)
	}

	history := g.rooms.history("general")
	if len(history) != replayCap {
		t.Fatalf("Expected history of %d, got %d", replayCap, len(history))
	}
	if got := history[len(history)-1].Content; got != "msg-149" {
		t.Errorf("Expected newest entry msg-149, got %q", got)
	}
	if got := history[0].Content; got != "msg-100" {
		t.Errorf("Expected replay to start at msg-100, got %q", got)
	}
}

// TestRoomNamesSeedOrder verifies the seeded rooms are listed first, in
// seed order, followed by user-created rooms.
func TestRoomNamesSeedOrder(t *testing.T) {
	g := newTestGateway(t)
	connA := &fakeConn{}
	sessA := registerUser(t, g, connA, "alice")
	g.handleJoinRoom(sessA, "zebra")

	names := g.rooms.names()
	if len(names) != 4 {
		t.Fatalf("Expected 4 rooms, got %v", names)
	}
	for i, want := range []string{"general", "random", "support", "zebra"} {
		if names[i] != want {
			t.Errorf("Expected names[%d]=%s, got %s", i, want, names[i])
		}
	}
}

// TestTypingRelay verifies room typing indicators reach members except the
// sender and carry no server-side state.
func TestTypingRelay(t *testing.T) {
	g := newTestGateway(t)
	connA := &fakeConn{addr: "a"}
	sessA := registerUser(t, g, connA, "alice")
	connB := &fakeConn{addr: "b"}
	registerUser(t, g, connB, "bob")

	g.handleTyping(sessA, TypingPayload{Room: "general", IsTyping: true})

	var typing UserTypingPayload
	decodeInto(t, connB.lastEvent(t, EventUserTyping), &typing)
	if typing.UserID != sessA.ID || !typing.IsTyping || typing.Room != "general" {
		t.Errorf("Unexpected typing relay: %+v", typing)
	}
	if got := connA.events(t, EventUserTyping); len(got) != 0 {
		t.Error("Typing sender received its own indicator")
	}

	g.handleTyping(sessA, TypingPayload{Room: "general", IsTyping: false})
	var cleared UserTypingPayload
	decodeInto(t, connB.lastEvent(t, EventUserTyping), &cleared)
	if cleared.IsTyping {
		t.Error("Typing clear did not relay false")
	}
}
