package chat

// Read-receipt tracking. Receipt mutation is the only code that touches a
// stored message's read state after the append; it runs on the gateway's
// dispatch goroutine like every other mutation.

// markDirectRead flips the Read flag on a direct message. Returns the
// message and whether this call changed anything: re-marking an already-read
// message reports false so the gateway can skip re-notifying the sender.
// A missing message (evicted or never stored) returns nil — accepted data
// loss, not an error.
func markDirectRead(dms *dmDirectory, channelID, messageID string) (*Message, bool) {
	msg := dms.findMessage(channelID, messageID)
	if msg == nil {
		return nil, false
	}
	if msg.Read {
		return msg, false
	}
	msg.Read = true
	return msg, true
}

// markRoomRead adds the reader to a room message's ReadBy set. Returns the
// message and whether the set grew; re-marking by the same reader is
// idempotent. Missing messages return nil.
func markRoomRead(rooms *roomDirectory, roomName, messageID, readerID string) (*Message, bool) {
	msg := rooms.findMessage(roomName, messageID)
	if msg == nil {
		return nil, false
	}
	for _, id := range msg.ReadBy {
		if id == readerID {
			return msg, false
		}
	}
	msg.ReadBy = append(msg.ReadBy, readerID)
	return msg, true
}
