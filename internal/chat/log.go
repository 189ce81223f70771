package chat

// Storage and replay limits shared by room and DM logs. Both are
// load-bearing: storage caps bound memory per channel, the replay cap bounds
// history frames on the wire.
const (
	storageCap = 100
	replayCap  = 50
)

// messageLog is a bounded FIFO of messages. It is owned by exactly one
// directory and only ever touched from the gateway's dispatch goroutine, so
// it carries no lock of its own.
type messageLog struct {
	entries []*Message
}

// push appends a message, evicting the oldest entry once the log exceeds
// the storage cap.
func (l *messageLog) push(m *Message) {
	l.entries = append(l.entries, m)
	if len(l.entries) > storageCap {
		l.entries = l.entries[len(l.entries)-storageCap:]
	}
}

// tail returns a copy of the last n entries, oldest first. The copy keeps
// callers from aliasing the log's backing array across later evictions.
func (l *messageLog) tail(n int) []*Message {
	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]*Message, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// find returns the entry with the given id, or nil when it was never stored
// or has already been evicted.
func (l *messageLog) find(id string) *Message {
	for _, m := range l.entries {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (l *messageLog) len() int {
	return len(l.entries)
}
