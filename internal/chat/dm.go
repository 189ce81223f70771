package chat

import (
	"time"

	"github.com/google/uuid"
)

// dmPreviewLen caps the content preview carried by dm_notification events.
const dmPreviewLen = 50

// PairKey derives the canonical id of the direct channel between two users:
// the ids sorted lexicographically and joined. It is symmetric, so both
// participants resolve the same channel no matter who asks.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// dmDirectory owns the bounded log of every direct channel, keyed by
// canonical pair key. Channels are created lazily on first message or
// history request.
type dmDirectory struct {
	channels map[string]*messageLog
}

func newDMDirectory() *dmDirectory {
	return &dmDirectory{channels: make(map[string]*messageLog)}
}

func (d *dmDirectory) ensure(channelID string) *messageLog {
	log := d.channels[channelID]
	if log == nil {
		log = &messageLog{}
		d.channels[channelID] = log
	}
	return log
}

// send stores a direct message from sender to recipient and registers the
// channel on both sessions. Delivery is the gateway's job; an offline
// recipient still gets the message stored for a later history fetch.
func (d *dmDirectory) send(sender, recipient *Session, content string, msgType MessageType) *Message {
	if msgType == "" {
		msgType = MessageText
	}
	channelID := PairKey(sender.ID, recipient.ID)
	msg := &Message{
		ID:        uuid.NewString(),
		Kind:      ChannelDirect,
		ChannelID: channelID,
		Content:   content,
		Type:      msgType,
		Sender: UserRef{
			ID:       sender.ID,
			Username: sender.Username,
			Avatar:   sender.Avatar,
		},
		Recipient: &UserRef{
			ID:       recipient.ID,
			Username: recipient.Username,
			Avatar:   recipient.Avatar,
		},
		Timestamp: time.Now(),
	}
	d.ensure(channelID).push(msg)
	sender.dmChannels[channelID] = struct{}{}
	recipient.dmChannels[channelID] = struct{}{}
	return msg
}

// history returns the replay tail of the channel between two users. An
// untouched channel replays empty rather than failing.
func (d *dmDirectory) history(userID, recipientID string) (string, []*Message) {
	channelID := PairKey(userID, recipientID)
	log := d.channels[channelID]
	if log == nil {
		return channelID, []*Message{}
	}
	return channelID, log.tail(replayCap)
}

// findMessage locates a stored direct message by id, or nil when the channel
// is unknown or the message has been evicted.
func (d *dmDirectory) findMessage(channelID, messageID string) *Message {
	log := d.channels[channelID]
	if log == nil {
		return nil
	}
	return log.find(messageID)
}

// preview truncates message content for a dm_notification.
func preview(content string) string {
	if len(content) > dmPreviewLen {
		return content[:dmPreviewLen] + "..."
	}
	return content
}
