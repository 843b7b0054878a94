package models

import "time"

type NotificationKind string

const (
	NotificationMessageCreated  NotificationKind = "message.created"
	NotificationStatusChanged   NotificationKind = "status.changed"
	NotificationReactionChanged NotificationKind = "reaction.changed"
)

// Notification is the versioned payload handed to the fan-out
// publisher on every successful state change. Transport and channel
// naming are entirely the publisher's concern.
type Notification struct {
	Version     int              `json:"v"`
	Kind        NotificationKind `json:"kind"`
	ChatID      int64            `json:"chatId"`
	MessageID   int64            `json:"messageId"`
	Participant string           `json:"participantId,omitempty"`
	Snapshot    MessageSnapshot  `json:"snapshot"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewNotification builds a v1 notification from a detached snapshot.
func NewNotification(kind NotificationKind, snap MessageSnapshot, participant string, ts time.Time) Notification {
	return Notification{
		Version:     1,
		Kind:        kind,
		ChatID:      snap.ChatID,
		MessageID:   snap.MessageID,
		Participant: participant,
		Snapshot:    snap,
		Timestamp:   ts,
	}
}
