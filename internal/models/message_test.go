package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusAdvances(t *testing.T) {
	tests := []struct {
		name     string
		current  MessageStatus
		next     MessageStatus
		expected bool
	}{
		{"pending to sent", MessageStatusPending, MessageStatusSent, true},
		{"pending to delivered", MessageStatusPending, MessageStatusDelivered, true},
		{"sent to delivered", MessageStatusSent, MessageStatusDelivered, true},
		{"delivered to read", MessageStatusDelivered, MessageStatusRead, true},
		{"delivered to sent regression", MessageStatusDelivered, MessageStatusSent, false},
		{"read to delivered regression", MessageStatusRead, MessageStatusDelivered, false},
		{"same status", MessageStatusSent, MessageStatusSent, false},
		{"failed is outside the ordering", MessageStatusSent, MessageStatusFailed, false},
		{"from failed", MessageStatusFailed, MessageStatusDelivered, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.next.Advances(tt.current))
		})
	}
}

func TestMessageSnapshotIsDetached(t *testing.T) {
	readAt := time.Now().UTC()
	msg := &Message{
		ID:        42,
		ChatID:    7,
		Status:    MessageStatusRead,
		ReadAt:    &readAt,
		Reactions: map[string]string{"alice": "👍"},
	}

	snap := msg.Snapshot()

	assert.Equal(t, int64(42), snap.MessageID)
	assert.Equal(t, int64(7), snap.ChatID)
	assert.Equal(t, MessageStatusRead, snap.Status)

	// Mutating the live record must not bleed into the snapshot.
	msg.Reactions["alice"] = "👎"
	*msg.ReadAt = readAt.Add(time.Hour)

	assert.Equal(t, "👍", snap.Reactions["alice"])
	assert.Equal(t, readAt, *snap.ReadAt)
}

func TestMessageSnapshotEmptyOverlay(t *testing.T) {
	msg := &Message{ID: 1, ChatID: 2, Status: MessageStatusPending}

	snap := msg.Snapshot()

	assert.Nil(t, snap.ReadAt)
	assert.Nil(t, snap.Reactions)
}
