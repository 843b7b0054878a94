package models

import "time"

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeLocation MessageType = "location"
	MessageTypeContact  MessageType = "contact"
	MessageTypeUnknown  MessageType = "unknown"
)

// BinaryTypes are the message types that carry a base64 media payload.
var BinaryTypes = map[MessageType]bool{
	MessageTypeImage:    true,
	MessageTypeVideo:    true,
	MessageTypeAudio:    true,
	MessageTypeDocument: true,
}

// KnownTypes is the closed type enumeration accepted on the wire.
var KnownTypes = map[MessageType]bool{
	MessageTypeText:     true,
	MessageTypeImage:    true,
	MessageTypeVideo:    true,
	MessageTypeAudio:    true,
	MessageTypeDocument: true,
	MessageTypeLocation: true,
	MessageTypeContact:  true,
	MessageTypeUnknown:  true,
}

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// statusRank orders the forward lifecycle. Failed sits outside the
// ordering and is handled separately.
var statusRank = map[MessageStatus]int{
	MessageStatusPending:   0,
	MessageStatusSent:      1,
	MessageStatusDelivered: 2,
	MessageStatusRead:      3,
}

// Advances reports whether moving from cur to next is a forward
// transition in the delivery lifecycle.
func (next MessageStatus) Advances(cur MessageStatus) bool {
	nr, ok := statusRank[next]
	if !ok {
		return false
	}
	cr, ok := statusRank[cur]
	if !ok {
		return false
	}
	return nr > cr
}

// Message is the durable record of one inbound message. Core fields
// are written once by the ingestion engine; Status, ReadAt, Reactions
// and the error detail in Metadata are the mutable overlay owned by
// the status tracker.
type Message struct {
	ID          int64                  `json:"id"`
	ChatID      int64                  `json:"chatId"`
	Sender      string                 `json:"sender"`
	Type        MessageType            `json:"type"`
	Content     string                 `json:"content"`
	MediaPath   *string                `json:"mediaPath,omitempty"`
	MimeType    string                 `json:"mimeType,omitempty"`
	TransportID string                 `json:"transportId,omitempty"`
	SendingTime time.Time              `json:"sendingTime"`
	Status      MessageStatus          `json:"status"`
	ReadAt      *time.Time             `json:"readAt,omitempty"`
	Reactions   map[string]string      `json:"reactions,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// MessageSnapshot is the stable view returned by status/reaction
// mutations and embedded in notifications. It is built at the publish
// boundary, never aliased to the live record.
type MessageSnapshot struct {
	MessageID int64             `json:"messageId"`
	ChatID    int64             `json:"chatId"`
	Status    MessageStatus     `json:"status"`
	ReadAt    *time.Time        `json:"readAt,omitempty"`
	Reactions map[string]string `json:"reactions,omitempty"`
}

// Snapshot copies the mutable overlay into a detached snapshot.
func (m *Message) Snapshot() MessageSnapshot {
	s := MessageSnapshot{
		MessageID: m.ID,
		ChatID:    m.ChatID,
		Status:    m.Status,
	}
	if m.ReadAt != nil {
		t := *m.ReadAt
		s.ReadAt = &t
	}
	if len(m.Reactions) > 0 {
		s.Reactions = make(map[string]string, len(m.Reactions))
		for k, v := range m.Reactions {
			s.Reactions[k] = v
		}
	}
	return s
}
