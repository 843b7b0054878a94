package service

import (
	"context"
	"time"

	"chatsink/internal/models"
)

// ChatStore is the persistence surface the directory needs. The
// sqlite-backed database satisfies it; tests substitute a mock.
type ChatStore interface {
	GetChatByKey(ctx context.Context, chatKey string) (*models.Chat, error)
	GetChat(ctx context.Context, id int64) (*models.Chat, error)
	CreateChatWithMembers(ctx context.Context, chat *models.Chat, members []models.ChatMember) (*models.Chat, error)
	AddChatMembers(ctx context.Context, chatID int64, participants []string) (*models.Chat, error)
	RemoveChatMembers(ctx context.Context, chatID int64, participants []string) (*models.RemovalResult, error)
	SetMemberMute(ctx context.Context, chatID int64, participant string, mutedUntil *time.Time) error
	MarkChatRead(ctx context.Context, chatID int64, participant string, at time.Time) error
}

// MessageStore is the persistence surface for message rows and their
// mutable status overlay.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	UpdateMessageOverlay(ctx context.Context, id int64, status models.MessageStatus, readAt *time.Time, metadata map[string]interface{}) error
	SetMessageReactions(ctx context.Context, id int64, reactions map[string]string) error
}

// Notifier receives the outbound notification payloads the core emits
// on message creation and status/reaction changes. Delivery transport
// is entirely the implementation's concern.
type Notifier interface {
	Publish(ctx context.Context, notification *models.Notification) error
}

// MediaDispatcher turns a validated inbound event into a message
// ready for persistence.
type MediaDispatcher interface {
	Dispatch(ctx context.Context, event *models.InboundEvent, ingestedAt time.Time) (*models.Message, error)
}
