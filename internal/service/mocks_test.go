package service

import (
	"context"
	"sync"
	"time"

	"chatsink/internal/errors"
	"chatsink/internal/models"
)

// memoryStore is an in-memory ChatStore + MessageStore with the same
// observable semantics as the sqlite database, plus injectable
// failures for exercising the retry paths.
type memoryStore struct {
	mu sync.Mutex

	nextChatID    int64
	nextMessageID int64
	chats         map[int64]*models.Chat
	messages      map[int64]*models.Message

	createMessageErr   error
	createMessageCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		chats:    make(map[int64]*models.Chat),
		messages: make(map[int64]*models.Message),
	}
}

func (s *memoryStore) GetChatByKey(_ context.Context, chatKey string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.ChatKey == chatKey {
			return copyChat(c), nil
		}
	}
	return nil, nil
}

func (s *memoryStore) GetChat(_ context.Context, id int64) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, nil
	}
	return copyChat(c), nil
}

func (s *memoryStore) CreateChatWithMembers(_ context.Context, chat *models.Chat, members []models.ChatMember) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chats {
		if c.ChatKey == chat.ChatKey {
			return nil, errors.NewConflictError("chat "+chat.ChatKey, nil)
		}
	}

	s.nextChatID++
	stored := &models.Chat{
		ID:        s.nextChatID,
		ChatKey:   chat.ChatKey,
		Name:      chat.Name,
		IsGroup:   chat.IsGroup,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	for _, m := range members {
		m.ChatID = stored.ID
		m.JoinedAt = time.Now()
		stored.Members = append(stored.Members, m)
	}
	s.chats[stored.ID] = stored
	return copyChat(stored), nil
}

func (s *memoryStore) AddChatMembers(_ context.Context, chatID int64, participants []string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return nil, errors.NewNotFoundError("chat", "unknown")
	}

	for _, p := range participants {
		if chat.Member(p) != nil {
			continue
		}
		chat.Members = append(chat.Members, models.ChatMember{
			ChatID: chatID, Participant: p, JoinedAt: time.Now(),
		})
	}
	return copyChat(chat), nil
}

func (s *memoryStore) RemoveChatMembers(_ context.Context, chatID int64, participants []string) (*models.RemovalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return nil, errors.NewNotFoundError("chat", "unknown")
	}

	removed := make(map[string]bool, len(participants))
	for _, p := range participants {
		removed[p] = true
	}

	var kept []models.ChatMember
	for _, m := range chat.Members {
		if !removed[m.Participant] {
			kept = append(kept, m)
		}
	}
	chat.Members = kept

	result := &models.RemovalResult{Remaining: len(kept)}
	if len(kept) == 0 {
		delete(s.chats, chatID)
		result.Deleted = true
		return result, nil
	}

	if !chat.HasAdmin() {
		chat.Members[0].IsAdmin = true
		result.Promoted = chat.Members[0].Participant
	}
	result.Chat = copyChat(chat)
	return result, nil
}

func (s *memoryStore) SetMemberMute(_ context.Context, chatID int64, participant string, mutedUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return errors.NewNotFoundError("chat member", participant)
	}
	m := chat.Member(participant)
	if m == nil {
		return errors.NewNotFoundError("chat member", participant)
	}
	m.MutedUntil = mutedUntil
	return nil
}

func (s *memoryStore) MarkChatRead(_ context.Context, chatID int64, participant string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return errors.NewNotFoundError("chat member", participant)
	}
	m := chat.Member(participant)
	if m == nil {
		return errors.NewNotFoundError("chat member", participant)
	}
	m.ReadAt = &at
	chat.UnreadCount = 0
	return nil
}

func (s *memoryStore) CreateMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createMessageCalls++
	if s.createMessageErr != nil {
		return nil, s.createMessageErr
	}

	s.nextMessageID++
	stored := copyMessage(msg)
	stored.ID = s.nextMessageID
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = time.Now()
	s.messages[stored.ID] = stored

	if chat, ok := s.chats[msg.ChatID]; ok {
		id := stored.ID
		chat.LastMessageID = &id
		chat.UnreadCount++
	}
	return copyMessage(stored), nil
}

func (s *memoryStore) GetMessage(_ context.Context, id int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(msg), nil
}

func (s *memoryStore) UpdateMessageOverlay(_ context.Context, id int64, status models.MessageStatus, readAt *time.Time, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return errors.NewNotFoundError("message", "unknown")
	}
	msg.Status = status
	msg.ReadAt = readAt
	msg.Metadata = metadata
	return nil
}

func (s *memoryStore) SetMessageReactions(_ context.Context, id int64, reactions map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return errors.NewNotFoundError("message", "unknown")
	}
	if len(reactions) == 0 {
		msg.Reactions = nil
		return nil
	}
	msg.Reactions = make(map[string]string, len(reactions))
	for k, v := range reactions {
		msg.Reactions[k] = v
	}
	return nil
}

func (s *memoryStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func copyChat(c *models.Chat) *models.Chat {
	out := *c
	out.Members = append([]models.ChatMember(nil), c.Members...)
	return &out
}

func copyMessage(m *models.Message) *models.Message {
	out := *m
	if m.Reactions != nil {
		out.Reactions = make(map[string]string, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = v
		}
	}
	if m.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// captureNotifier records every published notification.
type captureNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
	err   error
}

func (n *captureNotifier) Publish(_ context.Context, notification *models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notes = append(n.notes, *notification)
	return nil
}

func (n *captureNotifier) published() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.notes...)
}

// stubDispatcher builds a bare message from the event without touching
// disk; err short-circuits when set.
type stubDispatcher struct {
	err error
}

func (d *stubDispatcher) Dispatch(_ context.Context, event *models.InboundEvent, ingestedAt time.Time) (*models.Message, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &models.Message{
		Sender:      event.Sender,
		Type:        models.MessageType(event.Type),
		Content:     event.Content,
		TransportID: event.MessageID,
		SendingTime: event.EffectiveSendingTime(ingestedAt),
		Status:      models.MessageStatusPending,
	}, nil
}
