package service

import (
	"context"
	"fmt"
	"time"

	"chatsink/internal/constants"
	"chatsink/internal/errors"
	"chatsink/internal/models"
	"chatsink/internal/privacy"
	"chatsink/internal/validation"

	"github.com/sirupsen/logrus"
)

// ChatDirectory owns chat identity and participant membership. Direct
// chats are found-or-created per unordered pair; group chats are
// created explicitly and keep the admin invariant through removals.
type ChatDirectory struct {
	store  ChatStore
	logger *logrus.Logger
}

func NewChatDirectory(store ChatStore, logger *logrus.Logger) *ChatDirectory {
	return &ChatDirectory{store: store, logger: logger}
}

// ResolveDirect finds or creates the one direct chat for an unordered
// participant pair. Both call orders yield the same chat.
func (cd *ChatDirectory) ResolveDirect(ctx context.Context, a, b string) (*models.Chat, error) {
	if err := validation.ValidateParticipantID(a); err != nil {
		return nil, err
	}
	if err := validation.ValidateParticipantID(b); err != nil {
		return nil, err
	}
	if a == b {
		return nil, errors.NewDomainInvariantError("direct-pair", "direct chat requires two distinct participants")
	}

	key := models.DirectChatKey(a, b)
	chat, err := cd.store.GetChatByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up direct chat: %w", err)
	}
	if chat != nil {
		return chat, nil
	}

	created, err := cd.store.CreateChatWithMembers(ctx,
		&models.Chat{ChatKey: key, IsGroup: false},
		[]models.ChatMember{
			{Participant: a},
			{Participant: b},
		},
	)
	if err != nil {
		// A concurrent resolver may have won the key; the stored
		// chat is the single source of truth for the pair.
		if errors.GetCode(err) == errors.ErrCodeConcurrencyConflict {
			return cd.store.GetChatByKey(ctx, key)
		}
		return nil, fmt.Errorf("failed to create direct chat: %w", err)
	}

	cd.logger.WithFields(logrus.Fields{
		"chat_id":  created.ID,
		"chat_key": privacy.MaskChatKey(key),
	}).Info("Created direct chat")

	return created, nil
}

// ResolveForEvent maps an inbound event to its owning chat. A known
// chat key wins; otherwise the event's chat field is treated as the
// counterpart identity of a direct conversation.
func (cd *ChatDirectory) ResolveForEvent(ctx context.Context, event *models.InboundEvent) (*models.Chat, error) {
	chat, err := cd.store.GetChatByKey(ctx, event.Chat)
	if err != nil {
		return nil, fmt.Errorf("failed to look up chat: %w", err)
	}
	if chat != nil {
		return chat, nil
	}
	return cd.ResolveDirect(ctx, event.Sender, event.Chat)
}

// CreateGroup creates a group chat with an initial participant set.
// The creator is always a member and the sole initial admin.
func (cd *ChatDirectory) CreateGroup(ctx context.Context, name string, participants []string, creator string) (*models.Chat, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", "", "group name is required")
	}
	if err := validation.ValidateParticipantID(creator); err != nil {
		return nil, err
	}

	seen := map[string]bool{creator: true}
	members := []models.ChatMember{{Participant: creator, IsAdmin: true}}
	for _, p := range participants {
		if err := validation.ValidateParticipantID(p); err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		members = append(members, models.ChatMember{Participant: p})
	}

	if len(members) < constants.MinGroupParticipants {
		return nil, errors.NewDomainInvariantError("group-size",
			fmt.Sprintf("group requires at least %d participants", constants.MinGroupParticipants))
	}

	chat, err := cd.store.CreateChatWithMembers(ctx,
		&models.Chat{ChatKey: groupChatKey(name), Name: name, IsGroup: true},
		members,
	)
	if err != nil {
		return nil, err
	}

	cd.logger.WithFields(logrus.Fields{
		"chat_id":      chat.ID,
		"member_count": len(members),
	}).Info("Created group chat")

	return chat, nil
}

// AddParticipants adds members to a group. Direct chats are fixed at
// their pair and reject membership edits.
func (cd *ChatDirectory) AddParticipants(ctx context.Context, chatID int64, participants []string) (*models.Chat, error) {
	if len(participants) == 0 {
		return nil, errors.NewValidationError("participants", "", "no participants given")
	}
	for _, p := range participants {
		if err := validation.ValidateParticipantID(p); err != nil {
			return nil, err
		}
	}

	chat, err := cd.requireChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsGroup {
		return nil, errors.NewDomainInvariantError("direct-pair", "cannot add participants to a direct chat")
	}

	return cd.store.AddChatMembers(ctx, chatID, participants)
}

// RemoveParticipants removes members from a group atomically. An
// emptied chat is deleted; a group left adminless gets one member
// promoted in the same transaction. Direct chats reject edits.
func (cd *ChatDirectory) RemoveParticipants(ctx context.Context, chatID int64, participants []string) (*models.RemovalResult, error) {
	if len(participants) == 0 {
		return nil, errors.NewValidationError("participants", "", "no participants given")
	}

	chat, err := cd.requireChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsGroup {
		return nil, errors.NewDomainInvariantError("direct-pair", "cannot remove participants from a direct chat")
	}

	result, err := cd.store.RemoveChatMembers(ctx, chatID, participants)
	if err != nil {
		return nil, err
	}

	entry := cd.logger.WithFields(logrus.Fields{
		"chat_id":   chatID,
		"remaining": result.Remaining,
	})
	switch {
	case result.Deleted:
		entry.Info("Deleted emptied chat")
	case result.Promoted != "":
		entry.WithField("promoted", privacy.MaskIdentity(result.Promoted)).
			Info("Promoted member to admin after last admin left")
	}

	return result, nil
}

// ToggleMute sets or clears a member's mute. durationMinutes <= 0
// mutes indefinitely via the far-future sentinel.
func (cd *ChatDirectory) ToggleMute(ctx context.Context, chatID int64, participant string, mute bool, durationMinutes int) error {
	if err := validation.ValidateParticipantID(participant); err != nil {
		return err
	}

	var mutedUntil *time.Time
	if mute {
		until := models.MuteForever
		if durationMinutes > 0 {
			until = time.Now().UTC().Add(time.Duration(durationMinutes) * time.Minute)
		}
		mutedUntil = &until
	}

	return cd.store.SetMemberMute(ctx, chatID, participant, mutedUntil)
}

// MarkChatRead stamps a member's read horizon and clears the chat's
// unread counter.
func (cd *ChatDirectory) MarkChatRead(ctx context.Context, chatID int64, participant string) error {
	if err := validation.ValidateParticipantID(participant); err != nil {
		return err
	}
	return cd.store.MarkChatRead(ctx, chatID, participant, time.Now().UTC())
}

func (cd *ChatDirectory) requireChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	chat, err := cd.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up chat: %w", err)
	}
	if chat == nil {
		return nil, errors.NewNotFoundError("chat", fmt.Sprintf("%d", chatID))
	}
	return chat, nil
}

// groupChatKey makes group keys collision-free against direct-pair
// keys, which never carry the "group:" prefix.
func groupChatKey(name string) string {
	return "group:" + name + ":" + fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}
