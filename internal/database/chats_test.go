package database

import (
	"context"
	"testing"
	"time"

	"chatsink/internal/errors"
	"chatsink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChatWithMembers(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	chat, err := db.CreateChatWithMembers(ctx, &models.Chat{
		ChatKey: "group:team:1",
		Name:    "team",
		IsGroup: true,
	}, []models.ChatMember{
		{Participant: "alice", IsAdmin: true},
		{Participant: "bob"},
		{Participant: "carol"},
	})
	require.NoError(t, err)

	assert.NotZero(t, chat.ID)
	assert.Equal(t, "group:team:1", chat.ChatKey)
	assert.Equal(t, "team", chat.Name)
	assert.True(t, chat.IsGroup)
	require.Len(t, chat.Members, 3)
	assert.Equal(t, []string{"alice", "bob", "carol"}, chat.Participants())
	assert.True(t, chat.Members[0].IsAdmin)
	assert.False(t, chat.Members[1].IsAdmin)
}

func TestCreateChatDuplicateKeyIsConflict(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	members := []models.ChatMember{{Participant: "alice"}, {Participant: "bob"}}
	_, err := db.CreateChatWithMembers(ctx, &models.Chat{ChatKey: "alice|bob"}, members)
	require.NoError(t, err)

	_, err = db.CreateChatWithMembers(ctx, &models.Chat{ChatKey: "alice|bob"}, members)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConcurrencyConflict, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestGetChatByKeyMissing(t *testing.T) {
	db := setupTestDatabase(t)

	chat, err := db.GetChatByKey(context.Background(), "nobody|nowhere")
	assert.NoError(t, err)
	assert.Nil(t, chat)
}

func TestAddChatMembersIdempotent(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "group:team:2",
		models.ChatMember{Participant: "alice", IsAdmin: true},
		models.ChatMember{Participant: "bob"},
		models.ChatMember{Participant: "carol"},
	)

	updated, err := db.AddChatMembers(ctx, chat.ID, []string{"dave", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, updated.Participants())

	// Re-adding the same batch changes nothing.
	again, err := db.AddChatMembers(ctx, chat.ID, []string{"dave", "bob"})
	require.NoError(t, err)
	assert.Equal(t, updated.Participants(), again.Participants())
}

func TestRemoveChatMembersKeepsOthers(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "group:team:3",
		models.ChatMember{Participant: "alice", IsAdmin: true},
		models.ChatMember{Participant: "bob"},
		models.ChatMember{Participant: "carol"},
	)

	result, err := db.RemoveChatMembers(ctx, chat.ID, []string{"carol"})
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Empty(t, result.Promoted)
	assert.Equal(t, 2, result.Remaining)
	require.NotNil(t, result.Chat)
	assert.Equal(t, []string{"alice", "bob"}, result.Chat.Participants())
}

func TestRemoveChatMembersPromotesWhenLastAdminLeaves(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "group:team:4",
		models.ChatMember{Participant: "alice", IsAdmin: true},
		models.ChatMember{Participant: "bob"},
		models.ChatMember{Participant: "carol"},
	)

	result, err := db.RemoveChatMembers(ctx, chat.ID, []string{"alice"})
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Equal(t, "bob", result.Promoted, "longest-standing member is promoted")
	require.NotNil(t, result.Chat)
	assert.True(t, result.Chat.HasAdmin())
	assert.True(t, result.Chat.Member("bob").IsAdmin)
}

func TestRemoveChatMembersDeletesEmptyChat(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "group:team:5",
		models.ChatMember{Participant: "alice", IsAdmin: true},
		models.ChatMember{Participant: "bob"},
		models.ChatMember{Participant: "carol"},
	)

	result, err := db.RemoveChatMembers(ctx, chat.ID, []string{"alice", "bob", "carol"})
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.Equal(t, 0, result.Remaining)
	assert.Nil(t, result.Chat)

	gone, err := db.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRemoveChatMembersNonMemberIsNoop(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "group:team:6",
		models.ChatMember{Participant: "alice", IsAdmin: true},
		models.ChatMember{Participant: "bob"},
		models.ChatMember{Participant: "carol"},
	)

	result, err := db.RemoveChatMembers(ctx, chat.ID, []string{"stranger"})
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Equal(t, 3, result.Remaining)
}

func TestSetMemberMute(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "alice|bob",
		models.ChatMember{Participant: "alice"},
		models.ChatMember{Participant: "bob"},
	)

	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SetMemberMute(ctx, chat.ID, "alice", &until))

	reloaded, err := db.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	member := reloaded.Member("alice")
	require.NotNil(t, member)
	require.NotNil(t, member.MutedUntil)
	assert.True(t, member.MutedUntil.Equal(until))

	// Clearing the mute.
	require.NoError(t, db.SetMemberMute(ctx, chat.ID, "alice", nil))
	reloaded, err = db.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.Member("alice").MutedUntil)
}

func TestSetMemberMuteUnknownParticipant(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "alice|bob",
		models.ChatMember{Participant: "alice"},
		models.ChatMember{Participant: "bob"},
	)

	err := db.SetMemberMute(ctx, chat.ID, "stranger", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestMarkChatRead(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "alice|bob",
		models.ChatMember{Participant: "alice"},
		models.ChatMember{Participant: "bob"},
	)

	_, err := db.CreateMessage(ctx, &models.Message{
		ChatID: chat.ID, Sender: "alice", Type: models.MessageTypeText,
		Content: "hi", SendingTime: time.Now(), Status: models.MessageStatusPending,
	})
	require.NoError(t, err)

	at := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	require.NoError(t, db.MarkChatRead(ctx, chat.ID, "bob", at))

	reloaded, err := db.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.UnreadCount)
	member := reloaded.Member("bob")
	require.NotNil(t, member)
	require.NotNil(t, member.ReadAt)
	assert.True(t, member.ReadAt.Equal(at))
}

func TestMarkChatReadUnknownParticipant(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	chat := createTestChat(t, db, "alice|bob",
		models.ChatMember{Participant: "alice"},
		models.ChatMember{Participant: "bob"},
	)

	err := db.MarkChatRead(ctx, chat.ID, "stranger", time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}
