package service

import (
	"context"
	"testing"

	"chatsink/internal/errors"
	"chatsink/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestResolveDirectCreatesOnce(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	first, err := cd.ResolveDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice|bob", first.ChatKey)
	assert.False(t, first.IsGroup)
	assert.Equal(t, []string{"alice", "bob"}, first.Participants())

	// Reversed order resolves to the same chat.
	second, err := cd.ResolveDirect(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveDirectRejectsSelfPair(t *testing.T) {
	cd := NewChatDirectory(newMemoryStore(), newTestLogger())

	_, err := cd.ResolveDirect(context.Background(), "alice", "alice")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDomainInvariant, errors.GetCode(err))
}

func TestResolveDirectRejectsInvalidIdentity(t *testing.T) {
	cd := NewChatDirectory(newMemoryStore(), newTestLogger())

	_, err := cd.ResolveDirect(context.Background(), "", "bob")
	assert.Error(t, err)

	_, err = cd.ResolveDirect(context.Background(), "a|b", "bob")
	assert.Error(t, err)
}

// conflictOnceStore simulates losing a create race exactly once.
type conflictOnceStore struct {
	*memoryStore
	conflicted bool
}

func (s *conflictOnceStore) CreateChatWithMembers(ctx context.Context, chat *models.Chat, members []models.ChatMember) (*models.Chat, error) {
	if !s.conflicted {
		s.conflicted = true
		// The winner's row lands before the conflict surfaces.
		if _, err := s.memoryStore.CreateChatWithMembers(ctx, chat, members); err != nil {
			return nil, err
		}
		return nil, errors.NewConflictError("chat "+chat.ChatKey, nil)
	}
	return s.memoryStore.CreateChatWithMembers(ctx, chat, members)
}

func TestResolveDirectRecoversFromCreateRace(t *testing.T) {
	store := &conflictOnceStore{memoryStore: newMemoryStore()}
	cd := NewChatDirectory(store, newTestLogger())

	chat, err := cd.ResolveDirect(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, "alice|bob", chat.ChatKey)
}

func TestResolveForEventPrefersKnownChatKey(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	group, err := cd.CreateGroup(ctx, "team", []string{"bob", "carol"}, "alice")
	require.NoError(t, err)

	resolved, err := cd.ResolveForEvent(ctx, &models.InboundEvent{
		Sender: "bob",
		Chat:   group.ChatKey,
	})
	require.NoError(t, err)
	assert.Equal(t, group.ID, resolved.ID)
}

func TestResolveForEventFallsBackToDirect(t *testing.T) {
	cd := NewChatDirectory(newMemoryStore(), newTestLogger())

	resolved, err := cd.ResolveForEvent(context.Background(), &models.InboundEvent{
		Sender: "alice",
		Chat:   "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice|bob", resolved.ChatKey)
}

func TestCreateGroup(t *testing.T) {
	cd := NewChatDirectory(newMemoryStore(), newTestLogger())

	chat, err := cd.CreateGroup(context.Background(), "team", []string{"bob", "carol", "bob"}, "alice")
	require.NoError(t, err)

	assert.True(t, chat.IsGroup)
	assert.Equal(t, "team", chat.Name)
	assert.Equal(t, []string{"alice", "bob", "carol"}, chat.Participants(), "duplicates collapse")
	assert.True(t, chat.Member("alice").IsAdmin, "creator is the sole initial admin")
	assert.False(t, chat.Member("bob").IsAdmin)
}

func TestCreateGroupRequiresName(t *testing.T) {
	cd := NewChatDirectory(newMemoryStore(), newTestLogger())

	_, err := cd.CreateGroup(context.Background(), "", []string{"bob"}, "alice")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
}

func TestCreateGroupRequiresMinimumSize(t *testing.T) {
	cd := NewChatDirectory(newMemoryStore(), newTestLogger())

	_, err := cd.CreateGroup(context.Background(), "solo", nil, "alice")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDomainInvariant, errors.GetCode(err))
}

func TestGroupKeyNeverCollidesWithDirectKey(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	direct, err := cd.ResolveDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	group, err := cd.CreateGroup(ctx, "alice|bob", []string{"bob"}, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, direct.ChatKey, group.ChatKey)
}

func TestAddParticipantsRejectsDirectChat(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	direct, err := cd.ResolveDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = cd.AddParticipants(ctx, direct.ID, []string{"carol"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDomainInvariant, errors.GetCode(err))
}

func TestAddParticipants(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	group, err := cd.CreateGroup(ctx, "team", []string{"bob"}, "alice")
	require.NoError(t, err)

	updated, err := cd.AddParticipants(ctx, group.ID, []string{"carol", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, updated.Participants())
}

func TestAddParticipantsEmptyBatch(t *testing.T) {
	cd := NewChatDirectory(newMemoryStore(), newTestLogger())

	_, err := cd.AddParticipants(context.Background(), 1, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
}

func TestRemoveParticipantsRejectsDirectChat(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	direct, err := cd.ResolveDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = cd.RemoveParticipants(ctx, direct.ID, []string{"bob"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDomainInvariant, errors.GetCode(err))
}

func TestRemoveParticipantsPromotesReplacementAdmin(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	group, err := cd.CreateGroup(ctx, "team", []string{"bob", "carol"}, "alice")
	require.NoError(t, err)

	result, err := cd.RemoveParticipants(ctx, group.ID, []string{"alice"})
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Equal(t, "bob", result.Promoted)
	assert.True(t, result.Chat.HasAdmin())
}

func TestRemoveParticipantsDeletesEmptiedGroup(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	group, err := cd.CreateGroup(ctx, "team", []string{"bob"}, "alice")
	require.NoError(t, err)

	result, err := cd.RemoveParticipants(ctx, group.ID, []string{"alice", "bob"})
	require.NoError(t, err)
	assert.True(t, result.Deleted)

	gone, err := store.GetChat(ctx, group.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRemoveParticipantsUnknownChat(t *testing.T) {
	cd := NewChatDirectory(newMemoryStore(), newTestLogger())

	_, err := cd.RemoveParticipants(context.Background(), 404, []string{"alice"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestToggleMute(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	direct, err := cd.ResolveDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	// Timed mute.
	require.NoError(t, cd.ToggleMute(ctx, direct.ID, "alice", true, 60))
	chat, err := store.GetChat(ctx, direct.ID)
	require.NoError(t, err)
	require.NotNil(t, chat.Member("alice").MutedUntil)
	assert.True(t, chat.Member("alice").MutedUntil.Before(models.MuteForever))

	// Indefinite mute uses the sentinel.
	require.NoError(t, cd.ToggleMute(ctx, direct.ID, "alice", true, 0))
	chat, err = store.GetChat(ctx, direct.ID)
	require.NoError(t, err)
	assert.True(t, chat.Member("alice").MutedUntil.Equal(models.MuteForever))

	// Unmute clears the horizon.
	require.NoError(t, cd.ToggleMute(ctx, direct.ID, "alice", false, 0))
	chat, err = store.GetChat(ctx, direct.ID)
	require.NoError(t, err)
	assert.Nil(t, chat.Member("alice").MutedUntil)
}

func TestMarkChatRead(t *testing.T) {
	store := newMemoryStore()
	cd := NewChatDirectory(store, newTestLogger())
	ctx := context.Background()

	direct, err := cd.ResolveDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, cd.MarkChatRead(ctx, direct.ID, "bob"))
	chat, err := store.GetChat(ctx, direct.ID)
	require.NoError(t, err)
	assert.NotNil(t, chat.Member("bob").ReadAt)
	assert.Equal(t, 0, chat.UnreadCount)
}
