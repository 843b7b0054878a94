package models

import (
	"sort"
	"strings"
	"time"
)

// MuteForever is the far-future sentinel stored for an indefinite mute.
var MuteForever = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Chat is a conversation. Direct chats are keyed by the sorted
// participant pair and always hold exactly two members; group chats
// are created explicitly and keep at least one admin while non-empty.
type Chat struct {
	ID            int64                  `json:"id"`
	ChatKey       string                 `json:"chatKey"`
	Name          string                 `json:"name,omitempty"`
	IsGroup       bool                   `json:"isGroup"`
	LastMessageID *int64                 `json:"lastMessageId,omitempty"`
	UnreadCount   int                    `json:"unreadCount"`
	Archived      bool                   `json:"archived"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Members       []ChatMember           `json:"members,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// ChatMember is one (chat, participant) membership row.
type ChatMember struct {
	ChatID      int64      `json:"chatId"`
	Participant string     `json:"participant"`
	IsAdmin     bool       `json:"isAdmin"`
	MutedUntil  *time.Time `json:"mutedUntil,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	JoinedAt    time.Time  `json:"joinedAt"`
}

// RemovalResult describes the outcome of a membership removal:
// whether the chat was deleted because it emptied, and which
// participant (if any) was promoted to admin to keep the group
// governed.
type RemovalResult struct {
	Chat      *Chat  `json:"chat,omitempty"`
	Deleted   bool   `json:"deleted"`
	Promoted  string `json:"promoted,omitempty"`
	Remaining int    `json:"remaining"`
}

// Participants returns the member identities in join order.
func (c *Chat) Participants() []string {
	out := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		out = append(out, m.Participant)
	}
	return out
}

// HasAdmin reports whether any member holds the admin flag.
func (c *Chat) HasAdmin() bool {
	for _, m := range c.Members {
		if m.IsAdmin {
			return true
		}
	}
	return false
}

// Member returns the membership row for a participant, or nil.
func (c *Chat) Member(participant string) *ChatMember {
	for i := range c.Members {
		if c.Members[i].Participant == participant {
			return &c.Members[i]
		}
	}
	return nil
}

// DirectChatKey synthesizes the identity of a direct chat from its
// unordered participant pair. Sorting makes (a,b) and (b,a) collide
// on the same key.
func DirectChatKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "|")
}
