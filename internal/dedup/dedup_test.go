package dedup

import (
	"context"
	"testing"
	"time"

	"chatsink/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(now *time.Time) *memoryGate {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	g := NewMemoryGate(logger).(*memoryGate)
	g.now = func() time.Time { return *now }
	return g
}

func TestGateSeenAfterMark(t *testing.T) {
	now := time.Now()
	g := newTestGate(&now)
	ctx := context.Background()

	seen, err := g.Seen(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, g.MarkSeen(ctx, "k1", time.Hour))

	seen, err = g.Seen(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestGateExpiry(t *testing.T) {
	now := time.Now()
	g := newTestGate(&now)
	ctx := context.Background()

	require.NoError(t, g.MarkSeen(ctx, "k1", time.Hour))

	now = now.Add(time.Hour + time.Second)

	seen, err := g.Seen(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, seen, "entry past its TTL is treated as new")

	// The lazy expiry dropped the entry.
	g.mu.RLock()
	_, present := g.entries["k1"]
	g.mu.RUnlock()
	assert.False(t, present)
}

func TestGateSweep(t *testing.T) {
	now := time.Now()
	g := newTestGate(&now)
	ctx := context.Background()

	require.NoError(t, g.MarkSeen(ctx, "old", time.Minute))
	require.NoError(t, g.MarkSeen(ctx, "fresh", time.Hour))

	now = now.Add(30 * time.Minute)
	g.sweep()

	g.mu.RLock()
	defer g.mu.RUnlock()
	assert.NotContains(t, g.entries, "old")
	assert.Contains(t, g.entries, "fresh")
}

func TestEventKeyDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &models.InboundEvent{Sender: "alice", Content: "hi", SendingTime: &ts}
	b := &models.InboundEvent{Sender: "alice", Content: "hi", SendingTime: &ts}

	assert.Equal(t, EventKey(a, time.Now()), EventKey(b, time.Now()))
}

func TestEventKeyDiscriminates(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := &models.InboundEvent{Sender: "alice", Content: "hi", SendingTime: &ts}

	otherSender := &models.InboundEvent{Sender: "bob", Content: "hi", SendingTime: &ts}
	otherContent := &models.InboundEvent{Sender: "alice", Content: "hi!", SendingTime: &ts}
	laterTS := ts.Add(time.Second)
	otherTime := &models.InboundEvent{Sender: "alice", Content: "hi", SendingTime: &laterTS}

	now := time.Now()
	assert.NotEqual(t, EventKey(base, now), EventKey(otherSender, now))
	assert.NotEqual(t, EventKey(base, now), EventKey(otherContent, now))
	assert.NotEqual(t, EventKey(base, now), EventKey(otherTime, now))
}

func TestEventKeyIgnoresTransportID(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &models.InboundEvent{Sender: "alice", Content: "hi", SendingTime: &ts, MessageID: "env-1"}
	b := &models.InboundEvent{Sender: "alice", Content: "hi", SendingTime: &ts, MessageID: "env-2"}

	assert.Equal(t, EventKey(a, time.Now()), EventKey(b, time.Now()),
		"a redelivery under a fresh envelope id must collide on the same key")
}

func TestEventKeyDefaultsToIngestionTime(t *testing.T) {
	ingestedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := &models.InboundEvent{Sender: "alice", Content: "hi"}

	assert.Equal(t, EventKey(e, ingestedAt), EventKey(e, ingestedAt))
	assert.NotEqual(t, EventKey(e, ingestedAt), EventKey(e, ingestedAt.Add(time.Second)))
}
