package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"chatsink/internal/metrics"
	"chatsink/internal/models"

	"github.com/sirupsen/logrus"
)

// Gate answers whether an inbound event has already been processed
// within the dedup window. Marking is best-effort under races: two
// identical events hitting Seen concurrently may both pass, which the
// downstream store tolerates.
type Gate interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
}

type memoryGate struct {
	mu      sync.RWMutex
	entries map[string]time.Time // key -> expiry
	logger  *logrus.Logger
	now     func() time.Time
}

// NewMemoryGate creates an in-process gate. Expired entries are
// dropped lazily on read and in bulk by RunJanitor.
func NewMemoryGate(logger *logrus.Logger) Gate {
	return &memoryGate{
		entries: make(map[string]time.Time),
		logger:  logger,
		now:     time.Now,
	}
}

func (g *memoryGate) Seen(ctx context.Context, key string) (bool, error) {
	g.mu.RLock()
	expiry, ok := g.entries[key]
	g.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if g.now().After(expiry) {
		g.mu.Lock()
		// Re-check under the write lock: MarkSeen may have refreshed it.
		if exp, ok := g.entries[key]; ok && g.now().After(exp) {
			delete(g.entries, key)
		}
		g.mu.Unlock()
		return false, nil
	}

	return true, nil
}

func (g *memoryGate) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	g.mu.Lock()
	g.entries[key] = g.now().Add(ttl)
	g.mu.Unlock()
	return nil
}

// RunJanitor periodically sweeps expired entries until the context is
// cancelled. Only the memory-backed gate needs this.
func RunJanitor(ctx context.Context, gate Gate, interval time.Duration) {
	g, ok := gate.(*memoryGate)
	if !ok {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *memoryGate) sweep() {
	now := g.now()
	removed := 0

	g.mu.Lock()
	for key, expiry := range g.entries {
		if now.After(expiry) {
			delete(g.entries, key)
			removed++
		}
	}
	remaining := len(g.entries)
	g.mu.Unlock()

	metrics.SetGauge("dedup_entries", float64(remaining), nil, "Live dedup window entries")
	if removed > 0 {
		g.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": remaining,
		}).Debug("Swept expired dedup entries")
	}
}

// EventKey derives the dedup key from sender, content and origination
// time. The transport's own message identifier is deliberately not
// part of the key: duplicate deliveries can arrive under fresh
// envelope ids with identical content.
func EventKey(event *models.InboundEvent, ingestedAt time.Time) string {
	ts := event.EffectiveSendingTime(ingestedAt)
	h := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%d", event.Sender, event.Content, ts.UnixNano()))
	return hex.EncodeToString(h[:])
}
