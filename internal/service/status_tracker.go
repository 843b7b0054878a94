package service

import (
	"context"
	"fmt"
	"time"

	"chatsink/internal/errors"
	"chatsink/internal/models"
	"chatsink/internal/validation"

	"github.com/sirupsen/logrus"
)

// StatusTracker enforces the delivery lifecycle of a message
// (pending -> sent -> delivered -> read, failed from any non-terminal
// state) and owns its reaction set. Every applied change is handed to
// the fan-out notifier.
type StatusTracker struct {
	store    MessageStore
	notifier Notifier
	logger   *logrus.Logger
	now      func() time.Time
}

func NewStatusTracker(store MessageStore, notifier Notifier, logger *logrus.Logger) *StatusTracker {
	return &StatusTracker{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// MarkRead advances a message to read, stamping read_at on the first
// transition. Re-reading an already-read message is a no-op.
func (st *StatusTracker) MarkRead(ctx context.Context, messageID int64) (*models.MessageSnapshot, error) {
	return st.UpdateStatus(ctx, messageID, models.MessageStatusRead, "")
}

// UpdateStatus applies a lifecycle transition and returns the
// resulting snapshot. Regressions are idempotent no-ops; leaving the
// read state is rejected; failed records the error detail without
// discarding prior content.
func (st *StatusTracker) UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus, errorDetail string) (*models.MessageSnapshot, error) {
	if !validStatus(status) {
		return nil, errors.NewValidationError("status", string(status), "unknown status")
	}

	msg, err := st.requireMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if msg.Status == models.MessageStatusRead && status != models.MessageStatusRead {
		return nil, errors.NewDomainInvariantError("read-terminal",
			fmt.Sprintf("message %d is read and cannot move to %s", messageID, status))
	}

	switch {
	case status == models.MessageStatusFailed:
		if msg.Metadata == nil {
			msg.Metadata = map[string]interface{}{}
		}
		if errorDetail != "" {
			msg.Metadata["error_detail"] = errorDetail
		}
		msg.Status = models.MessageStatusFailed

	case status.Advances(msg.Status):
		msg.Status = status
		if status == models.MessageStatusRead && msg.ReadAt == nil {
			readAt := st.now().UTC()
			msg.ReadAt = &readAt
		}

	default:
		// Same or earlier stage, or failed -> anything: idempotent.
		snap := msg.Snapshot()
		return &snap, nil
	}

	if err := st.store.UpdateMessageOverlay(ctx, messageID, msg.Status, msg.ReadAt, msg.Metadata); err != nil {
		return nil, err
	}

	snap := msg.Snapshot()
	st.publish(ctx, models.NotificationStatusChanged, snap, "")
	return &snap, nil
}

// InitializeInbound moves a freshly persisted inbound message to
// delivered. Inbound events arrive externally confirmed; there is no
// pending window to report. No notification is emitted here, creation
// fan-out covers it.
func (st *StatusTracker) InitializeInbound(ctx context.Context, msg *models.Message) error {
	if !models.MessageStatusDelivered.Advances(msg.Status) {
		return nil
	}
	if err := st.store.UpdateMessageOverlay(ctx, msg.ID, models.MessageStatusDelivered, msg.ReadAt, msg.Metadata); err != nil {
		return err
	}
	msg.Status = models.MessageStatusDelivered
	return nil
}

// AddReaction upserts a participant's reaction: at most one token per
// participant, re-reacting replaces the prior token.
func (st *StatusTracker) AddReaction(ctx context.Context, messageID int64, participant, token string) (*models.MessageSnapshot, error) {
	if err := validation.ValidateParticipantID(participant); err != nil {
		return nil, err
	}
	if err := validation.ValidateReactionToken(token); err != nil {
		return nil, err
	}

	msg, err := st.requireMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if msg.Reactions == nil {
		msg.Reactions = map[string]string{}
	}
	if msg.Reactions[participant] == token {
		snap := msg.Snapshot()
		return &snap, nil
	}
	msg.Reactions[participant] = token

	if err := st.store.SetMessageReactions(ctx, messageID, msg.Reactions); err != nil {
		return nil, err
	}

	snap := msg.Snapshot()
	st.publish(ctx, models.NotificationReactionChanged, snap, participant)
	return &snap, nil
}

// RemoveReaction clears a participant's reaction. Removing an absent
// reaction succeeds silently.
func (st *StatusTracker) RemoveReaction(ctx context.Context, messageID int64, participant string) (*models.MessageSnapshot, error) {
	if err := validation.ValidateParticipantID(participant); err != nil {
		return nil, err
	}

	msg, err := st.requireMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if _, ok := msg.Reactions[participant]; !ok {
		snap := msg.Snapshot()
		return &snap, nil
	}
	delete(msg.Reactions, participant)

	if err := st.store.SetMessageReactions(ctx, messageID, msg.Reactions); err != nil {
		return nil, err
	}

	snap := msg.Snapshot()
	st.publish(ctx, models.NotificationReactionChanged, snap, participant)
	return &snap, nil
}

func (st *StatusTracker) requireMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	msg, err := st.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return nil, errors.NewNotFoundError("message", fmt.Sprintf("%d", messageID))
	}
	return msg, nil
}

// publish hands a change to the notifier. Fan-out failure never fails
// the mutation that already persisted.
func (st *StatusTracker) publish(ctx context.Context, kind models.NotificationKind, snap models.MessageSnapshot, participant string) {
	if st.notifier == nil {
		return
	}
	n := models.NewNotification(kind, snap, participant, st.now().UTC())
	if err := st.notifier.Publish(ctx, &n); err != nil {
		st.logger.WithError(err).WithFields(logrus.Fields{
			"kind":       kind,
			"message_id": snap.MessageID,
		}).Warn("Failed to publish notification")
	}
}

func validStatus(s models.MessageStatus) bool {
	switch s {
	case models.MessageStatusPending, models.MessageStatusSent,
		models.MessageStatusDelivered, models.MessageStatusRead,
		models.MessageStatusFailed:
		return true
	}
	return false
}
