package service

import (
	"context"
	"fmt"
	"time"

	"chatsink/internal/dedup"
	"chatsink/internal/errors"
	"chatsink/internal/metrics"
	"chatsink/internal/models"
	"chatsink/internal/privacy"
	"chatsink/internal/validation"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CompletionCallback observes the final disposition of an ingestion
// attempt chain. Fire-and-forget callers ignore it; tests use it to
// await async outcomes.
type CompletionCallback func(key string, err error)

// IngestionEngine orchestrates one inbound event end to end: dedup
// check, chat resolution, media dispatch, persistence, status
// initialization and fan-out. Failures past the dedup gate enroll the
// event for retry when the error class warrants it.
type IngestionEngine struct {
	gate      dedup.Gate
	directory *ChatDirectory
	pipeline  MediaDispatcher
	store     MessageStore
	tracker   *StatusTracker
	notifier  Notifier
	scheduler *RetryScheduler
	dedupTTL  time.Duration
	logger    *logrus.Logger
	errLogger *errors.Logger
	tracer    trace.Tracer
	now       func() time.Time

	onComplete CompletionCallback
}

func NewIngestionEngine(
	gate dedup.Gate,
	directory *ChatDirectory,
	pipeline MediaDispatcher,
	store MessageStore,
	tracker *StatusTracker,
	notifier Notifier,
	scheduler *RetryScheduler,
	dedupTTL time.Duration,
	logger *logrus.Logger,
) *IngestionEngine {
	e := &IngestionEngine{
		gate:      gate,
		directory: directory,
		pipeline:  pipeline,
		store:     store,
		tracker:   tracker,
		notifier:  notifier,
		scheduler: scheduler,
		dedupTTL:  dedupTTL,
		logger:    logger,
		errLogger: errors.WrapLogger(logger),
		tracer:    otel.Tracer("chatsink/ingest"),
		now:       time.Now,
	}
	if scheduler != nil {
		scheduler.SetHandler(e.handleRetry)
	}
	return e
}

// SetCompletionCallback registers an observer for final ingestion
// outcomes. Must be set before events flow.
func (e *IngestionEngine) SetCompletionCallback(cb CompletionCallback) {
	e.onComplete = cb
}

// Ingest runs the full pipeline for a freshly delivered event.
// Duplicates within the dedup window return nil without side effects.
// Validation failures surface synchronously; retryable failures past
// the gate are enrolled with the scheduler and reported as nil to the
// caller — inbound delivery is fire-and-forget.
func (e *IngestionEngine) Ingest(ctx context.Context, event *models.InboundEvent) error {
	ctx, span := e.tracer.Start(ctx, "ingest.event")
	defer span.End()

	if err := validation.ValidateInboundEvent(event); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		metrics.IncrementCounter("ingest_rejected_total", map[string]string{"reason": "validation"}, "Events rejected before ingestion")
		return err
	}

	ingestedAt := e.now().UTC()
	key := dedup.EventKey(event, ingestedAt)
	span.SetAttributes(
		attribute.String("event.type", string(event.Type)),
		attribute.String("event.key", key),
	)

	seen, err := e.gate.Seen(ctx, key)
	if err != nil {
		// Dedup store trouble is fatal for this event; retrying here
		// could amplify a duplicate storm.
		span.SetStatus(codes.Error, "dedup check failed")
		return fmt.Errorf("dedup check failed: %w", err)
	}
	if seen {
		metrics.IncrementCounter("ingest_duplicates_total", nil, "Events suppressed by the dedup window")
		e.logger.WithField("key", key).Debug("Suppressed duplicate event")
		span.SetAttributes(attribute.Bool("event.duplicate", true))
		return nil
	}

	if err := e.gate.MarkSeen(ctx, key, e.dedupTTL); err != nil {
		span.SetStatus(codes.Error, "dedup mark failed")
		return fmt.Errorf("dedup mark failed: %w", err)
	}

	err = e.process(ctx, event, ingestedAt)
	return e.settle(ctx, event, key, 1, err)
}

// handleRetry re-executes a previously failed event. The dedup gate is
// not consulted again: the key was marked on first sight, and any
// interim redelivery was suppressed by that mark while this task held
// the only live copy.
func (e *IngestionEngine) handleRetry(ctx context.Context, task models.RetryTask) error {
	ctx, span := e.tracer.Start(ctx, "ingest.retry")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.key", task.Key),
		attribute.Int("event.attempt", task.Attempt),
	)

	event := task.Event
	err := e.process(ctx, &event, e.now().UTC())
	if err == nil {
		e.complete(task.Key, nil)
		return nil
	}
	span.SetStatus(codes.Error, err.Error())

	// The scheduler distinguishes terminal from transient failures by
	// the error class; this side only settles the completion callback.
	if !errors.IsRetryable(err) {
		e.errLogger.LogError(err, "Retried event failed permanently", logrus.Fields{"key": task.Key})
		e.complete(task.Key, err)
		return err
	}
	if task.Attempt >= e.scheduler.maxAttempts {
		e.complete(task.Key, err)
	}
	return err
}

// process runs chat resolution through fan-out for one event.
func (e *IngestionEngine) process(ctx context.Context, event *models.InboundEvent, ingestedAt time.Time) error {
	chat, err := e.directory.ResolveForEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("chat resolution failed: %w", err)
	}

	msg, err := e.pipeline.Dispatch(ctx, event, ingestedAt)
	if err != nil {
		return err
	}
	msg.ChatID = chat.ID

	created, err := e.store.CreateMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("message persistence failed: %w", err)
	}

	// Inbound events arrive externally confirmed.
	if err := e.tracker.InitializeInbound(ctx, created); err != nil {
		return fmt.Errorf("status initialization failed: %w", err)
	}

	if e.notifier != nil {
		n := models.NewNotification(models.NotificationMessageCreated, created.Snapshot(), "", e.now().UTC())
		if err := e.notifier.Publish(ctx, &n); err != nil {
			e.logger.WithError(err).WithField("message_id", created.ID).
				Warn("Failed to publish creation notification")
		}
	}

	metrics.IncrementCounter("ingest_messages_total", map[string]string{"type": string(created.Type)}, "Messages persisted by the ingestion engine")
	e.logger.WithFields(logrus.Fields{
		"message_id": created.ID,
		"chat_id":    created.ChatID,
		"type":       created.Type,
		"sender":     privacy.MaskIdentity(created.Sender),
	}).Info("Ingested message")

	return nil
}

// settle decides what a first-attempt failure means: reject outright,
// enroll for retry, or report success.
func (e *IngestionEngine) settle(ctx context.Context, event *models.InboundEvent, key string, attempt int, err error) error {
	if err == nil {
		// A pending retry for this key is superseded.
		if e.scheduler != nil {
			e.scheduler.Cancel(key)
		}
		e.complete(key, nil)
		return nil
	}

	if !errors.IsRetryable(err) {
		metrics.IncrementCounter("ingest_rejected_total", map[string]string{"reason": string(errors.GetCode(err))}, "Events rejected before ingestion")
		e.complete(key, err)
		return err
	}

	if e.scheduler == nil {
		e.complete(key, err)
		return err
	}

	e.errLogger.LogRetryableError(err, "Ingestion failed, enrolling for retry", logrus.Fields{"key": key})
	e.scheduler.Schedule(*event, key, attempt)
	return nil
}

func (e *IngestionEngine) complete(key string, err error) {
	if e.onComplete != nil {
		e.onComplete(key, err)
	}
}
