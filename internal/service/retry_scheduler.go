package service

import (
	"context"
	"sync"
	"time"

	"chatsink/internal/errors"
	"chatsink/internal/metrics"
	"chatsink/internal/models"
	"chatsink/internal/privacy"
	"chatsink/internal/retry"

	"github.com/sirupsen/logrus"
)

// RetryHandler re-executes a failed ingestion attempt. The scheduler
// owns attempt counting; the handler only reports success or failure.
type RetryHandler func(ctx context.Context, task models.RetryTask) error

// DeadLetterHandler receives tasks dropped after exhausting their
// attempts. Callers that want durable dead-lettering plug one in; the
// default is log-and-drop.
type DeadLetterHandler func(task models.RetryTask, err error)

// RetryScheduler re-queues failed ingestion attempts with exponential
// backoff. Tasks are serializable values keyed by event identity, so a
// superseding success can cancel a pending retry.
type RetryScheduler struct {
	mu    sync.Mutex
	tasks map[string]models.RetryTask

	backoff      *retry.Backoff
	maxAttempts  int
	pollInterval time.Duration
	handler      RetryHandler
	deadLetter   DeadLetterHandler
	logger       *logrus.Logger
	now          func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewRetryScheduler(cfg models.RetryConfig, logger *logrus.Logger) *RetryScheduler {
	bc := retry.DefaultBackoffConfig()
	if cfg.BaseDelaySec > 0 {
		bc.InitialDelay = cfg.BaseDelay()
	}
	if cfg.Multiplier > 0 {
		bc.Multiplier = cfg.Multiplier
	}
	if cfg.MaxAttempts > 0 {
		bc.MaxAttempts = cfg.MaxAttempts
	}

	pollInterval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}

	return &RetryScheduler{
		tasks:        make(map[string]models.RetryTask),
		backoff:      retry.NewBackoff(bc),
		maxAttempts:  bc.MaxAttempts,
		pollInterval: pollInterval,
		logger:       logger,
		now:          time.Now,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// SetHandler wires the re-ingestion callback. Must be called before
// Start.
func (s *RetryScheduler) SetHandler(h RetryHandler) {
	s.handler = h
}

// SetDeadLetter wires an optional sink for exhausted tasks.
func (s *RetryScheduler) SetDeadLetter(h DeadLetterHandler) {
	s.deadLetter = h
}

// Schedule enrolls an event for retry. The delay for attempt n is
// base * multiplier^(n-1); with defaults that is 5s, 15s, 45s.
// Re-scheduling an already pending key replaces the pending task.
func (s *RetryScheduler) Schedule(event models.InboundEvent, key string, attempt int) {
	if attempt < 1 {
		attempt = 1
	}
	task := models.RetryTask{
		Key:         key,
		Event:       event,
		Attempt:     attempt,
		NextAttempt: s.now().Add(s.backoff.DelayFor(attempt)),
	}

	s.mu.Lock()
	s.tasks[key] = task
	pending := len(s.tasks)
	s.mu.Unlock()

	metrics.SetGauge("retry_tasks_pending", float64(pending), nil, "Retry tasks awaiting execution")
	s.logger.WithFields(logrus.Fields{
		"key":          key,
		"attempt":      attempt,
		"next_attempt": task.NextAttempt,
	}).Info("Scheduled ingestion retry")
}

// Cancel drops a pending retry by event key, typically because a
// redelivered copy of the event already succeeded.
func (s *RetryScheduler) Cancel(key string) {
	s.mu.Lock()
	_, existed := s.tasks[key]
	delete(s.tasks, key)
	pending := len(s.tasks)
	s.mu.Unlock()

	if existed {
		metrics.SetGauge("retry_tasks_pending", float64(pending), nil, "Retry tasks awaiting execution")
		s.logger.WithField("key", key).Debug("Cancelled pending retry")
	}
}

// Pending reports the number of enrolled tasks.
func (s *RetryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Start runs the poll loop until Stop or context cancellation.
func (s *RetryScheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *RetryScheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *RetryScheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *RetryScheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []models.RetryTask
	for key, task := range s.tasks {
		if !task.NextAttempt.After(now) {
			due = append(due, task)
			delete(s.tasks, key)
		}
	}
	pending := len(s.tasks)
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}
	metrics.SetGauge("retry_tasks_pending", float64(pending), nil, "Retry tasks awaiting execution")

	for _, task := range due {
		s.execute(ctx, task)
	}
}

func (s *RetryScheduler) execute(ctx context.Context, task models.RetryTask) {
	entry := s.logger.WithFields(logrus.Fields{
		"key":     task.Key,
		"attempt": task.Attempt,
		"sender":  privacy.MaskIdentity(task.Event.Sender),
	})

	err := s.handler(ctx, task)
	if err == nil {
		metrics.IncrementCounter("retry_success_total", nil, "Ingestion retries that succeeded")
		entry.Info("Ingestion retry succeeded")
		return
	}

	metrics.IncrementCounter("retry_failure_total", nil, "Ingestion retries that failed")

	// A non-retryable failure ends the chain regardless of remaining
	// attempts; only transient errors earn a reschedule.
	if !errors.IsRetryable(err) {
		entry.WithError(err).Error("Ingestion retry failed with a non-retryable error, dropping event")
		metrics.IncrementCounter("retry_abandoned_total", nil, "Events dropped after a non-retryable retry failure")
		if s.deadLetter != nil {
			s.deadLetter(task, err)
		}
		return
	}

	if task.Attempt >= s.maxAttempts {
		entry.WithError(err).Error("Ingestion permanently failed, dropping event")
		metrics.IncrementCounter("retry_exhausted_total", nil, "Events dropped after exhausting retries")
		if s.deadLetter != nil {
			s.deadLetter(task, err)
		}
		return
	}

	entry.WithError(err).Warn("Ingestion retry failed, rescheduling")
	s.Schedule(task.Event, task.Key, task.Attempt+1)
}
