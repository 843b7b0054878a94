package service

import (
	"context"
	"time"

	"chatsink/internal/constants"

	"github.com/sirupsen/logrus"
)

// RetentionStore prunes aged message rows.
type RetentionStore interface {
	CleanupOldMessages(retentionDays int) error
}

// Janitor periodically removes messages past the retention horizon.
type Janitor struct {
	store         RetentionStore
	retentionDays int
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewJanitor(store RetentionStore, retentionDays, intervalHours int, logger *logrus.Logger) *Janitor {
	if intervalHours <= 0 {
		intervalHours = constants.DefaultCleanupIntervalHr
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	return &Janitor{
		store:         store,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(j.intervalHours) * time.Hour)
	defer ticker.Stop()

	j.logger.Info("Starting retention janitor")

	j.runCleanup()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Janitor context cancelled, stopping")
			return
		case <-j.stopCh:
			j.logger.Info("Janitor stop signal received, stopping")
			return
		case <-ticker.C:
			j.runCleanup()
		}
	}
}

func (j *Janitor) Stop() {
	close(j.stopCh)
}

func (j *Janitor) runCleanup() {
	j.logger.WithField("retention_days", j.retentionDays).Info("Running scheduled cleanup")

	if err := j.store.CleanupOldMessages(j.retentionDays); err != nil {
		j.logger.WithError(err).Error("Failed to cleanup old messages")
		return
	}
	j.logger.Info("Successfully completed cleanup")
}
