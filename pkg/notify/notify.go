// Package notify delivers the core's outbound notifications to
// interested consumers. The websocket hub fans out to connected
// subscribers; the log publisher is the no-transport fallback.
package notify

import (
	"context"
	"encoding/json"

	"chatsink/internal/models"

	"github.com/sirupsen/logrus"
)

// Publisher is the fan-out port the core emits notifications through.
type Publisher interface {
	Publish(ctx context.Context, notification *models.Notification) error
}

// LogPublisher writes notifications to the structured log. Useful for
// deployments without live consumers and as the default mode.
type LogPublisher struct {
	logger *logrus.Logger
}

func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, notification *models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	p.logger.WithFields(logrus.Fields{
		"kind":    notification.Kind,
		"chat_id": notification.ChatID,
		"payload": string(payload),
	}).Info("Notification emitted")
	return nil
}
