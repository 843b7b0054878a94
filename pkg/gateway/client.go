// Package gateway is the outbound transport client. The core never
// sends messages to the network itself; a higher layer submits
// outgoing content here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatsink/internal/constants"
	"chatsink/internal/models"

	"github.com/sirupsen/logrus"
)

// Sender submits outgoing content to the transport network.
type Sender interface {
	Send(ctx context.Context, chatID string, msgType models.MessageType, content, media, mimeType string) error
}

// SendRequest is the wire payload submitted to the transport.
type SendRequest struct {
	ChatID   string             `json:"chatId"`
	Type     models.MessageType `json:"type"`
	Content  string             `json:"content,omitempty"`
	Media    string             `json:"media,omitempty"`
	MimeType string             `json:"mimetype,omitempty"`
}

// Client is an HTTP JSON client for the transport's send endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg models.GatewayConfig, logger *logrus.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(constants.DefaultGatewayTimeoutSec) * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Send(ctx context.Context, chatID string, msgType models.MessageType, content, media, mimeType string) error {
	payload, err := json.Marshal(SendRequest{
		ChatID:   chatID,
		Type:     msgType,
		Content:  content,
		Media:    media,
		MimeType: mimeType,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := c.baseURL + "/api/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("transport rejected send (status %d): %s", resp.StatusCode, string(body))
	}

	c.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"type":    msgType,
	}).Debug("Submitted outbound message")

	return nil
}
