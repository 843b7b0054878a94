package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"chatsink/internal/models"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

// Hub fans notifications out to websocket subscribers. Publishing
// never blocks on a slow consumer; a subscriber that cannot keep up
// with its buffer is disconnected.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	logger      *logrus.Logger
}

type subscriber struct {
	msgs      chan []byte
	closeSlow func()
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger,
	}
}

// Publish serializes the notification once and queues it on every
// subscriber.
func (h *Hub) Publish(ctx context.Context, notification *models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subscribers {
		select {
		case s.msgs <- payload:
		default:
			go s.closeSlow()
		}
	}
	return nil
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request to a websocket and streams
// notifications until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to accept websocket subscriber")
		return
	}
	defer conn.CloseNow()

	err = h.subscribe(r.Context(), conn)
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return
	}
	if err != nil && r.Context().Err() == nil {
		h.logger.WithError(err).Debug("Websocket subscriber closed")
	}
}

func (h *Hub) subscribe(ctx context.Context, conn *websocket.Conn) error {
	ctx = conn.CloseRead(ctx)

	s := &subscriber{
		msgs: make(chan []byte, subscriberBuffer),
		closeSlow: func() {
			conn.Close(websocket.StatusPolicyViolation, "subscriber too slow to keep up")
		},
	}
	h.addSubscriber(s)
	defer h.removeSubscriber(s)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-s.msgs:
			if err := writeTimed(ctx, conn, payload); err != nil {
				return err
			}
		}
	}
}

func writeTimed(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func (h *Hub) addSubscriber(s *subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()
	h.logger.WithField("subscribers", count).Info("Websocket subscriber connected")
}

func (h *Hub) removeSubscriber(s *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	count := len(h.subscribers)
	h.mu.Unlock()
	h.logger.WithField("subscribers", count).Info("Websocket subscriber disconnected")
}
