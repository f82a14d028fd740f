package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cart-service/internal/models"
)

// StreamCarts holds every cart.* event.
const StreamCarts = "CART_EVENTS"

// CartEvent is the payload of a cart domain event.
type CartEvent struct {
	EventID   string                 `json:"eventId"`
	EventType string                 `json:"eventType"`
	TenantID  string                 `json:"tenantId"`
	SessionID string                 `json:"sessionId"`
	Timestamp time.Time              `json:"timestamp"`
	ItemCount int                    `json:"itemCount"`
	Subtotal  decimal.Decimal        `json:"subtotal"`
	Total     decimal.Decimal        `json:"total"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// streamPublisher is the part of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher publishes cart events asynchronously.
type Publisher struct {
	js      streamPublisher
	timeout time.Duration
	logger  *logrus.Entry
}

// NewPublisher creates a publisher on nc and makes sure the cart stream exists.
func NewPublisher(nc *nats.Conn, logger *logrus.Entry) (*Publisher, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamCarts,
		Subjects:  []string{"cart.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour * 7, // 7 days
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to ensure cart stream (may already exist)")
	}

	return newPublisher(js, logger), nil
}

func newPublisher(js streamPublisher, logger *logrus.Entry) *Publisher {
	return &Publisher{
		js:      js,
		timeout: 10 * time.Second,
		logger:  logger.WithField("component", "cart-events"),
	}
}

// PublishCartEvent publishes the event in the background; failures are logged.
func (p *Publisher) PublishCartEvent(_ context.Context, eventType string, c models.Cart, data map[string]interface{}) {
	event := CartEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		TenantID:  c.TenantID,
		SessionID: c.SessionID,
		Timestamp: time.Now().UTC(),
		ItemCount: c.ItemCount,
		Subtotal:  c.Subtotal,
		Total:     c.Total,
		Data:      data,
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.publish(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"tenantID":  event.TenantID,
			}).WithError(err).Error("Failed to publish cart event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"eventType": event.EventType,
			"tenantID":  event.TenantID,
			"itemCount": event.ItemCount,
		}).Debug("Cart event published")
	}()
}

func (p *Publisher) publish(ctx context.Context, event CartEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, event.EventType, payload, jetstream.WithMsgID(event.EventID)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}
	return nil
}
