package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

// ProductRevalidator refreshes stored carts holding a product.
type ProductRevalidator interface {
	RevalidateProduct(ctx context.Context, tenantID, productID string) (int, error)
}

// ProductEvent represents a product change event.
type ProductEvent struct {
	EventType string    `json:"eventType"`
	TenantID  string    `json:"tenantId"`
	Timestamp time.Time `json:"timestamp"`
	ProductID string    `json:"productId"`
	Status    string    `json:"status,omitempty"`
}

// InventoryEvent represents an inventory change event.
type InventoryEvent struct {
	EventType string          `json:"eventType"`
	TenantID  string          `json:"tenantId"`
	Timestamp time.Time       `json:"timestamp"`
	Items     []InventoryItem `json:"items"`
}

// InventoryItem represents a product with stock info.
type InventoryItem struct {
	ProductID    string `json:"productId"`
	SKU          string `json:"sku"`
	CurrentStock int    `json:"currentStock"`
}

// ProductEventSubscriber revalidates carts when products or stock change.
type ProductEventSubscriber struct {
	js           jetstream.JetStream
	revalidator  ProductRevalidator
	consumerName string
	logger       *logrus.Entry
}

// NewProductEventSubscriber creates a subscriber on nc.
func NewProductEventSubscriber(nc *nats.Conn, revalidator ProductRevalidator, logger *logrus.Entry) (*ProductEventSubscriber, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	hostname, _ := os.Hostname()
	return &ProductEventSubscriber{
		js:           js,
		revalidator:  revalidator,
		consumerName: fmt.Sprintf("cart-revalidator-%s", hostname),
		logger:       logger.WithField("component", "product_subscriber"),
	}, nil
}

// Start begins listening for product and inventory events.
func (s *ProductEventSubscriber) Start(ctx context.Context) error {
	s.ensureStreams(ctx)

	go s.consume(ctx, "PRODUCT_EVENTS", "product.>", s.consumerName+"-products", s.handleProductEvent)
	go s.consume(ctx, "INVENTORY_EVENTS", "inventory.>", s.consumerName+"-inventory", s.handleInventoryEvent)

	s.logger.Info("Product event subscriber started")
	return nil
}

func (s *ProductEventSubscriber) ensureStreams(ctx context.Context) {
	streams := map[string]string{
		"PRODUCT_EVENTS":   "product.>",
		"INVENTORY_EVENTS": "inventory.>",
	}
	for name, subject := range streams {
		_, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      name,
			Subjects:  []string{subject},
			Retention: jetstream.LimitsPolicy,
			MaxAge:    24 * time.Hour * 7,
			Storage:   jetstream.FileStorage,
			Replicas:  1,
		})
		if err != nil {
			s.logger.WithError(err).WithField("stream", name).Warn("Could not create stream")
		}
	}
}

func (s *ProductEventSubscriber) consume(ctx context.Context, stream, subject, durable string, handle func(context.Context, []byte) error) {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		s.logger.WithError(err).WithField("stream", stream).Warn("Failed to create consumer")
		return
	}

	msgs, err := consumer.Messages()
	if err != nil {
		s.logger.WithError(err).WithField("stream", stream).Warn("Failed to get messages iterator")
		return
	}

	go func() {
		<-ctx.Done()
		msgs.Stop()
	}()

	for {
		msg, err := msgs.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).WithField("stream", stream).Error("Error getting next message")
			time.Sleep(time.Second)
			continue
		}

		if err := handle(ctx, msg.Data()); err != nil {
			s.logger.WithError(err).WithField("subject", msg.Subject()).Error("Error handling event")
			_ = msg.Nak()
		} else {
			_ = msg.Ack()
		}
	}
}

func (s *ProductEventSubscriber) handleProductEvent(ctx context.Context, data []byte) error {
	var event ProductEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal product event: %w", err)
	}

	switch event.EventType {
	case "product.updated", "product.deleted", "product.archived", "product.variants_updated":
	default:
		return nil
	}

	touched, err := s.revalidator.RevalidateProduct(ctx, event.TenantID, event.ProductID)
	if err != nil {
		return fmt.Errorf("failed to revalidate carts for product %s: %w", event.ProductID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"product_id": event.ProductID,
		"tenant_id":  event.TenantID,
		"carts":      touched,
	}).Info("Processed product event")
	return nil
}

func (s *ProductEventSubscriber) handleInventoryEvent(ctx context.Context, data []byte) error {
	var event InventoryEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal inventory event: %w", err)
	}

	switch event.EventType {
	case "inventory.out_of_stock", "inventory.low_stock", "inventory.restocked", "inventory.adjusted":
	default:
		return nil
	}

	var failed error
	for _, item := range event.Items {
		if _, err := s.revalidator.RevalidateProduct(ctx, event.TenantID, item.ProductID); err != nil {
			s.logger.WithError(err).WithField("product_id", item.ProductID).Warn("Failed to revalidate carts")
			failed = err
		}
	}
	return failed
}
