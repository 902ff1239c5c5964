package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishBookingCreated publishes a BookingCreated event
func (ep *EventPublisher) PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error {
	key := fmt.Sprintf("booking-%d", event.BookingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBookingConfirmed publishes a BookingConfirmed event
func (ep *EventPublisher) PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error {
	key := fmt.Sprintf("booking-%d", event.BookingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBookingCancelled publishes a BookingCancelled event
func (ep *EventPublisher) PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error {
	key := fmt.Sprintf("booking-%d", event.BookingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentSettled publishes a PaymentSettled event
func (ep *EventPublisher) PublishPaymentSettled(ctx context.Context, event *models.PaymentSettledEvent) error {
	key := fmt.Sprintf("txn-%d", event.TransactionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	onBookingConfirmed func(context.Context, *models.BookingConfirmedEvent) error
	onBookingCancelled func(context.Context, *models.BookingCancelledEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnBookingConfirmed registers a handler for BookingConfirmed events
func (eh *EventHandler) OnBookingConfirmed(handler func(context.Context, *models.BookingConfirmedEvent) error) {
	eh.onBookingConfirmed = handler
}

// OnBookingCancelled registers a handler for BookingCancelled events
func (eh *EventHandler) OnBookingCancelled(handler func(context.Context, *models.BookingCancelledEvent) error) {
	eh.onBookingCancelled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeBookingConfirmed:
		if eh.onBookingConfirmed != nil {
			var event models.BookingConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BookingConfirmed event: %w", err)
			}
			return eh.onBookingConfirmed(ctx, &event)
		}

	case models.EventTypeBookingCancelled:
		if eh.onBookingCancelled != nil {
			var event models.BookingCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BookingCancelled event: %w", err)
			}
			return eh.onBookingCancelled(ctx, &event)
		}

	default:
		util.GetLogger().Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
