package worker

import (
	"context"

	"booking-service/internal/broker"
	"booking-service/internal/service"
	"booking-service/internal/util"
)

// NotificationWorker consumes settlement outcome events and dispatches
// guest notifications off the request path. Settlement never waits on
// this worker.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	notifications *service.NotificationService,
) *NotificationWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnBookingConfirmed(notifications.SendBookingConfirmation)
	eventHandler.OnBookingCancelled(notifications.SendBookingCancellation)

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	util.GetLogger().Info("Stopping notification worker")
	return w.consumer.Close()
}
