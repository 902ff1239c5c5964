package service

import (
	"context"
	"fmt"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// NotificationService sends guest-facing booking notifications. The mail
// transport is owned by the surrounding platform; this service renders
// and dispatches, and its failures never propagate into settlement.
type NotificationService struct {
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService() *NotificationService {
	return &NotificationService{
		logger: util.GetLogger(),
	}
}

// ConfirmationSubject renders the subject line for a confirmed booking
func ConfirmationSubject(bookingID int64) string {
	return fmt.Sprintf("Booking #%d confirmed", bookingID)
}

// SendBookingConfirmation notifies the guest their booking is confirmed
func (ns *NotificationService) SendBookingConfirmation(ctx context.Context, event *models.BookingConfirmedEvent) error {
	ns.logger.Info("Sending booking confirmation",
		zap.Int64("booking_id", event.BookingID),
		zap.Int64("transaction_id", event.TransactionID),
		zap.String("guest_email", event.GuestEmail),
		zap.String("subject", ConfirmationSubject(event.BookingID)))

	util.NotificationsSentTotal.WithLabelValues("confirmation").Inc()
	return nil
}

// SendBookingCancellation notifies the guest their booking was cancelled
func (ns *NotificationService) SendBookingCancellation(ctx context.Context, event *models.BookingCancelledEvent) error {
	ns.logger.Info("Sending booking cancellation",
		zap.Int64("booking_id", event.BookingID),
		zap.String("guest_email", event.GuestEmail),
		zap.String("reason", event.Reason))

	util.NotificationsSentTotal.WithLabelValues("cancellation").Inc()
	return nil
}
