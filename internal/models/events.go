package models

import "time"

// Event types
const (
	EventTypeBookingCreated   = "BOOKING_CREATED"
	EventTypeBookingConfirmed = "BOOKING_CONFIRMED"
	EventTypeBookingCancelled = "BOOKING_CANCELLED"
	EventTypePaymentSettled   = "PAYMENT_SETTLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCreatedEvent published when a PENDING booking is created
type BookingCreatedEvent struct {
	BaseEvent
	BookingID int64     `json:"booking_id"`
	HotelID   int64     `json:"hotel_id"`
	RoomID    *int64    `json:"room_id,omitempty"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
}

// BookingConfirmedEvent published when settlement confirms a booking.
// Consumed by the notification worker to send the guest confirmation.
type BookingConfirmedEvent struct {
	BaseEvent
	BookingID     int64  `json:"booking_id"`
	TransactionID int64  `json:"transaction_id"`
	GuestName     string `json:"guest_name"`
	GuestEmail    string `json:"guest_email"`
	TotalAmount   int64  `json:"total_amount"`
}

// BookingCancelledEvent published when settlement cancels a booking
type BookingCancelledEvent struct {
	BaseEvent
	BookingID     int64  `json:"booking_id"`
	TransactionID int64  `json:"transaction_id"`
	GuestEmail    string `json:"guest_email"`
	Reason        string `json:"reason"`
}

// PaymentSettledEvent published on every terminal settlement, success or
// failure, whether or not a booking is attached
type PaymentSettledEvent struct {
	BaseEvent
	TransactionID    int64  `json:"transaction_id"`
	BookingID        *int64 `json:"booking_id,omitempty"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	Status           string `json:"status"`
	TotalAmount      int64  `json:"total_amount"`
}
