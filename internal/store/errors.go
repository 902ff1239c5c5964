package store

import "errors"

var (
	// ErrRoomUnavailable is returned when a requested date range overlaps
	// an existing PENDING or CONFIRMED booking for the same room. It is
	// raised inside the create transaction, so concurrent writers observe
	// it instead of double-booking.
	ErrRoomUnavailable = errors.New("room unavailable for requested dates")

	// ErrTransactionNotFound is returned when no transaction matches a
	// gateway order id. The reconciler must never fabricate one.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrBookingHasActivePayment is returned when a booking already has a
	// PENDING or SUCCESS transaction. One payment per booking: a stale
	// sibling must never be able to settle against it later.
	ErrBookingHasActivePayment = errors.New("booking already has an active payment")

	ErrHotelNotFound   = errors.New("hotel not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrCouponNotFound  = errors.New("coupon not found")
)
