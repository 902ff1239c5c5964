package service

import (
	"fmt"
	"time"

	"booking-service/internal/models"
)

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not intersect, so a
// checkout day can be another guest's check-in (same-day turnover).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// IsRoomAvailable reports whether a requested [checkIn, checkOut) stay is
// free given the room's existing bookings. Only PENDING and CONFIRMED
// bookings block; CANCELLED bookings never do. Pure function: the caller
// is responsible for the freshness of the booking list, and the store's
// locked create is the authority at write time.
func IsRoomAvailable(checkIn, checkOut time.Time, existing []models.Booking) bool {
	for _, b := range existing {
		if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusConfirmed {
			continue
		}
		if Overlaps(b.CheckIn, b.CheckOut, checkIn, checkOut) {
			return false
		}
	}
	return true
}

// ValidateStay rejects malformed stay requests before any state is
// touched: inverted or empty date ranges, non-positive adult counts,
// negative child counts, and parties over the room's capacity.
func ValidateStay(checkIn, checkOut time.Time, adults, children, capacity int) error {
	if !checkOut.After(checkIn) {
		return fmt.Errorf("%w: check_out must be after check_in", ErrInvalidInput)
	}
	if adults < 1 {
		return fmt.Errorf("%w: at least one adult required", ErrInvalidInput)
	}
	if children < 0 {
		return fmt.Errorf("%w: children must not be negative", ErrInvalidInput)
	}
	if capacity > 0 && adults+children > capacity {
		return fmt.Errorf("%w: party of %d exceeds room capacity %d", ErrInvalidInput, adults+children, capacity)
	}
	return nil
}

// StayNights lists the night-of dates a stay occupies, one per night of
// [checkIn, checkOut). Used for per-night hold keys.
func StayNights(checkIn, checkOut time.Time) []time.Time {
	var nights []time.Time
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}
