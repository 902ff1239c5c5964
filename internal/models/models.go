package models

import "time"

// Location represents a city/region a hotel belongs to
type Location struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	State string `db:"state" json:"state"`
}

// Hotel represents a property in the chain
type Hotel struct {
	ID         int64     `db:"id" json:"id"`
	LocationID int64     `db:"location_id" json:"location_id"`
	Name       string    `db:"name" json:"name"`
	GSTIN      string    `db:"gstin" json:"gstin,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Room represents a bookable room within a hotel
type Room struct {
	ID          int64     `db:"id" json:"id"`
	HotelID     int64     `db:"hotel_id" json:"hotel_id"`
	Name        string    `db:"name" json:"name"`
	NightlyRate int64     `db:"nightly_rate" json:"nightly_rate"`
	Capacity    int       `db:"capacity" json:"capacity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Booking represents a guest's reservation for a date range.
// The interval is half-open: [CheckIn, CheckOut). RoomID is nil for
// hotel-level bookings that carry their rooms in room_bookings instead.
type Booking struct {
	ID         int64     `db:"id" json:"id"`
	HotelID    int64     `db:"hotel_id" json:"hotel_id"`
	LocationID int64     `db:"location_id" json:"location_id"`
	RoomID     *int64    `db:"room_id" json:"room_id,omitempty"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      string    `db:"email" json:"email"`
	PhoneNo    string    `db:"phone_no" json:"phone_no"`
	CheckIn    time.Time `db:"check_in" json:"check_in"`
	CheckOut   time.Time `db:"check_out" json:"check_out"`
	Adults     int       `db:"adults" json:"adults"`
	Children   int       `db:"children" json:"children"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RoomBooking is a per-room sub-range owned by a Booking, used when a
// single booking spans multiple rooms.
type RoomBooking struct {
	ID        int64     `db:"id" json:"id"`
	BookingID int64     `db:"booking_id" json:"booking_id"`
	RoomID    int64     `db:"room_id" json:"room_id"`
	CheckIn   time.Time `db:"check_in" json:"check_in"`
	CheckOut  time.Time `db:"check_out" json:"check_out"`
}

// Transaction records a payment attempt and its settlement outcome.
// All money fields are paise. Invariant: TotalAmount = Amount -
// DiscountAmount + SGST + CGST.
type Transaction struct {
	ID               int64     `db:"id" json:"id"`
	BookingID        *int64    `db:"booking_id" json:"booking_id,omitempty"`
	UserName         string    `db:"user_name" json:"user_name"`
	UserEmail        string    `db:"user_email" json:"user_email"`
	Amount           int64     `db:"amount" json:"amount"`
	DiscountAmount   int64     `db:"discount_amount" json:"discount_amount"`
	SGST             int64     `db:"sgst" json:"sgst"`
	CGST             int64     `db:"cgst" json:"cgst"`
	TotalAmount      int64     `db:"total_amount" json:"total_amount"`
	Status           string    `db:"status" json:"status"`
	GatewayOrderID   string    `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string    `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	PaymentMethod    string    `db:"payment_method" json:"payment_method,omitempty"`
	CouponCode       *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Coupon is a discount code with usage and eligibility constraints.
// DiscountValue is percent points for PERCENTAGE coupons and paise for
// FIXED coupons.
type Coupon struct {
	ID               int64     `db:"id" json:"id"`
	Code             string    `db:"code" json:"code"`
	DiscountType     string    `db:"discount_type" json:"discount_type"`
	DiscountValue    int64     `db:"discount_value" json:"discount_value"`
	MaxUses          int       `db:"max_uses" json:"max_uses"`
	CurrentUses      int       `db:"current_uses" json:"current_uses"`
	MinBookingAmount int64     `db:"min_booking_amount" json:"min_booking_amount"`
	StartDate        time.Time `db:"start_date" json:"start_date"`
	EndDate          time.Time `db:"end_date" json:"end_date"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Booking statuses
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"
)

// Transaction statuses. PENDING transitions to exactly one of SUCCESS or
// FAILED and is terminal thereafter.
const (
	TransactionStatusPending = "PENDING"
	TransactionStatusSuccess = "SUCCESS"
	TransactionStatusFailed  = "FAILED"
)

// Coupon discount types
const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED"
)

// CalendarEntry is a booking reshaped for calendar rendering: the booking
// plus its per-room sub-ranges. Rooms is empty when the booking has no
// room-level sub-bookings.
type CalendarEntry struct {
	Booking Booking       `json:"booking"`
	Rooms   []RoomBooking `json:"rooms"`
}
