package service

import (
	"fmt"
	"time"

	"booking-service/internal/models"
)

// Coupon rejection reasons
const (
	CouponReasonNotFound     = "NOT_FOUND"
	CouponReasonInactive     = "INACTIVE"
	CouponReasonExpired      = "EXPIRED"
	CouponReasonExhausted    = "EXHAUSTED"
	CouponReasonBelowMinimum = "BELOW_MINIMUM"
)

// CouponInvalidError reports why a coupon cannot be applied. The booking
// flow decides whether to proceed without the discount or block.
type CouponInvalidError struct {
	Code   string
	Reason string
}

func (e *CouponInvalidError) Error() string {
	return fmt.Sprintf("coupon %q invalid: %s", e.Code, e.Reason)
}

// TaxPolicy holds the GST parameters. The threshold and rates are
// jurisdiction policy and come from configuration, not literals.
type TaxPolicy struct {
	ThresholdPaise int64 // subtotal at or below this gets the low rate
	LowRateBP      int64 // basis points, e.g. 1200 = 12%
	HighRateBP     int64 // basis points, e.g. 1800 = 18%
}

// Charges is the computed price breakdown for a stay, all in paise.
// TotalAmount = BaseAmount - DiscountAmount + SGST + CGST.
type Charges struct {
	Nights         int   `json:"nights"`
	BaseAmount     int64 `json:"base_amount"`
	DiscountAmount int64 `json:"discount_amount"`
	TaxAmount      int64 `json:"tax_amount"`
	SGST           int64 `json:"sgst"`
	CGST           int64 `json:"cgst"`
	TotalAmount    int64 `json:"total_amount"`
}

// Nights returns the number of nights in [checkIn, checkOut), rounding
// partial days up. Rejects ranges shorter than one night.
func Nights(checkIn, checkOut time.Time) (int, error) {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return 0, fmt.Errorf("%w: check_out must be after check_in", ErrInvalidInput)
	}
	nights := int((d + 24*time.Hour - 1) / (24 * time.Hour))
	return nights, nil
}

// roundHalfUpDiv divides a by b rounding half up. Both non-negative.
func roundHalfUpDiv(a, b int64) int64 {
	return (a + b/2) / b
}

// ValidateCoupon checks a coupon against its eligibility constraints for
// a given subtotal at a given instant. Returns a *CouponInvalidError with
// a reason code on rejection.
func ValidateCoupon(coupon *models.Coupon, baseAmount int64, now time.Time) error {
	if coupon == nil {
		return &CouponInvalidError{Reason: CouponReasonNotFound}
	}
	if !coupon.IsActive {
		return &CouponInvalidError{Code: coupon.Code, Reason: CouponReasonInactive}
	}
	if now.Before(coupon.StartDate) || now.After(coupon.EndDate) {
		return &CouponInvalidError{Code: coupon.Code, Reason: CouponReasonExpired}
	}
	if coupon.CurrentUses >= coupon.MaxUses {
		return &CouponInvalidError{Code: coupon.Code, Reason: CouponReasonExhausted}
	}
	if baseAmount < coupon.MinBookingAmount {
		return &CouponInvalidError{Code: coupon.Code, Reason: CouponReasonBelowMinimum}
	}
	return nil
}

// couponDiscount computes the discount a valid coupon grants, capped at
// the base amount
func couponDiscount(coupon *models.Coupon, baseAmount int64) int64 {
	var discount int64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = roundHalfUpDiv(baseAmount*coupon.DiscountValue, 100)
	case models.DiscountTypeFixed:
		discount = coupon.DiscountValue
	}
	if discount > baseAmount {
		discount = baseAmount
	}
	return discount
}

// ComputeCharges prices a stay: nightly rate times nights, optional
// coupon discount, then GST split evenly into SGST and CGST. Identical
// inputs always produce identical outputs; `now` only gates the coupon's
// validity window. An invalid coupon is an error, never silently ignored.
func ComputeCharges(nightlyRate int64, checkIn, checkOut time.Time, coupon *models.Coupon, now time.Time, policy TaxPolicy) (*Charges, error) {
	if nightlyRate <= 0 {
		return nil, fmt.Errorf("%w: nightly rate must be positive", ErrInvalidInput)
	}
	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	charges, err := ChargesFromBase(nightlyRate*int64(nights), coupon, now, policy)
	if err != nil {
		return nil, err
	}
	charges.Nights = nights
	return charges, nil
}

// ChargesFromBase applies the coupon and GST to an already-known base
// amount. Used directly for orders not derived from a nightly rate.
func ChargesFromBase(baseAmount int64, coupon *models.Coupon, now time.Time, policy TaxPolicy) (*Charges, error) {
	if baseAmount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	var discount int64
	if coupon != nil {
		if err := ValidateCoupon(coupon, baseAmount, now); err != nil {
			return nil, err
		}
		discount = couponDiscount(coupon, baseAmount)
	}

	subtotal := baseAmount - discount

	rate := policy.HighRateBP
	if subtotal <= policy.ThresholdPaise {
		rate = policy.LowRateBP
	}
	taxAmount := roundHalfUpDiv(subtotal*rate, 10000)

	// Split so sgst+cgst always equals taxAmount; an odd paise lands on
	// the central component.
	sgst := taxAmount / 2
	cgst := taxAmount - sgst

	return &Charges{
		BaseAmount:     baseAmount,
		DiscountAmount: discount,
		TaxAmount:      taxAmount,
		SGST:           sgst,
		CGST:           cgst,
		TotalAmount:    subtotal + taxAmount,
	}, nil
}
