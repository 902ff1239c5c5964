package service

import (
	"math/rand"
	"testing"
	"time"

	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func booking(status string, checkIn, checkOut time.Time) models.Booking {
	return models.Booking{Status: status, CheckIn: checkIn, CheckOut: checkOut}
}

func TestOverlaps(t *testing.T) {
	jun10, jun12, jun13, jun15 := date(2024, 6, 10), date(2024, 6, 12), date(2024, 6, 13), date(2024, 6, 15)

	assert.True(t, Overlaps(jun10, jun13, jun12, jun15), "partial overlap")
	assert.True(t, Overlaps(jun10, jun15, jun12, jun13), "containment")
	assert.True(t, Overlaps(jun12, jun13, jun10, jun15), "contained")
	assert.False(t, Overlaps(jun10, jun12, jun13, jun15), "disjoint")
	assert.False(t, Overlaps(jun10, jun13, jun13, jun15), "back-to-back does not overlap")
	assert.False(t, Overlaps(jun13, jun15, jun10, jun13), "back-to-back, reversed")
}

func TestIsRoomAvailable(t *testing.T) {
	existing := []models.Booking{
		booking(models.BookingStatusConfirmed, date(2024, 6, 10), date(2024, 6, 13)),
	}

	// Spec example: request starting on the existing checkout day.
	assert.True(t, IsRoomAvailable(date(2024, 6, 13), date(2024, 6, 15), existing))

	// Spec example: request inside the existing stay.
	assert.False(t, IsRoomAvailable(date(2024, 6, 11), date(2024, 6, 12), existing))

	assert.True(t, IsRoomAvailable(date(2024, 6, 1), date(2024, 6, 10), existing),
		"stay ending on existing check-in is allowed")
}

func TestIsRoomAvailableIgnoresCancelled(t *testing.T) {
	existing := []models.Booking{
		booking(models.BookingStatusCancelled, date(2024, 6, 10), date(2024, 6, 13)),
	}

	assert.True(t, IsRoomAvailable(date(2024, 6, 11), date(2024, 6, 12), existing))
}

func TestIsRoomAvailablePendingBlocks(t *testing.T) {
	existing := []models.Booking{
		booking(models.BookingStatusPending, date(2024, 6, 10), date(2024, 6, 13)),
	}

	assert.False(t, IsRoomAvailable(date(2024, 6, 12), date(2024, 6, 14), existing))
}

// Randomized check: the pure overlap test must agree with a night-by-
// night occupancy model for any pair of stays.
func TestIsRoomAvailableAgainstOccupancyModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := date(2024, 6, 1)

	occupiedNights := func(checkIn, checkOut time.Time) map[string]bool {
		nights := map[string]bool{}
		for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
			nights[d.Format("2006-01-02")] = true
		}
		return nights
	}

	for i := 0; i < 500; i++ {
		aStart := base.AddDate(0, 0, rng.Intn(30))
		aEnd := aStart.AddDate(0, 0, 1+rng.Intn(7))
		bStart := base.AddDate(0, 0, rng.Intn(30))
		bEnd := bStart.AddDate(0, 0, 1+rng.Intn(7))

		existing := []models.Booking{booking(models.BookingStatusConfirmed, aStart, aEnd)}

		sharesNight := false
		taken := occupiedNights(aStart, aEnd)
		for night := range occupiedNights(bStart, bEnd) {
			if taken[night] {
				sharesNight = true
				break
			}
		}

		got := IsRoomAvailable(bStart, bEnd, existing)
		require.Equal(t, !sharesNight, got,
			"existing [%s, %s) vs requested [%s, %s)",
			aStart.Format("2006-01-02"), aEnd.Format("2006-01-02"),
			bStart.Format("2006-01-02"), bEnd.Format("2006-01-02"))
	}
}

func TestValidateStay(t *testing.T) {
	jun10, jun12 := date(2024, 6, 10), date(2024, 6, 12)

	assert.NoError(t, ValidateStay(jun10, jun12, 2, 1, 4))

	assert.ErrorIs(t, ValidateStay(jun12, jun10, 2, 0, 4), ErrInvalidInput, "inverted range")
	assert.ErrorIs(t, ValidateStay(jun10, jun10, 2, 0, 4), ErrInvalidInput, "zero-length range")
	assert.ErrorIs(t, ValidateStay(jun10, jun12, 0, 0, 4), ErrInvalidInput, "no adults")
	assert.ErrorIs(t, ValidateStay(jun10, jun12, 1, -1, 4), ErrInvalidInput, "negative children")
	assert.ErrorIs(t, ValidateStay(jun10, jun12, 3, 2, 4), ErrInvalidInput, "over capacity")
}

func TestStayNights(t *testing.T) {
	nights := StayNights(date(2024, 6, 10), date(2024, 6, 13))
	require.Len(t, nights, 3)
	assert.Equal(t, date(2024, 6, 10), nights[0])
	assert.Equal(t, date(2024, 6, 12), nights[2])
}
