package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/broker"
	"booking-service/internal/models"
	"booking-service/internal/redisclient"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// BookingService handles availability checks and booking creation
type BookingService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
	holdTTL        time.Duration
}

// NewBookingService creates a new booking service
func NewBookingService(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	holdTTL time.Duration,
) *BookingService {
	return &BookingService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		holdTTL:        holdTTL,
	}
}

// CreateBookingRequest represents a request to create a booking
type CreateBookingRequest struct {
	HotelID  int64  `json:"hotel_id" binding:"required"`
	RoomID   int64  `json:"room_id" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	PhoneNo  string `json:"phone_no" binding:"required"`
	CheckIn  string `json:"check_in" binding:"required"`
	CheckOut string `json:"check_out" binding:"required"`
	Adults   int    `json:"adults" binding:"required,min=1"`
	Children int    `json:"children" binding:"min=0"`
}

// CreateBookingResponse represents the response after creating a booking
type CreateBookingResponse struct {
	BookingID int64  `json:"booking_id"`
	Status    string `json:"status"`
}

// ParseDate parses an ISO calendar date at UTC midnight
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q, want YYYY-MM-DD", ErrInvalidInput, s)
	}
	return d, nil
}

// CreateBooking validates the stay, takes a short-TTL redis hold on the
// requested nights, then creates a PENDING booking through the store's
// locked create. The redis hold is a cheap fast path for turning away
// concurrent attempts; the database decides. A booking must reference a
// concrete room — there is no hotel-level fallback.
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResponse, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	checkIn, err := ParseDate(req.CheckIn)
	if err != nil {
		return nil, err
	}
	checkOut, err := ParseDate(req.CheckOut)
	if err != nil {
		return nil, err
	}

	room, err := s.store.GetRoomByID(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if room.HotelID != req.HotelID {
		return nil, fmt.Errorf("%w: room %d does not belong to hotel %d", ErrInvalidInput, req.RoomID, req.HotelID)
	}

	if err := ValidateStay(checkIn, checkOut, req.Adults, req.Children, room.Capacity); err != nil {
		return nil, err
	}

	hotel, err := s.store.GetHotelByID(ctx, req.HotelID)
	if err != nil {
		return nil, err
	}

	nights := StayNights(checkIn, checkOut)
	holdOwner := uuid.New().String()

	held, err := s.redis.HoldRoomNights(ctx, room.ID, nights, holdOwner, s.holdTTL)
	if err != nil {
		// Redis outage must not block bookings; the store's locked
		// create still guards correctness.
		s.logger.Warn("Room hold failed, relying on store lock",
			zap.Int64("room_id", room.ID),
			zap.Error(err))
	} else if !held {
		util.BookingConflictsTotal.WithLabelValues("hold").Inc()
		return nil, store.ErrRoomUnavailable
	}

	booking := &models.Booking{
		HotelID:    req.HotelID,
		LocationID: hotel.LocationID,
		RoomID:     &room.ID,
		FullName:   req.FullName,
		Email:      req.Email,
		PhoneNo:    req.PhoneNo,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Adults:     req.Adults,
		Children:   req.Children,
	}

	if err := s.store.CreateBookingIfAvailable(ctx, booking, nil); err != nil {
		s.releaseHold(room.ID, nights, holdOwner)
		if errors.Is(err, store.ErrRoomUnavailable) {
			util.BookingConflictsTotal.WithLabelValues("store").Inc()
			return nil, err
		}
		util.BookingsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("room_id", room.ID),
		zap.String("check_in", req.CheckIn),
		zap.String("check_out", req.CheckOut))

	event := &models.BookingCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBookingCreated,
			Timestamp: time.Now(),
		},
		BookingID: booking.ID,
		HotelID:   booking.HotelID,
		RoomID:    booking.RoomID,
		CheckIn:   booking.CheckIn,
		CheckOut:  booking.CheckOut,
	}
	if err := s.eventPublisher.PublishBookingCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCreated event", zap.Error(err))
	}

	return &CreateBookingResponse{
		BookingID: booking.ID,
		Status:    booking.Status,
	}, nil
}

func (s *BookingService) releaseHold(roomID int64, nights []time.Time, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.redis.ReleaseRoomNights(ctx, roomID, nights, owner); err != nil {
		s.logger.Warn("Failed to release room hold",
			zap.Int64("room_id", roomID),
			zap.Error(err))
	}
}

// CheckAvailability reports whether a room is free for [checkIn,
// checkOut). Read-only; creation re-checks under the store lock.
func (s *BookingService) CheckAvailability(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (bool, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CheckAvailability")
	defer span.End()

	if !checkOut.After(checkIn) {
		return false, fmt.Errorf("%w: check_out must be after check_in", ErrInvalidInput)
	}

	if _, err := s.store.GetRoomByID(ctx, roomID); err != nil {
		return false, err
	}

	existing, err := s.store.GetLiveBookingsForRoom(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("failed to load bookings for room %d: %w", roomID, err)
	}

	return IsRoomAvailable(checkIn, checkOut, existing), nil
}

// GetBooking retrieves a booking and its per-room sub-ranges
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, []models.RoomBooking, error) {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	rooms, err := s.store.GetRoomBookingsByBookingID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	return booking, rooms, nil
}

// HotelRooms lists a hotel's rooms for the room-selection UI
func (s *BookingService) HotelRooms(ctx context.Context, hotelID int64) ([]models.Room, error) {
	if _, err := s.store.GetHotelByID(ctx, hotelID); err != nil {
		return nil, err
	}
	return s.store.GetRoomsByHotelID(ctx, hotelID)
}

// Calendar returns bookings reshaped for calendar rendering
func (s *BookingService) Calendar(ctx context.Context, filter store.CalendarFilter) ([]models.CalendarEntry, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Calendar")
	defer span.End()

	return s.store.CalendarBookings(ctx, filter)
}
