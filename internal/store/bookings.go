package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"booking-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// overlapExistsQuery finds any live booking whose half-open interval
// intersects the requested one, for a given room, either directly or via
// a room_bookings sub-range. Back-to-back stays do not intersect.
const overlapExistsQuery = `
	SELECT EXISTS(
		SELECT 1 FROM bookings b
		WHERE b.room_id = $1
		  AND b.status IN ('PENDING', 'CONFIRMED')
		  AND b.check_in < $3 AND b.check_out > $2
		UNION
		SELECT 1 FROM room_bookings rb
		JOIN bookings b ON b.id = rb.booking_id
		WHERE rb.room_id = $1
		  AND b.status IN ('PENDING', 'CONFIRMED')
		  AND rb.check_in < $3 AND rb.check_out > $2
	)`

// CreateBookingIfAvailable inserts a PENDING booking plus its per-room
// sub-ranges in one transaction. The room rows are locked FOR UPDATE
// first, so two concurrent creates for the same room serialize and the
// second observes the first writer's rows in the overlap check. This is
// the authoritative guard against double-booking; any pre-check the
// caller ran is advisory only.
func (s *Store) CreateBookingIfAvailable(ctx context.Context, booking *models.Booking, roomRanges []models.RoomBooking) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	roomIDs := make([]int64, 0, len(roomRanges)+1)
	if booking.RoomID != nil {
		roomIDs = append(roomIDs, *booking.RoomID)
	}
	for _, rr := range roomRanges {
		roomIDs = append(roomIDs, rr.RoomID)
	}
	// Lock in ascending id order to avoid deadlocks between concurrent
	// multi-room creates.
	sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })

	for _, roomID := range roomIDs {
		var locked int64
		err := tx.GetContext(ctx, &locked,
			"SELECT id FROM rooms WHERE id = $1 FOR UPDATE", roomID)
		if err == sql.ErrNoRows {
			return ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock room %d: %w", roomID, err)
		}
	}

	if booking.RoomID != nil {
		taken, err := overlapExists(ctx, tx, *booking.RoomID, booking.CheckIn, booking.CheckOut)
		if err != nil {
			return err
		}
		if taken {
			return ErrRoomUnavailable
		}
	}
	for _, rr := range roomRanges {
		taken, err := overlapExists(ctx, tx, rr.RoomID, rr.CheckIn, rr.CheckOut)
		if err != nil {
			return err
		}
		if taken {
			return ErrRoomUnavailable
		}
	}

	query := `
		INSERT INTO bookings (hotel_id, location_id, room_id, full_name, email, phone_no,
			check_in, check_out, adults, children, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err = tx.GetContext(ctx, booking, query,
		booking.HotelID, booking.LocationID, booking.RoomID,
		booking.FullName, booking.Email, booking.PhoneNo,
		booking.CheckIn, booking.CheckOut, booking.Adults, booking.Children,
		models.BookingStatusPending)
	if err != nil {
		return mapConstraintErr(err)
	}
	booking.Status = models.BookingStatusPending

	for i := range roomRanges {
		roomRanges[i].BookingID = booking.ID
		err := tx.GetContext(ctx, &roomRanges[i].ID,
			`INSERT INTO room_bookings (booking_id, room_id, check_in, check_out)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			roomRanges[i].BookingID, roomRanges[i].RoomID,
			roomRanges[i].CheckIn, roomRanges[i].CheckOut)
		if err != nil {
			return mapConstraintErr(err)
		}
	}

	return tx.Commit()
}

func overlapExists(ctx context.Context, tx *sqlx.Tx, roomID int64, checkIn, checkOut time.Time) (bool, error) {
	var exists bool
	if err := tx.GetContext(ctx, &exists, overlapExistsQuery, roomID, checkIn, checkOut); err != nil {
		return false, fmt.Errorf("failed to check room availability: %w", err)
	}
	return exists, nil
}

// mapConstraintErr translates the schema's btree_gist exclusion constraint
// (and any unique violation) into ErrRoomUnavailable so callers see a
// conflict instead of a raw pq error.
func mapConstraintErr(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23P01", "23505": // exclusion_violation, unique_violation
			return ErrRoomUnavailable
		}
	}
	return err
}

// GetBookingByID retrieves a booking by ID
func (s *Store) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.GetContext(ctx, &booking, "SELECT * FROM bookings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetLiveBookingsForRoom retrieves PENDING/CONFIRMED bookings touching a
// room, directly or through room_bookings. Cancelled bookings never block
// availability, so they are excluded here.
func (s *Store) GetLiveBookingsForRoom(ctx context.Context, roomID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings, `
		SELECT DISTINCT b.* FROM bookings b
		LEFT JOIN room_bookings rb ON rb.booking_id = b.id
		WHERE (b.room_id = $1 OR rb.room_id = $1)
		  AND b.status IN ('PENDING', 'CONFIRMED')
		ORDER BY b.check_in`, roomID)
	return bookings, err
}

// UpdateBookingStatus updates booking status
func (s *Store) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2",
		status, bookingID)
	return err
}

// GetRoomBookingsByBookingID retrieves per-room sub-ranges for a booking
func (s *Store) GetRoomBookingsByBookingID(ctx context.Context, bookingID int64) ([]models.RoomBooking, error) {
	var ranges []models.RoomBooking
	err := s.db.SelectContext(ctx, &ranges,
		"SELECT * FROM room_bookings WHERE booking_id = $1 ORDER BY room_id", bookingID)
	return ranges, err
}

// CalendarFilter narrows the calendar read. All fields are optional.
type CalendarFilter struct {
	HotelID    *int64
	LocationID *int64
	StartDate  *time.Time
	EndDate    *time.Time
}

// CalendarBookings returns bookings with their per-room sub-ranges for
// calendar rendering. Bookings without room_bookings come back with an
// empty Rooms slice; there is no first-room fallback.
func (s *Store) CalendarBookings(ctx context.Context, filter CalendarFilter) ([]models.CalendarEntry, error) {
	query := `SELECT * FROM bookings WHERE status IN ('PENDING', 'CONFIRMED')`
	args := []interface{}{}
	n := 0

	add := func(clause string, val interface{}) {
		n++
		query += fmt.Sprintf(" AND %s $%d", clause, n)
		args = append(args, val)
	}

	if filter.HotelID != nil {
		add("hotel_id =", *filter.HotelID)
	}
	if filter.LocationID != nil {
		add("location_id =", *filter.LocationID)
	}
	if filter.StartDate != nil {
		add("check_out >", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("check_in <", *filter.EndDate)
	}
	query += " ORDER BY check_in"

	var bookings []models.Booking
	if err := s.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return []models.CalendarEntry{}, nil
	}

	ids := make([]int64, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	inQuery, inArgs, err := sqlx.In("SELECT * FROM room_bookings WHERE booking_id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	inQuery = s.db.Rebind(inQuery)

	var ranges []models.RoomBooking
	if err := s.db.SelectContext(ctx, &ranges, inQuery, inArgs...); err != nil {
		return nil, err
	}

	byBooking := make(map[int64][]models.RoomBooking)
	for _, rr := range ranges {
		byBooking[rr.BookingID] = append(byBooking[rr.BookingID], rr)
	}

	entries := make([]models.CalendarEntry, len(bookings))
	for i, b := range bookings {
		rooms := byBooking[b.ID]
		if rooms == nil {
			rooms = []models.RoomBooking{}
		}
		entries[i] = models.CalendarEntry{Booking: b, Rooms: rooms}
	}
	return entries, nil
}
