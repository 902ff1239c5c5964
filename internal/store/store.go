package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"booking-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetHotelByID retrieves a hotel by ID
func (s *Store) GetHotelByID(ctx context.Context, id int64) (*models.Hotel, error) {
	var hotel models.Hotel
	err := s.db.GetContext(ctx, &hotel, "SELECT * FROM hotels WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrHotelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hotel, nil
}

// GetRoomByID retrieves a room by ID
func (s *Store) GetRoomByID(ctx context.Context, id int64) (*models.Room, error) {
	var room models.Room
	err := s.db.GetContext(ctx, &room, "SELECT * FROM rooms WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRoomsByHotelID retrieves all rooms for a hotel
func (s *Store) GetRoomsByHotelID(ctx context.Context, hotelID int64) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.SelectContext(ctx, &rooms,
		"SELECT * FROM rooms WHERE hotel_id = $1 ORDER BY id", hotelID)
	return rooms, err
}

// GetCouponByCode retrieves a coupon by its case-normalized code
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon,
		"SELECT * FROM coupons WHERE code = $1", strings.ToUpper(strings.TrimSpace(code)))
	if err == sql.ErrNoRows {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}
