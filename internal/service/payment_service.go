package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"booking-service/internal/gateway"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	idempotencyTTL = 24 * time.Hour

	// Non-numeric on purpose: replayOrder parses stored values as
	// transaction ids, so an in-flight claim can never be mistaken for a
	// completed one.
	orderInFlightMarker = "in_flight"
)

// orderStore is the slice of the store order creation reads and writes
type orderStore interface {
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransactionByID(ctx context.Context, id int64) (*models.Transaction, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetRoomByID(ctx context.Context, id int64) (*models.Room, error)
}

// idempotencyStore claims and resolves idempotency keys. Claiming is
// atomic (set-if-absent), so two concurrent duplicates cannot both
// proceed past it.
type idempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	ClaimIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// orderGateway registers orders with the payment gateway
type orderGateway interface {
	CreateOrder(ctx context.Context, req *gateway.OrderRequest) (*gateway.Order, error)
}

// PaymentService creates gateway orders and their PENDING transactions
type PaymentService struct {
	store     orderStore
	redis     idempotencyStore
	gateway   orderGateway
	logger    *zap.Logger
	taxPolicy TaxPolicy
	currency  string
}

// NewPaymentService creates a new payment service
func NewPaymentService(store orderStore, redis idempotencyStore, gw orderGateway, taxPolicy TaxPolicy) *PaymentService {
	return &PaymentService{
		store:     store,
		redis:     redis,
		gateway:   gw,
		logger:    util.GetLogger(),
		taxPolicy: taxPolicy,
		currency:  "INR",
	}
}

// CreateOrderRequest represents a request to place an order with the
// gateway. BookingID prices the order from the booking's room and dates;
// without it Amount (paise) is required.
type CreateOrderRequest struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	BookingID      *int64 `json:"booking_id,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	CouponCode     string `json:"coupon_code,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// CreateOrderResponse carries the ids the payment page needs
type CreateOrderResponse struct {
	TransactionID  int64  `json:"transaction_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// CreateOrder prices the stay, registers an order with the gateway under
// a bounded timeout, and records a PENDING transaction carrying the
// gateway order id plus the full charge breakdown. An idempotency key,
// when supplied, is claimed atomically before any side effect: a repeat
// returns the previously created transaction, and a concurrent in-flight
// duplicate is rejected instead of charging twice.
func (ps *PaymentService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateOrder")
	defer span.End()

	claimed := false
	if req.IdempotencyKey != "" {
		if resp, ok := ps.replayOrder(ctx, req.IdempotencyKey); ok {
			return resp, nil
		}

		won, err := ps.redis.ClaimIdempotencyKey(ctx, req.IdempotencyKey,
			orderInFlightMarker, idempotencyTTL)
		if err != nil {
			// Redis outage: proceed without the guard rather than
			// blocking payments.
			ps.logger.Warn("Idempotency claim failed, proceeding",
				zap.String("idempotency_key", req.IdempotencyKey), zap.Error(err))
		} else if !won {
			// Lost the claim to a concurrent duplicate. It may have
			// finished between our read and the claim attempt.
			if resp, ok := ps.replayOrder(ctx, req.IdempotencyKey); ok {
				return resp, nil
			}
			return nil, ErrDuplicateRequest
		} else {
			claimed = true
		}
	}

	resp, err := ps.createOrder(ctx, req)
	if err != nil && claimed {
		// Leave the key free for a retry.
		if relErr := ps.redis.ReleaseIdempotencyKey(ctx, req.IdempotencyKey); relErr != nil {
			ps.logger.Warn("Failed to release idempotency claim", zap.Error(relErr))
		}
	}
	return resp, err
}

func (ps *PaymentService) createOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	charges, coupon, err := ps.price(ctx, req)
	if err != nil {
		return nil, err
	}

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()

	order, err := ps.gateway.CreateOrder(ctx, &gateway.OrderRequest{
		Amount:   charges.TotalAmount,
		Currency: ps.currency,
		Receipt:  uuid.New().String(),
	})
	util.GatewayOrderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.PaymentFailedTotal.Inc()
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	txn := &models.Transaction{
		BookingID:      req.BookingID,
		UserName:       req.Name,
		UserEmail:      req.Email,
		Amount:         charges.BaseAmount,
		DiscountAmount: charges.DiscountAmount,
		SGST:           charges.SGST,
		CGST:           charges.CGST,
		TotalAmount:    charges.TotalAmount,
		GatewayOrderID: order.ID,
	}
	if coupon != nil {
		txn.CouponCode = &coupon.Code
	}

	if err := ps.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	ps.logger.Info("Order created",
		zap.Int64("transaction_id", txn.ID),
		zap.String("gateway_order_id", order.ID),
		zap.Int64("total_amount", charges.TotalAmount))

	if req.IdempotencyKey != "" {
		// Overwrites the in-flight marker with the durable result.
		if err := ps.redis.SetIdempotencyKey(ctx, req.IdempotencyKey,
			strconv.FormatInt(txn.ID, 10), idempotencyTTL); err != nil {
			ps.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	return &CreateOrderResponse{
		TransactionID:  txn.ID,
		GatewayOrderID: order.ID,
		Amount:         charges.TotalAmount,
		Currency:       ps.currency,
	}, nil
}

// replayOrder returns the transaction a previous call with the same
// idempotency key produced, if any. An in-flight marker or absent key
// reports no replay.
func (ps *PaymentService) replayOrder(ctx context.Context, key string) (*CreateOrderResponse, bool) {
	val, err := ps.redis.GetIdempotencyKey(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			ps.logger.Warn("Idempotency lookup failed", zap.Error(err))
		}
		return nil, false
	}

	txnID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, false
	}

	txn, err := ps.store.GetTransactionByID(ctx, txnID)
	if err != nil {
		return nil, false
	}

	ps.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("transaction_id", txn.ID))

	return &CreateOrderResponse{
		TransactionID:  txn.ID,
		GatewayOrderID: txn.GatewayOrderID,
		Amount:         txn.TotalAmount,
		Currency:       ps.currency,
	}, true
}

func (ps *PaymentService) price(ctx context.Context, req *CreateOrderRequest) (*Charges, *models.Coupon, error) {
	var coupon *models.Coupon
	if req.CouponCode != "" {
		c, err := ps.store.GetCouponByCode(ctx, req.CouponCode)
		if err != nil {
			if errors.Is(err, store.ErrCouponNotFound) {
				return nil, nil, &CouponInvalidError{Code: req.CouponCode, Reason: CouponReasonNotFound}
			}
			return nil, nil, err
		}
		coupon = c
	}

	now := time.Now()

	if req.BookingID == nil {
		charges, err := ChargesFromBase(req.Amount, coupon, now, ps.taxPolicy)
		return charges, coupon, err
	}

	booking, err := ps.store.GetBookingByID(ctx, *req.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.RoomID == nil {
		return nil, nil, fmt.Errorf("%w: booking %d has no room to price", ErrInvalidInput, booking.ID)
	}

	room, err := ps.store.GetRoomByID(ctx, *booking.RoomID)
	if err != nil {
		return nil, nil, err
	}

	charges, err := ComputeCharges(room.NightlyRate, booking.CheckIn, booking.CheckOut, coupon, now, ps.taxPolicy)
	return charges, coupon, err
}

// GetTransaction retrieves a transaction by id
func (ps *PaymentService) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return ps.store.GetTransactionByID(ctx, id)
}
