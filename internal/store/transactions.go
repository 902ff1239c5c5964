package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// CreateTransaction creates a new PENDING transaction. At most one
// non-FAILED transaction may reference a booking; a second attempt while
// one is still live returns ErrBookingHasActivePayment.
func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (booking_id, user_name, user_email, amount,
			discount_amount, sgst, cgst, total_amount, status,
			gateway_order_id, coupon_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, txn, query,
		txn.BookingID, txn.UserName, txn.UserEmail, txn.Amount,
		txn.DiscountAmount, txn.SGST, txn.CGST, txn.TotalAmount,
		models.TransactionStatusPending, txn.GatewayOrderID, txn.CouponCode)
	if pqErr, ok := err.(*pq.Error); ok &&
		pqErr.Code == "23505" && pqErr.Constraint == "idx_transactions_booking_live" {
		return ErrBookingHasActivePayment
	}
	return err
}

// GetTransactionByID retrieves a transaction by ID
func (s *Store) GetTransactionByID(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.GetContext(ctx, &txn, "SELECT * FROM transactions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetTransactionByGatewayOrderID retrieves a transaction by the gateway's
// order id echoed back in callbacks
func (s *Store) GetTransactionByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.GetContext(ctx, &txn,
		"SELECT * FROM transactions WHERE gateway_order_id = $1", gatewayOrderID)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// SettleTransaction atomically moves a PENDING transaction to a terminal
// status and, in the same database transaction, updates the attached
// booking and redeems the coupon. The status='PENDING' predicate on the
// first UPDATE is the idempotency gate: a duplicate callback matches zero
// rows, the terminal state already on record is returned, and neither the
// booking nor the coupon is touched again.
//
// Returns the transaction's final status and whether this call applied
// the transition.
func (s *Store) SettleTransaction(ctx context.Context, txnID int64, status, gatewayPaymentID, paymentMethod string) (string, bool, error) {
	if status != models.TransactionStatusSuccess && status != models.TransactionStatusFailed {
		return "", false, fmt.Errorf("non-terminal settlement status: %s", status)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	var txn models.Transaction
	err = tx.GetContext(ctx, &txn, `
		UPDATE transactions
		SET status = $1, gateway_payment_id = $2, payment_method = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'PENDING'
		RETURNING *`,
		status, gatewayPaymentID, paymentMethod, txnID)
	if err == sql.ErrNoRows {
		// Already settled by an earlier delivery. Report the recorded
		// terminal state without mutating anything.
		var current string
		if err := tx.GetContext(ctx, &current,
			"SELECT status FROM transactions WHERE id = $1", txnID); err != nil {
			if err == sql.ErrNoRows {
				return "", false, ErrTransactionNotFound
			}
			return "", false, err
		}
		return current, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to settle transaction %d: %w", txnID, err)
	}

	if txn.BookingID != nil {
		bookingStatus := models.BookingStatusCancelled
		if status == models.TransactionStatusSuccess {
			bookingStatus = models.BookingStatusConfirmed
		}
		// The status='PENDING' predicate keeps booking transitions
		// monotonic: a stale sibling transaction settling later cannot
		// cancel a booking another payment already confirmed, nor
		// resurrect one the expiry sweep cancelled.
		res, err := tx.ExecContext(ctx,
			"UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = 'PENDING'",
			bookingStatus, *txn.BookingID)
		if err != nil {
			return "", false, fmt.Errorf("failed to update booking %d: %w", *txn.BookingID, err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			util.GetLogger().Warn("Booking already in a terminal state, left untouched",
				zap.Int64("booking_id", *txn.BookingID),
				zap.Int64("transaction_id", txn.ID),
				zap.String("settlement_status", status))
		}
	}

	if status == models.TransactionStatusSuccess && txn.CouponCode != nil {
		// Conditional increment: never past max_uses, even under
		// concurrent confirmations. Zero rows means the coupon was
		// exhausted or deactivated after the order was priced; the
		// payment is already captured, so the settlement still commits
		// and the missed redemption is only recorded.
		res, err := tx.ExecContext(ctx, `
			UPDATE coupons SET current_uses = current_uses + 1
			WHERE code = $1 AND is_active AND current_uses < max_uses`,
			*txn.CouponCode)
		if err != nil {
			return "", false, fmt.Errorf("failed to redeem coupon %s: %w", *txn.CouponCode, err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			util.CouponRedemptionsMissedTotal.Inc()
			util.GetLogger().Warn("Coupon no longer redeemable at settlement, confirming without it",
				zap.String("coupon_code", *txn.CouponCode),
				zap.Int64("transaction_id", txn.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return status, true, nil
}

// ExpireStalePending fails PENDING transactions older than the cutoff
// whose gateway callback never arrived. The booking, if any, is released
// through the same atomic path as a failure callback.
func (s *Store) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var ids []int64
	err = tx.SelectContext(ctx, &ids, `
		UPDATE transactions SET status = 'FAILED', updated_at = NOW()
		WHERE status = 'PENDING' AND created_at < $1
		RETURNING id`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale transactions: %w", err)
	}
	if len(ids) == 0 {
		return 0, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bookings SET status = 'CANCELLED', updated_at = NOW()
		WHERE id IN (SELECT booking_id FROM transactions
			WHERE id = ANY($1) AND booking_id IS NOT NULL)
		AND status = 'PENDING'`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to cancel expired bookings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}
