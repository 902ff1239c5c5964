package service

import (
	"context"
	"errors"
	"testing"

	"booking-service/internal/gateway"
	"booking-service/internal/models"
	"booking-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSettlementStore mimics the store's settlement semantics in memory:
// the status='PENDING' idempotency gate on the transaction, the monotonic
// booking transition, and the capped coupon increment.
type fakeSettlementStore struct {
	txns        map[string]*models.Transaction
	bookings    map[int64]string
	couponUses  map[string]int
	couponMax   map[string]int
	settleErr   error
	settleCalls int
}

func newFakeSettlementStore() *fakeSettlementStore {
	return &fakeSettlementStore{
		txns:       map[string]*models.Transaction{},
		bookings:   map[int64]string{},
		couponUses: map[string]int{},
		couponMax:  map[string]int{},
	}
}

func (f *fakeSettlementStore) add(txn *models.Transaction) {
	f.txns[txn.GatewayOrderID] = txn
	if txn.BookingID != nil {
		if _, ok := f.bookings[*txn.BookingID]; !ok {
			f.bookings[*txn.BookingID] = models.BookingStatusPending
		}
	}
}

func (f *fakeSettlementStore) GetTransactionByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Transaction, error) {
	txn, ok := f.txns[gatewayOrderID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (f *fakeSettlementStore) SettleTransaction(_ context.Context, txnID int64, status, gatewayPaymentID, paymentMethod string) (string, bool, error) {
	f.settleCalls++
	if f.settleErr != nil {
		return "", false, f.settleErr
	}

	for _, txn := range f.txns {
		if txn.ID != txnID {
			continue
		}
		if txn.Status != models.TransactionStatusPending {
			return txn.Status, false, nil
		}
		txn.Status = status
		txn.GatewayPaymentID = gatewayPaymentID
		txn.PaymentMethod = paymentMethod
		if txn.BookingID != nil && f.bookings[*txn.BookingID] == models.BookingStatusPending {
			if status == models.TransactionStatusSuccess {
				f.bookings[*txn.BookingID] = models.BookingStatusConfirmed
			} else {
				f.bookings[*txn.BookingID] = models.BookingStatusCancelled
			}
		}
		if status == models.TransactionStatusSuccess && txn.CouponCode != nil {
			code := *txn.CouponCode
			if max, capped := f.couponMax[code]; !capped || f.couponUses[code] < max {
				f.couponUses[code]++
			}
		}
		return status, true, nil
	}
	return "", false, store.ErrTransactionNotFound
}

type fakePublisher struct {
	confirmed []*models.BookingConfirmedEvent
	cancelled []*models.BookingCancelledEvent
	settled   []*models.PaymentSettledEvent
}

func (f *fakePublisher) PublishBookingConfirmed(_ context.Context, e *models.BookingConfirmedEvent) error {
	f.confirmed = append(f.confirmed, e)
	return nil
}

func (f *fakePublisher) PublishBookingCancelled(_ context.Context, e *models.BookingCancelledEvent) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}

func (f *fakePublisher) PublishPaymentSettled(_ context.Context, e *models.PaymentSettledEvent) error {
	f.settled = append(f.settled, e)
	return nil
}

func pendingTxn(bookingID int64, couponCode string) *models.Transaction {
	txn := &models.Transaction{
		ID:             7,
		BookingID:      &bookingID,
		UserName:       "Asha Rao",
		UserEmail:      "asha@example.com",
		Amount:         1000000,
		TotalAmount:    1180000,
		Status:         models.TransactionStatusPending,
		GatewayOrderID: "order_abc123",
	}
	if couponCode != "" {
		txn.CouponCode = &couponCode
	}
	return txn
}

func TestMapGatewayStatus(t *testing.T) {
	for _, s := range []string{"captured", "CAPTURED", "authorized", "processed", "Paid", "TXN_SUCCESS", " success "} {
		assert.Equal(t, models.TransactionStatusSuccess, MapGatewayStatus(s), s)
	}
	for _, s := range []string{"failed", "declined", "refunded", "pending", "", "garbage"} {
		assert.Equal(t, models.TransactionStatusFailed, MapGatewayStatus(s), s)
	}
}

func TestReconcileSuccessConfirmsBooking(t *testing.T) {
	fs := newFakeSettlementStore()
	fs.add(pendingTxn(42, "SUMMER10"))
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, "")

	result, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID:   "order_abc123",
		GatewayPaymentID: "pay_xyz",
		Status:           "captured",
		Source:           CallbackSourceForm,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
	assert.False(t, result.AlreadyFinal)
	assert.Equal(t, models.BookingStatusConfirmed, fs.bookings[42])
	assert.Equal(t, 1, fs.couponUses["SUMMER10"])
	require.Len(t, pub.confirmed, 1)
	assert.Equal(t, int64(42), pub.confirmed[0].BookingID)
	require.Len(t, pub.settled, 1)
}

func TestReconcileFailureCancelsBooking(t *testing.T) {
	fs := newFakeSettlementStore()
	fs.add(pendingTxn(42, ""))
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, "")

	result, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID: "order_abc123",
		Status:         "declined",
		Source:         CallbackSourceQuery,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusFailed, result.Status)
	assert.Equal(t, models.BookingStatusCancelled, fs.bookings[42])
	require.Len(t, pub.cancelled, 1)
	assert.Empty(t, pub.confirmed)
}

// Duplicate deliveries settle once: same terminal state back, no second
// coupon increment, no second confirmation event.
func TestReconcileIdempotent(t *testing.T) {
	fs := newFakeSettlementStore()
	fs.add(pendingTxn(42, "SUMMER10"))
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, "")

	payload := &CallbackPayload{
		GatewayOrderID:   "order_abc123",
		GatewayPaymentID: "pay_xyz",
		Status:           "captured",
		Source:           CallbackSourceForm,
	}

	first, err := sr.Reconcile(context.Background(), payload)
	require.NoError(t, err)
	second, err := sr.Reconcile(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.True(t, second.AlreadyFinal)
	assert.Equal(t, 1, fs.couponUses["SUMMER10"])
	assert.Len(t, pub.confirmed, 1)
	assert.Len(t, pub.settled, 1)
}

// Terminal states are monotonic: a contradictory later callback cannot
// flip a settled transaction.
func TestReconcileTerminalMonotonic(t *testing.T) {
	fs := newFakeSettlementStore()
	fs.add(pendingTxn(42, ""))
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, "")

	_, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID: "order_abc123", Status: "captured", Source: CallbackSourceForm,
	})
	require.NoError(t, err)

	result, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID: "order_abc123", Status: "failed", Source: CallbackSourceForm,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
	assert.True(t, result.AlreadyFinal)
	assert.Equal(t, models.BookingStatusConfirmed, fs.bookings[42])
}

// A confirmed booking must survive a stale sibling transaction settling
// FAILED afterwards: the sibling goes to its terminal state, but the
// booking the guest paid for stays CONFIRMED.
func TestReconcileStaleSiblingKeepsConfirmedBooking(t *testing.T) {
	bookingID := int64(42)

	fs := newFakeSettlementStore()
	fs.add(pendingTxn(bookingID, ""))
	fs.add(&models.Transaction{
		ID:             8,
		BookingID:      &bookingID,
		UserName:       "Asha Rao",
		UserEmail:      "asha@example.com",
		Amount:         1000000,
		TotalAmount:    1180000,
		Status:         models.TransactionStatusPending,
		GatewayOrderID: "order_def456",
	})
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, "")

	_, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID:   "order_abc123",
		GatewayPaymentID: "pay_xyz",
		Status:           "captured",
		Source:           CallbackSourceForm,
	})
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusConfirmed, fs.bookings[bookingID])

	result, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID: "order_def456",
		Status:         "failed",
		Source:         CallbackSourceForm,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusFailed, result.Status)
	assert.Equal(t, models.TransactionStatusFailed, fs.txns["order_def456"].Status)
	assert.Equal(t, models.BookingStatusConfirmed, fs.bookings[bookingID],
		"paid booking must not be cancelled by a stale sibling")
}

// A coupon exhausted between order creation and the callback must not
// block settlement: the payment is captured, so the booking confirms and
// only the redemption is skipped.
func TestReconcileSuccessWithExhaustedCoupon(t *testing.T) {
	fs := newFakeSettlementStore()
	fs.add(pendingTxn(42, "SUMMER10"))
	fs.couponMax["SUMMER10"] = 1
	fs.couponUses["SUMMER10"] = 1
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, "")

	result, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID:   "order_abc123",
		GatewayPaymentID: "pay_xyz",
		Status:           "captured",
		Source:           CallbackSourceForm,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
	assert.Equal(t, models.BookingStatusConfirmed, fs.bookings[42])
	assert.Equal(t, 1, fs.couponUses["SUMMER10"], "no redemption past max_uses")
	require.Len(t, pub.confirmed, 1)
}

func TestReconcileUnknownOrder(t *testing.T) {
	fs := newFakeSettlementStore()
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, "")

	_, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID: "order_unknown",
		Status:         "CAPTURED",
		Source:         CallbackSourceQuery,
	})
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)
	assert.Zero(t, fs.settleCalls)
	assert.Empty(t, pub.settled)
}

func TestReconcileMissingOrderID(t *testing.T) {
	sr := NewSettlementReconciler(newFakeSettlementStore(), &fakePublisher{}, "")

	_, err := sr.Reconcile(context.Background(), &CallbackPayload{Status: "captured"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReconcileSignature(t *testing.T) {
	const secret = "whsec_test"

	fs := newFakeSettlementStore()
	fs.add(pendingTxn(42, ""))
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, secret)

	// Wrong signature: rejected, nothing mutated.
	_, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID:   "order_abc123",
		GatewayPaymentID: "pay_xyz",
		Status:           "captured",
		Signature:        "deadbeef",
		Source:           CallbackSourceForm,
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Zero(t, fs.settleCalls)
	assert.Equal(t, models.BookingStatusPending, fs.bookings[42])

	// Webhook delivery without a signature: rejected.
	_, err = sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID: "order_abc123",
		Status:         "captured",
		Source:         CallbackSourceJSON,
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Correct signature settles.
	result, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID:   "order_abc123",
		GatewayPaymentID: "pay_xyz",
		Status:           "captured",
		Signature:        gateway.Signature(secret, "order_abc123", "pay_xyz"),
		Source:           CallbackSourceJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
}

func TestReconcileStoreFailure(t *testing.T) {
	fs := newFakeSettlementStore()
	fs.add(pendingTxn(42, ""))
	fs.settleErr = errors.New("connection reset")
	pub := &fakePublisher{}
	sr := NewSettlementReconciler(fs, pub, "")

	_, err := sr.Reconcile(context.Background(), &CallbackPayload{
		GatewayOrderID: "order_abc123",
		Status:         "captured",
		Source:         CallbackSourceForm,
	})
	assert.ErrorIs(t, err, ErrReconciliationFailed)
	assert.Empty(t, pub.settled, "no events before a successful commit")
	assert.Equal(t, models.BookingStatusPending, fs.bookings[42])
}
