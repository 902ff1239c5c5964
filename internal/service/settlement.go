package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"booking-service/internal/gateway"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CallbackSource tags where a callback payload was parsed from. The API
// boundary collapses every transport shape into one CallbackPayload
// before any business logic runs.
type CallbackSource string

const (
	CallbackSourceQuery CallbackSource = "query" // browser redirect, GET query params
	CallbackSourceForm  CallbackSource = "form"  // browser redirect, POST form body
	CallbackSourceJSON  CallbackSource = "json"  // server-to-server webhook, JSON body
)

// CallbackPayload is the canonical gateway callback
type CallbackPayload struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Status           string
	Signature        string
	Method           string
	Source           CallbackSource
}

// ReconcileResult reports the transaction's terminal state after a
// callback has been processed
type ReconcileResult struct {
	TransactionID int64
	BookingID     *int64
	Status        string
	AlreadyFinal  bool
}

// successStatuses is the explicit allow-list of gateway status codes that
// settle a payment as SUCCESS; anything else settles as FAILED.
var successStatuses = map[string]bool{
	"authorized":  true,
	"captured":    true,
	"processed":   true,
	"success":     true,
	"paid":        true,
	"charged":     true,
	"txn_success": true,
}

// MapGatewayStatus classifies a gateway status code into a terminal
// transaction status
func MapGatewayStatus(status string) string {
	if successStatuses[strings.ToLower(strings.TrimSpace(status))] {
		return models.TransactionStatusSuccess
	}
	return models.TransactionStatusFailed
}

// settlementStore is the slice of the store the reconciler mutates
// through. All settlement writes go through SettleTransaction's single
// atomic commit.
type settlementStore interface {
	GetTransactionByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Transaction, error)
	SettleTransaction(ctx context.Context, txnID int64, status, gatewayPaymentID, paymentMethod string) (string, bool, error)
}

// settlementPublisher dispatches post-commit notifications. Publish
// failures are logged and never fed back into settlement.
type settlementPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error
	PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error
	PublishPaymentSettled(ctx context.Context, event *models.PaymentSettledEvent) error
}

// SettlementReconciler consumes gateway callbacks and transitions a
// Transaction and its Booking to a terminal state, exactly once per
// gateway order id no matter how many times the callback is delivered.
type SettlementReconciler struct {
	store         settlementStore
	eventPub      settlementPublisher
	webhookSecret string
	logger        *zap.Logger
}

// NewSettlementReconciler creates a new settlement reconciler. An empty
// webhookSecret disables signature verification.
func NewSettlementReconciler(store settlementStore, eventPub settlementPublisher, webhookSecret string) *SettlementReconciler {
	return &SettlementReconciler{
		store:         store,
		eventPub:      eventPub,
		webhookSecret: webhookSecret,
		logger:        util.GetLogger(),
	}
}

// Reconcile processes one callback delivery. Duplicate deliveries for a
// settled transaction are no-ops that report the recorded terminal state.
// Signature mismatches and unknown order ids never mutate state.
func (sr *SettlementReconciler) Reconcile(ctx context.Context, payload *CallbackPayload) (*ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "SettlementReconciler.Reconcile")
	defer span.End()

	if payload.GatewayOrderID == "" {
		util.CallbackErrorsTotal.WithLabelValues("missing_order_id").Inc()
		return nil, fmt.Errorf("%w: callback missing gateway order id", ErrInvalidInput)
	}

	txn, err := sr.store.GetTransactionByGatewayOrderID(ctx, payload.GatewayOrderID)
	if err != nil {
		util.CallbackErrorsTotal.WithLabelValues("transaction_not_found").Inc()
		sr.logger.Warn("Callback for unknown gateway order",
			zap.String("gateway_order_id", payload.GatewayOrderID),
			zap.String("source", string(payload.Source)))
		return nil, err
	}

	if err := sr.verifySignature(txn, payload); err != nil {
		util.CallbackErrorsTotal.WithLabelValues("invalid_signature").Inc()
		sr.logger.Warn("Callback signature rejected",
			zap.String("gateway_order_id", payload.GatewayOrderID),
			zap.Int64("transaction_id", txn.ID))
		return nil, err
	}

	if txn.Status != models.TransactionStatusPending {
		sr.logger.Info("Callback for settled transaction, ignoring",
			zap.Int64("transaction_id", txn.ID),
			zap.String("status", txn.Status))
		return &ReconcileResult{
			TransactionID: txn.ID,
			BookingID:     txn.BookingID,
			Status:        txn.Status,
			AlreadyFinal:  true,
		}, nil
	}

	target := MapGatewayStatus(payload.Status)

	final, applied, err := sr.store.SettleTransaction(ctx, txn.ID, target,
		payload.GatewayPaymentID, payload.Method)
	if err != nil {
		util.CallbackErrorsTotal.WithLabelValues("reconciliation_failed").Inc()
		sr.logger.Error("Settlement commit failed",
			zap.Int64("transaction_id", txn.ID),
			zap.String("gateway_order_id", payload.GatewayOrderID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrReconciliationFailed, err)
	}

	result := &ReconcileResult{
		TransactionID: txn.ID,
		BookingID:     txn.BookingID,
		Status:        final,
		AlreadyFinal:  !applied,
	}

	if !applied {
		// Lost a duplicate-delivery race after the initial read; the
		// other delivery already published.
		return result, nil
	}

	util.SettlementsTotal.WithLabelValues(strings.ToLower(final)).Inc()
	sr.logger.Info("Transaction settled",
		zap.Int64("transaction_id", txn.ID),
		zap.String("gateway_order_id", payload.GatewayOrderID),
		zap.String("status", final))

	sr.publishOutcome(ctx, txn, payload, final)
	return result, nil
}

// verifySignature enforces the shared-secret HMAC when one is
// configured. Server-to-server webhooks must carry a signature; browser
// redirect sources are verified only when the gateway included one.
func (sr *SettlementReconciler) verifySignature(txn *models.Transaction, payload *CallbackPayload) error {
	if sr.webhookSecret == "" {
		return nil
	}
	if payload.Signature == "" {
		if payload.Source == CallbackSourceJSON {
			return ErrInvalidSignature
		}
		return nil
	}
	if !gateway.VerifySignature(sr.webhookSecret, payload.GatewayOrderID, payload.GatewayPaymentID, payload.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// publishOutcome emits post-commit events. Fire-and-forget: a broker
// outage must not look like a settlement failure.
func (sr *SettlementReconciler) publishOutcome(ctx context.Context, txn *models.Transaction, payload *CallbackPayload, final string) {
	now := time.Now()

	settled := &models.PaymentSettledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentSettled,
			Timestamp: now,
		},
		TransactionID:    txn.ID,
		BookingID:        txn.BookingID,
		GatewayOrderID:   payload.GatewayOrderID,
		GatewayPaymentID: payload.GatewayPaymentID,
		Status:           final,
		TotalAmount:      txn.TotalAmount,
	}
	if err := sr.eventPub.PublishPaymentSettled(ctx, settled); err != nil {
		sr.logger.Error("Failed to publish PaymentSettled event", zap.Error(err))
	}

	if txn.BookingID == nil {
		return
	}

	if final == models.TransactionStatusSuccess {
		event := &models.BookingConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeBookingConfirmed,
				Timestamp: now,
			},
			BookingID:     *txn.BookingID,
			TransactionID: txn.ID,
			GuestName:     txn.UserName,
			GuestEmail:    txn.UserEmail,
			TotalAmount:   txn.TotalAmount,
		}
		if err := sr.eventPub.PublishBookingConfirmed(ctx, event); err != nil {
			sr.logger.Error("Failed to publish BookingConfirmed event", zap.Error(err))
		}
		return
	}

	event := &models.BookingCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBookingCancelled,
			Timestamp: now,
		},
		BookingID:     *txn.BookingID,
		TransactionID: txn.ID,
		GuestEmail:    txn.UserEmail,
		Reason:        "payment_failed",
	}
	if err := sr.eventPub.PublishBookingCancelled(ctx, event); err != nil {
		sr.logger.Error("Failed to publish BookingCancelled event", zap.Error(err))
	}
}
