package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"booking-service/internal/gateway"
	"booking-service/internal/models"
	"booking-service/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	txns   map[int64]*models.Transaction
	nextID int64
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{txns: map[int64]*models.Transaction{}, nextID: 100}
}

func (f *fakeOrderStore) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	f.nextID++
	txn.ID = f.nextID
	txn.Status = models.TransactionStatusPending
	copied := *txn
	f.txns[txn.ID] = &copied
	return nil
}

func (f *fakeOrderStore) GetTransactionByID(_ context.Context, id int64) (*models.Transaction, error) {
	txn, ok := f.txns[id]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (f *fakeOrderStore) GetCouponByCode(_ context.Context, _ string) (*models.Coupon, error) {
	return nil, store.ErrCouponNotFound
}

func (f *fakeOrderStore) GetBookingByID(_ context.Context, _ int64) (*models.Booking, error) {
	return nil, store.ErrBookingNotFound
}

func (f *fakeOrderStore) GetRoomByID(_ context.Context, _ int64) (*models.Room, error) {
	return nil, store.ErrRoomNotFound
}

// fakeIdemStore scripts Get/Claim results per call so tests can stage
// the interleavings of two concurrent duplicates.
type fakeIdemStore struct {
	gets     []string // consumed per Get; "" reports an absent key
	claims   []bool   // consumed per Claim; default claim succeeds
	sets     map[string]string
	released []string
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{sets: map[string]string{}}
}

func (f *fakeIdemStore) GetIdempotencyKey(_ context.Context, _ string) (string, error) {
	if len(f.gets) == 0 {
		return "", redis.Nil
	}
	v := f.gets[0]
	f.gets = f.gets[1:]
	if v == "" {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeIdemStore) SetIdempotencyKey(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.sets[key] = value.(string)
	return nil
}

func (f *fakeIdemStore) ClaimIdempotencyKey(_ context.Context, _ string, _ interface{}, _ time.Duration) (bool, error) {
	if len(f.claims) == 0 {
		return true, nil
	}
	v := f.claims[0]
	f.claims = f.claims[1:]
	return v, nil
}

func (f *fakeIdemStore) ReleaseIdempotencyKey(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

type fakeOrderGateway struct {
	err   error
	calls int
}

func (f *fakeOrderGateway) CreateOrder(_ context.Context, req *gateway.OrderRequest) (*gateway.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Order{
		ID:       "order_fake_1",
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
	}, nil
}

func orderRequest(key string) *CreateOrderRequest {
	return &CreateOrderRequest{
		Name:           "Asha Rao",
		Email:          "asha@example.com",
		Amount:         1000000,
		IdempotencyKey: key,
	}
}

func TestCreateOrderRecordsTransaction(t *testing.T) {
	fs := newFakeOrderStore()
	idem := newFakeIdemStore()
	gw := &fakeOrderGateway{}
	ps := NewPaymentService(fs, idem, gw, testTaxPolicy)

	resp, err := ps.CreateOrder(context.Background(), orderRequest("key-1"))
	require.NoError(t, err)

	assert.Equal(t, "order_fake_1", resp.GatewayOrderID)
	assert.Equal(t, 1, gw.calls)

	txn := fs.txns[resp.TransactionID]
	require.NotNil(t, txn)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Equal(t, resp.Amount, txn.TotalAmount)

	// The claim marker is overwritten with the transaction id.
	assert.Equal(t, strconv.FormatInt(resp.TransactionID, 10), idem.sets["key-1"])
	assert.Empty(t, idem.released)
}

func TestCreateOrderReplaysCompletedRequest(t *testing.T) {
	fs := newFakeOrderStore()
	existing := &models.Transaction{
		UserName:       "Asha Rao",
		UserEmail:      "asha@example.com",
		Amount:         1000000,
		TotalAmount:    1180000,
		GatewayOrderID: "order_prior",
	}
	require.NoError(t, fs.CreateTransaction(context.Background(), existing))

	idem := newFakeIdemStore()
	idem.gets = []string{strconv.FormatInt(existing.ID, 10)}
	gw := &fakeOrderGateway{}
	ps := NewPaymentService(fs, idem, gw, testTaxPolicy)

	resp, err := ps.CreateOrder(context.Background(), orderRequest("key-1"))
	require.NoError(t, err)

	assert.Equal(t, existing.ID, resp.TransactionID)
	assert.Equal(t, "order_prior", resp.GatewayOrderID)
	assert.Zero(t, gw.calls, "a replayed order must not reach the gateway")
}

// Two duplicates race past the initial read; the loser of the claim
// replays the winner's transaction once it lands, never charging twice.
func TestCreateOrderClaimLostReplaysWinner(t *testing.T) {
	fs := newFakeOrderStore()
	winner := &models.Transaction{
		UserName:       "Asha Rao",
		UserEmail:      "asha@example.com",
		Amount:         1000000,
		TotalAmount:    1180000,
		GatewayOrderID: "order_winner",
	}
	require.NoError(t, fs.CreateTransaction(context.Background(), winner))

	idem := newFakeIdemStore()
	idem.gets = []string{"", strconv.FormatInt(winner.ID, 10)}
	idem.claims = []bool{false}
	gw := &fakeOrderGateway{}
	ps := NewPaymentService(fs, idem, gw, testTaxPolicy)

	resp, err := ps.CreateOrder(context.Background(), orderRequest("key-1"))
	require.NoError(t, err)

	assert.Equal(t, winner.ID, resp.TransactionID)
	assert.Zero(t, gw.calls)
}

// The loser of the claim while the winner is still in flight is rejected
// rather than creating a second charge.
func TestCreateOrderClaimLostInFlight(t *testing.T) {
	idem := newFakeIdemStore()
	idem.gets = []string{"", orderInFlightMarker}
	idem.claims = []bool{false}
	gw := &fakeOrderGateway{}
	ps := NewPaymentService(newFakeOrderStore(), idem, gw, testTaxPolicy)

	_, err := ps.CreateOrder(context.Background(), orderRequest("key-1"))

	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Zero(t, gw.calls)
}

// A failed attempt releases its claim so the client's retry is not
// locked out for the key's whole TTL.
func TestCreateOrderReleasesClaimOnGatewayFailure(t *testing.T) {
	idem := newFakeIdemStore()
	gw := &fakeOrderGateway{err: errors.New("gateway unreachable")}
	ps := NewPaymentService(newFakeOrderStore(), idem, gw, testTaxPolicy)

	_, err := ps.CreateOrder(context.Background(), orderRequest("key-1"))

	require.Error(t, err)
	assert.Equal(t, []string{"key-1"}, idem.released)
	assert.Empty(t, idem.sets)
}
