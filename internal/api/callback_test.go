package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"booking-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ginContext(t *testing.T, req *http.Request) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestParseCallbackQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/payments/callback?order_id=order_abc&payment_id=pay_1&status=captured&signature=sig1", nil)

	payload, err := parseCallback(ginContext(t, req))
	require.NoError(t, err)

	assert.Equal(t, service.CallbackSourceQuery, payload.Source)
	assert.Equal(t, "order_abc", payload.GatewayOrderID)
	assert.Equal(t, "pay_1", payload.GatewayPaymentID)
	assert.Equal(t, "captured", payload.Status)
	assert.Equal(t, "sig1", payload.Signature)
}

func TestParseCallbackForm(t *testing.T) {
	form := url.Values{
		"razorpay_order_id":   {"order_abc"},
		"razorpay_payment_id": {"pay_1"},
		"txn_status":          {"TXN_SUCCESS"},
		"razorpay_signature":  {"sig1"},
		"method":              {"upi"},
	}
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/payments/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	payload, err := parseCallback(ginContext(t, req))
	require.NoError(t, err)

	assert.Equal(t, service.CallbackSourceForm, payload.Source)
	assert.Equal(t, "order_abc", payload.GatewayOrderID)
	assert.Equal(t, "pay_1", payload.GatewayPaymentID)
	assert.Equal(t, "TXN_SUCCESS", payload.Status)
	assert.Equal(t, "sig1", payload.Signature)
	assert.Equal(t, "upi", payload.Method)
}

func TestParseCallbackJSON(t *testing.T) {
	body := `{"order_id":"order_abc","payment_id":"pay_1","status":"captured","signature":"sig1"}`
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/payments/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	payload, err := parseCallback(ginContext(t, req))
	require.NoError(t, err)

	assert.Equal(t, service.CallbackSourceJSON, payload.Source)
	assert.Equal(t, "order_abc", payload.GatewayOrderID)
	assert.Equal(t, "captured", payload.Status)
}

// The merchant order reference is the fallback when the gateway omits
// its own order id.
func TestParseCallbackMerchantRefFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/payments/callback?merchant_order_ref=order_abc&status=failed", nil)

	payload, err := parseCallback(ginContext(t, req))
	require.NoError(t, err)

	assert.Equal(t, "order_abc", payload.GatewayOrderID)
}

// All three shapes must collapse to the same canonical payload.
func TestParseCallbackShapesAgree(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet,
		"/api/v1/payments/callback?order_id=order_abc&payment_id=pay_1&status=captured", nil)

	form := url.Values{"order_id": {"order_abc"}, "payment_id": {"pay_1"}, "status": {"captured"}}
	post := httptest.NewRequest(http.MethodPost,
		"/api/v1/payments/callback", strings.NewReader(form.Encode()))
	post.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	jsonReq := httptest.NewRequest(http.MethodPost,
		"/api/v1/payments/callback", strings.NewReader(`{"order_id":"order_abc","payment_id":"pay_1","status":"captured"}`))
	jsonReq.Header.Set("Content-Type", "application/json")

	a, err := parseCallback(ginContext(t, get))
	require.NoError(t, err)
	b, err := parseCallback(ginContext(t, post))
	require.NoError(t, err)
	c, err := parseCallback(ginContext(t, jsonReq))
	require.NoError(t, err)

	b.Source, c.Source = a.Source, a.Source
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}
