package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"booking-service/internal/models"
	"booking-service/internal/service"
	"booking-service/internal/store"

	"github.com/gin-gonic/gin"
)

// callback redirect reason codes
const (
	reasonTransactionNotFound  = "transaction_not_found"
	reasonInvalidSignature     = "invalid_signature"
	reasonReconciliationFailed = "reconciliation_failed"
	reasonInvalidCallback      = "invalid_callback"
	reasonPaymentFailed        = "payment_failed"
)

// callbackBody covers the field spellings gateways use in form and JSON
// callbacks. Only one of each pair is populated per delivery.
type callbackBody struct {
	OrderID          string `form:"order_id" json:"order_id"`
	RazorpayOrderID  string `form:"razorpay_order_id" json:"razorpay_order_id"`
	PaymentID        string `form:"payment_id" json:"payment_id"`
	RazorpayPayID    string `form:"razorpay_payment_id" json:"razorpay_payment_id"`
	Status           string `form:"status" json:"status"`
	TxnStatus        string `form:"txn_status" json:"txn_status"`
	Signature        string `form:"signature" json:"signature"`
	RazorpaySig      string `form:"razorpay_signature" json:"razorpay_signature"`
	Method           string `form:"method" json:"method"`
	MerchantOrderRef string `form:"merchant_order_ref" json:"merchant_order_ref"`
}

func (b *callbackBody) normalize(source service.CallbackSource) *service.CallbackPayload {
	first := func(vals ...string) string {
		for _, v := range vals {
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	return &service.CallbackPayload{
		GatewayOrderID:   first(b.OrderID, b.RazorpayOrderID, b.MerchantOrderRef),
		GatewayPaymentID: first(b.PaymentID, b.RazorpayPayID),
		Status:           first(b.Status, b.TxnStatus),
		Signature:        first(b.Signature, b.RazorpaySig),
		Method:           b.Method,
		Source:           source,
	}
}

// parseCallback collapses the three delivery shapes — GET query params,
// POST form body, POST JSON body — into one canonical payload before any
// business logic runs.
func parseCallback(c *gin.Context) (*service.CallbackPayload, error) {
	var body callbackBody

	if c.Request.Method == http.MethodGet {
		if err := c.ShouldBindQuery(&body); err != nil {
			return nil, err
		}
		return body.normalize(service.CallbackSourceQuery), nil
	}

	contentType := c.ContentType()
	if strings.Contains(contentType, "json") {
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			return nil, err
		}
		return body.normalize(service.CallbackSourceJSON), nil
	}

	if err := c.ShouldBind(&body); err != nil {
		return nil, err
	}
	return body.normalize(service.CallbackSourceForm), nil
}

// paymentCallback is the gateway's re-entry point. The browser is always
// redirected to a success or failure page; raw internal errors never
// reach it. A non-2xx is never returned for settled duplicates, so the
// gateway stops retrying them.
func (h *Handler) paymentCallback(c *gin.Context) {
	payload, err := parseCallback(c)
	if err != nil {
		h.redirectFailure(c, reasonInvalidCallback)
		return
	}

	result, err := h.reconciler.Reconcile(c.Request.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.redirectFailure(c, reasonTransactionNotFound)
		case errors.Is(err, service.ErrInvalidSignature):
			h.redirectFailure(c, reasonInvalidSignature)
		case errors.Is(err, service.ErrInvalidInput):
			h.redirectFailure(c, reasonInvalidCallback)
		default:
			// Store error during the atomic commit. The gateway's own
			// retry redelivers the callback.
			h.redirectFailure(c, reasonReconciliationFailed)
		}
		return
	}

	if result.Status == models.TransactionStatusSuccess {
		h.redirect(c, "/payment/success", url.Values{
			"transaction_id": {fmt.Sprintf("%d", result.TransactionID)},
		})
		return
	}

	h.redirect(c, "/payment/failure", url.Values{
		"transaction_id": {fmt.Sprintf("%d", result.TransactionID)},
		"reason":         {reasonPaymentFailed},
	})
}

func (h *Handler) redirect(c *gin.Context, path string, params url.Values) {
	c.Redirect(http.StatusFound, h.redirectBase+path+"?"+params.Encode())
}

func (h *Handler) redirectFailure(c *gin.Context, reason string) {
	h.redirect(c, "/payment/failure", url.Values{"reason": {reason}})
}
