package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_failed_total",
		Help: "Total number of failed booking attempts",
	}, []string{"reason"})

	BookingConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Total number of booking attempts rejected as unavailable",
	}, []string{"guard"})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of gateway orders attempted",
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of gateway order attempts that failed",
	})

	GatewayOrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_order_latency_seconds",
		Help:    "Latency of gateway order creation calls",
		Buckets: prometheus.DefBuckets,
	})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Total number of transactions settled, by terminal status",
	}, []string{"status"})

	CallbackErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callback_errors_total",
		Help: "Total number of gateway callbacks rejected",
	}, []string{"reason"})

	CouponRedemptionsMissedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coupon_redemptions_missed_total",
		Help: "Settlements confirmed without redeeming an exhausted or deactivated coupon",
	})

	TransactionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transactions_expired_total",
		Help: "Total number of stale PENDING transactions expired by the sweep",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of guest notifications dispatched",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
