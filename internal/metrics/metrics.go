// Package metrics exposes prometheus collectors for coupon validation and proration outcomes.
package metrics

import (
	"time"

	"github.com/assistly/billing/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "assistly_billing"

// Metrics holds the collectors recorded by the service layer
type Metrics struct {
	couponValidations  *prometheus.CounterVec
	validationDuration prometheus.Histogram
	fraudSignals       *prometheus.CounterVec
	redemptions        *prometheus.CounterVec
	discountUSD        prometheus.Counter
	prorations         *prometheus.CounterVec
	prorationNetCharge prometheus.Histogram
}

// New registers the collectors with reg. It panics on duplicate registration, like promauto.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		couponValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "coupon",
				Name:      "validations_total",
				Help:      "Coupon validations by outcome and error code.",
			},
			[]string{"result", "error_code"},
		),
		validationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "coupon",
				Name:      "validation_duration_seconds",
				Help:      "Time spent validating a coupon, including history hydration.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		fraudSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "coupon",
				Name:      "fraud_signals_total",
				Help:      "Fraud signals raised during coupon validation.",
			},
			[]string{"type", "severity"},
		),
		redemptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "coupon",
				Name:      "redemptions_total",
				Help:      "Successful coupon redemptions by discount type.",
			},
			[]string{"discount_type"},
		),
		discountUSD: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "coupon",
				Name:      "discount_usd_total",
				Help:      "Sum of monetary discounts granted by redemptions.",
			},
		),
		prorations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proration",
				Name:      "tier_changes_total",
				Help:      "Applied tier changes by direction.",
			},
			[]string{"direction"},
		),
		prorationNetCharge: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proration",
				Name:      "net_charge_usd",
				Help:      "Net charge of applied tier changes.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			},
		),
	}

	reg.MustRegister(
		m.couponValidations,
		m.validationDuration,
		m.fraudSignals,
		m.redemptions,
		m.discountUSD,
		m.prorations,
		m.prorationNetCharge,
	)
	return m
}

// NewNoop returns metrics registered on a private registry, for tests and the CLI
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveCouponValidation(valid bool, code types.CouponValidationErrorCode, elapsed time.Duration) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.couponValidations.WithLabelValues(result, string(code)).Inc()
	m.validationDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveFraudSignal(t types.FraudDetectionType, severity types.FraudSeverity) {
	m.fraudSignals.WithLabelValues(string(t), string(severity)).Inc()
}

func (m *Metrics) ObserveRedemption(discountType types.DiscountType, discount decimal.Decimal) {
	m.redemptions.WithLabelValues(string(discountType)).Inc()
	m.discountUSD.Add(discount.InexactFloat64())
}

// ObserveTierChange records an applied proration. direction is upgrade, downgrade or lateral.
func (m *Metrics) ObserveTierChange(direction string, netCharge decimal.Decimal) {
	m.prorations.WithLabelValues(direction).Inc()
	m.prorationNetCharge.Observe(netCharge.InexactFloat64())
}
