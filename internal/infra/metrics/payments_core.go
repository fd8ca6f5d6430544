package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		paymentSettlementsTotal,
		paymentsRevenueTotal,
		stalePendingTransactions,
	)
}

var (
	// outcome: redirected|awaiting_data|deposited|failed|rejected|error
	paymentSettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_settlements_total",
			Help: "Settlement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of deposited payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	stalePendingTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_stale_pending_transactions",
			Help: "Transactions still waiting for a gateway notification past the stale threshold.",
		},
	)
)

func IncSettlement(outcome string) {
	paymentSettlementsTotal.WithLabelValues(norm(outcome)).Inc()
}

// AddPaymentRevenue is approximate; the ledger keeps exact amounts.
func AddPaymentRevenue(currency string, amount decimal.Decimal) {
	paymentsRevenueTotal.WithLabelValues(strings.ToUpper(currency)).Add(amount.InexactFloat64())
}

func SetStalePending(n int) {
	stalePendingTransactions.Set(float64(n))
}
