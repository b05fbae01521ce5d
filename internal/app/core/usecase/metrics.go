package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cash_ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by type and result",
		},
		[]string{"op", "result"},
	)

	conversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cash_ledger",
			Name:      "conversions_total",
			Help:      "Balance conversions by outcome",
		},
		[]string{"outcome"},
	)
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = domain.KindOf(err).String()
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}
