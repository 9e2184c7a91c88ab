package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks marketplace activity for the Prometheus scrape
// endpoint. It satisfies the facade's metrics sink interface.
type MarketMetrics struct {
	listings    prometheus.Counter
	purchases   prometheus.Counter
	volumeMinor prometheus.Counter
	failures    *prometheus.CounterVec
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// Market returns the lazily-initialised marketplace metrics registry.
func Market() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listings: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tokenmart",
				Subsystem: "market",
				Name:      "listings_total",
				Help:      "Count of assets listed or relisted.",
			}),
			purchases: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tokenmart",
				Subsystem: "market",
				Name:      "purchases_total",
				Help:      "Count of settled purchases.",
			}),
			volumeMinor: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tokenmart",
				Subsystem: "market",
				Name:      "settled_value_minor_total",
				Help:      "Cumulative settled payment value in minor units.",
			}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tokenmart",
				Subsystem: "market",
				Name:      "operation_failures_total",
				Help:      "Count of rejected marketplace operations segmented by operation.",
			}, []string{"op"}),
		}
		prometheus.MustRegister(
			marketRegistry.listings,
			marketRegistry.purchases,
			marketRegistry.volumeMinor,
			marketRegistry.failures,
		)
	})
	return marketRegistry
}

// RecordListing increments the listing counter.
func (m *MarketMetrics) RecordListing() {
	if m == nil {
		return
	}
	m.listings.Inc()
}

// RecordPurchase increments the purchase counter and adds the settled value.
func (m *MarketMetrics) RecordPurchase(valueMinor *big.Int) {
	if m == nil {
		return
	}
	m.purchases.Inc()
	if valueMinor != nil {
		value, _ := new(big.Float).SetInt(valueMinor).Float64()
		m.volumeMinor.Add(value)
	}
}

// RecordFailure increments the failure counter for the supplied operation.
func (m *MarketMetrics) RecordFailure(op string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op).Inc()
}
