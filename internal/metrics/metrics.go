// Package metrics содержит Prometheus-метрики сервиса
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry хранит метрики приложения
	Registry = prometheus.NewRegistry()

	exchangeOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewear",
			Subsystem: "exchange",
			Name:      "operations_total",
			Help:      "Exchange engine operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rewear",
			Subsystem: "exchange",
			Name:      "operation_duration_seconds",
			Help:      "Duration of exchange engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		},
		[]string{"operation"},
	)

	exchangeAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewear",
			Subsystem: "exchange",
			Name:      "anomalies_total",
			Help:      "Recoverable inconsistencies observed by the exchange engine.",
		},
		[]string{"kind"},
	)

	moderationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewear",
			Subsystem: "moderation",
			Name:      "transitions_total",
			Help:      "Item moderation status transitions.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		exchangeOperations,
		exchangeDuration,
		exchangeAnomalies,
		moderationTransitions,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
}

// Handler отдаёт метрики в формате Prometheus
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordExchange учитывает операцию движка обменов.
// outcome - "ok" или вид ошибки.
func RecordExchange(operation, outcome string, d time.Duration) {
	exchangeOperations.WithLabelValues(operation, outcome).Inc()
	exchangeDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordAnomaly учитывает некритичное несоответствие данных
func RecordAnomaly(kind string) {
	exchangeAnomalies.WithLabelValues(kind).Inc()
}

// RecordModeration учитывает смену статуса модерации
func RecordModeration(status string) {
	moderationTransitions.WithLabelValues(status).Inc()
}
