// Package metrics содержит Prometheus-метрики сервиса бронирования.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smarthotel"

var (
	storeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_request_duration_seconds",
			Help:      "Duration of resource store requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "code"},
	)

	bookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_operations_total",
			Help:      "Total booking operations by outcome",
		},
		[]string{"operation", "status"},
	)

	paymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payments processed, split into newly created and replayed",
		},
		[]string{"result"},
	)

	pointsRedeemed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_redeemed_total",
			Help:      "Loyalty points redeemed",
		},
	)

	compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Compensating writes by target and outcome",
		},
		[]string{"target", "status"},
	)

	reconciledBookings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_bookings_total",
			Help:      "Pending bookings linked to an existing payment by the reconciliation worker",
		},
	)
)

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStoreRequest фиксирует длительность запроса к хранилищу. code = 0 означает сетевую ошибку.
func ObserveStoreRequest(operation string, code int, d time.Duration) {
	storeRequestDuration.WithLabelValues(operation, strconv.Itoa(code)).Observe(d.Seconds())
}

// TrackBooking учитывает результат операции над бронированием.
func TrackBooking(operation, status string) {
	bookingOperations.WithLabelValues(operation, status).Inc()
}

// TrackPayment учитывает обработанную оплату.
func TrackPayment(created bool) {
	result := "replayed"
	if created {
		result = "created"
	}
	paymentsTotal.WithLabelValues(result).Inc()
}

// TrackRedemption учитывает списанные баллы.
func TrackRedemption(points int64) {
	pointsRedeemed.Add(float64(points))
}

// TrackCompensation учитывает компенсирующую запись.
func TrackCompensation(target string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	compensations.WithLabelValues(target, status).Inc()
}

// TrackReconciled учитывает бронирование, восстановленное фоновой сверкой.
func TrackReconciled() {
	reconciledBookings.Inc()
}
