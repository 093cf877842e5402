package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "travel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_booking_transitions_total",
			Help: "Booking status transitions by source and target status",
		},
		[]string{"from", "to"},
	)

	CapacityRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travel_capacity_rejections_total",
			Help: "Seat reservations refused because the tour was full",
		},
	)

	LedgerRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_mileage_ledger_records_total",
			Help: "Mileage ledger rows written by transaction type",
		},
		[]string{"type"},
	)

	LedgerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_mileage_ledger_rejections_total",
			Help: "Mileage ledger writes refused, by reason",
		},
		[]string{"reason"},
	)

	ApplicationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_application_decisions_total",
			Help: "Deposit/withdrawal application decisions by type and resulting status",
		},
		[]string{"type", "status"},
	)

	AlertsRaisedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_admin_alerts_raised_total",
			Help: "Admin alert raise attempts by type and outcome (created, deduplicated)",
		},
		[]string{"type", "outcome"},
	)

	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travel_sweep_runs_total",
			Help: "Payment expiry sweeps executed",
		},
	)

	SweepExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travel_sweep_expired_total",
			Help: "Bookings expired by the sweeper",
		},
	)

	SweepFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travel_sweep_failures_total",
			Help: "Per-booking failures during payment expiry sweeps",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_notifications_total",
			Help: "Best-effort notification dispatches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBookingTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	BookingTransitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordCapacityRejection() {
	CapacityRejectionsTotal.Inc()
}

func RecordLedgerEntry(txType string) {
	LedgerRecordsTotal.WithLabelValues(txType).Inc()
}

func RecordLedgerRejection(reason string) {
	LedgerRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordApplicationDecision(appType, status string) {
	ApplicationDecisionsTotal.WithLabelValues(appType, status).Inc()
}

func RecordAlert(alertType string, created bool) {
	outcome := "deduplicated"
	if created {
		outcome = "created"
	}
	AlertsRaisedTotal.WithLabelValues(alertType, outcome).Inc()
}

func RecordSweep(expired, failures int) {
	SweepRunsTotal.Inc()
	SweepExpiredTotal.Add(float64(expired))
	SweepFailuresTotal.Add(float64(failures))
}

func RecordNotification(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	NotificationsTotal.WithLabelValues(kind, outcome).Inc()
}
