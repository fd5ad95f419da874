package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "fleetsense/core/metrics"
)

// PromSink records pipeline events in Prometheus metrics.
type PromSink struct {
	readings *prometheus.CounterVec
	alerts   *prometheus.CounterVec
	bookings *prometheus.CounterVec
	duration prometheus.Histogram
	health   *prometheus.GaugeVec
}

// NewPromSink registers pipeline metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	readings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_readings_total",
		Help: "Total number of accepted telemetry readings",
	}, []string{"vehicle_id", "anomalous"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_alerts_total",
		Help: "Total number of emitted maintenance alerts",
	}, []string{"component", "risk_level"})
	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appointment_bookings_total",
		Help: "Total number of booking attempts by outcome",
	}, []string{"status", "auto"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_step_duration_seconds",
		Help:    "Time to run one reading through the full decision chain",
		Buckets: prometheus.DefBuckets,
	})
	health := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_health_score",
		Help: "Latest overall health score per vehicle",
	}, []string{"vehicle_id"})

	if err := reg.Register(readings); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			readings = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(alerts); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			alerts = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(bookings); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			bookings = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(health); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			health = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{readings: readings, alerts: alerts, bookings: bookings, duration: duration, health: health}, nil
}

// RecordReading increments the reading counter and updates the health gauge.
func (s *PromSink) RecordReading(ev coremetrics.ReadingEvent) error {
	s.readings.WithLabelValues(ev.VehicleID, strconv.FormatBool(ev.Anomalous)).Inc()
	s.duration.Observe(ev.Duration.Seconds())
	s.health.WithLabelValues(ev.VehicleID).Set(ev.Overall)
	return nil
}

// RecordAlert increments the alert counter for the component and risk level.
func (s *PromSink) RecordAlert(ev coremetrics.AlertEvent) error {
	s.alerts.WithLabelValues(string(ev.Component), ev.Risk.String()).Inc()
	return nil
}

// RecordBooking increments the booking counter for the outcome.
func (s *PromSink) RecordBooking(ev coremetrics.BookingEvent) error {
	s.bookings.WithLabelValues(string(ev.Status), strconv.FormatBool(ev.Auto)).Inc()
	return nil
}
