package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleetsense/core/alert"
	"fleetsense/core/anomaly"
	"fleetsense/core/health"
	"fleetsense/core/logger"
	"fleetsense/core/metrics"
	"fleetsense/core/model"
	"fleetsense/core/monitoring"
	"fleetsense/core/prediction"
	"fleetsense/core/scheduler"
	"fleetsense/core/telemetry"
	"fleetsense/core/vehiclestate"
	"fleetsense/internal/eventbus"
)

// AuditLog durably records every emitted alert. Implementations must accept
// superseded alerts; the log is append-only.
type AuditLog interface {
	AppendAlert(ctx context.Context, a model.Alert) error
}

// Result is the full derived chain for one accepted reading. It is returned
// even when no alert crosses the reportable threshold.
type Result struct {
	Reading    model.SensorReading     `json:"reading"`
	Health     model.HealthScore       `json:"health_score"`
	Anomaly    model.AnomalyFlag       `json:"anomaly_flag"`
	Prediction model.FailurePrediction `json:"prediction"`
	// Alerts holds the reportable alerts (medium and above) of this step.
	Alerts []model.Alert `json:"alerts,omitempty"`
	// Appointments holds the auto-scheduled bookings of this step.
	Appointments []model.Appointment `json:"appointments,omitempty"`
	// BookingError carries scheduling failures (NoCapacityError). The
	// triggering alerts are still present above; the partial-failure state
	// is visible, never dropped.
	BookingError error `json:"-"`
}

// Pipeline runs the decision chain for each reading: normalize, score and
// detect, predict, classify, and auto-schedule severe cases — all within
// one synchronous processing step. Readings of different vehicles may be
// processed concurrently; readings of one vehicle are serialized.
type Pipeline struct {
	normalizer *telemetry.Normalizer
	scorer     *health.Scorer
	detector   *anomaly.Detector
	predictor  *prediction.Predictor
	classifier *alert.Classifier
	scheduler  *scheduler.Scheduler
	states     vehiclestate.Store
	audit      AuditLog
	sink       metrics.Sink
	alerts     *eventbus.Bus[model.Alert]
	log        logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New assembles a Pipeline. audit may be nil; a nil sink defaults to
// NopSink and a nil bus disables alert delivery.
func New(
	normalizer *telemetry.Normalizer,
	scorer *health.Scorer,
	detector *anomaly.Detector,
	predictor *prediction.Predictor,
	classifier *alert.Classifier,
	sched *scheduler.Scheduler,
	states vehiclestate.Store,
	audit AuditLog,
	sink metrics.Sink,
	alerts *eventbus.Bus[model.Alert],
	log logger.Logger,
) (*Pipeline, error) {
	if normalizer == nil || scorer == nil || detector == nil || predictor == nil || classifier == nil || sched == nil || states == nil {
		return nil, errors.New("pipeline: missing stage")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Pipeline{
		normalizer: normalizer,
		scorer:     scorer,
		detector:   detector,
		predictor:  predictor,
		classifier: classifier,
		scheduler:  sched,
		states:     states,
		audit:      audit,
		sink:       sink,
		alerts:     alerts,
		log:        log,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// Process runs one reading through the full chain. It returns a
// ValidationError for malformed or out-of-order input, in which case no
// derived records are produced. A scheduling failure does not fail the
// step: the result carries both the alerts and the booking error.
func (p *Pipeline) Process(ctx context.Context, raw telemetry.RawSample) (Result, error) {
	if raw.VehicleID != "" {
		lock := p.lockFor(raw.VehicleID)
		lock.Lock()
		defer lock.Unlock()
	}
	start := time.Now()

	reading, err := p.normalizer.Normalize(raw)
	if err != nil {
		return Result{}, err
	}

	// Health scoring and anomaly detection consume the same reading
	// independently.
	var (
		h  model.HealthScore
		a  model.AnomalyFlag
		wg sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		h = p.scorer.Score(reading)
	}()
	go func() {
		defer wg.Done()
		a = p.detector.Detect(reading)
	}()
	wg.Wait()

	pred, err := p.predictor.Predict(h, a)
	if err != nil {
		var stale *prediction.StalePairingError
		if !errors.As(err, &stale) {
			return Result{}, err
		}
		// Internal invariant violation: reprocess from the scorer forward
		// once instead of surfacing it to the caller.
		if p.log != nil {
			p.log.Warnf("stale pairing for %s, reprocessing: %v", reading.VehicleID, err)
		}
		monitoring.CaptureException(err, map[string]string{"vehicle_id": reading.VehicleID})
		h = p.scorer.Score(reading)
		if pred, err = p.predictor.Predict(h, a); err != nil {
			return Result{}, fmt.Errorf("reprocess failed: %w", err)
		}
	}

	all := p.classifier.Classify(pred)
	p.states.Apply(h, pred, all)
	p.appendAudit(ctx, all)

	res := Result{Reading: reading, Health: h, Anomaly: a, Prediction: pred}
	for _, al := range all {
		if al.Risk >= model.RiskMedium {
			res.Alerts = append(res.Alerts, al)
		}
		if al.AutoSchedule {
			p.autoSchedule(ctx, al, &res)
		}
	}

	p.publish(res.Alerts)
	p.record(h, a, res, time.Since(start))
	return res, nil
}

// autoSchedule books the service for one severe alert. Booking is
// synchronous with alert generation: a critical alert implies a booked
// appointment, or a visible NoCapacityError, by the time the alert is
// surfaced.
func (p *Pipeline) autoSchedule(ctx context.Context, al model.Alert, res *Result) {
	service := model.ServiceForComponent(al.Component)
	appt, err := p.scheduler.AutoSchedule(ctx, al.VehicleID, service)
	if err != nil {
		if p.log != nil {
			p.log.Errorf("auto-schedule %s for %s: %v", service, al.VehicleID, err)
		}
		res.BookingError = errors.Join(res.BookingError, err)
		p.recordBooking(metrics.BookingEvent{
			VehicleID: al.VehicleID,
			Service:   service,
			Status:    model.AppointmentRejected,
			Auto:      true,
			Time:      al.Timestamp,
		})
		return
	}
	res.Appointments = append(res.Appointments, appt)
	p.recordBooking(metrics.BookingEvent{
		AppointmentID: appt.ID,
		VehicleID:     appt.VehicleID,
		Service:       appt.ServiceType,
		Slot:          appt.Slot,
		Status:        appt.Status,
		Auto:          true,
		Time:          appt.CreatedAt,
	})
}

func (p *Pipeline) appendAudit(ctx context.Context, alerts []model.Alert) {
	if p.audit == nil {
		return
	}
	for _, al := range alerts {
		if err := p.audit.AppendAlert(ctx, al); err != nil && p.log != nil {
			p.log.Errorf("audit append: %v", err)
		}
	}
}

func (p *Pipeline) publish(alerts []model.Alert) {
	if p.alerts == nil {
		return
	}
	for _, al := range alerts {
		p.alerts.Publish(al)
	}
}

func (p *Pipeline) record(h model.HealthScore, a model.AnomalyFlag, res Result, took time.Duration) {
	scores := make(map[model.Component]float64, len(h.Components))
	for comp, cs := range h.Components {
		scores[comp] = cs.Score
	}
	if err := p.sink.RecordReading(metrics.ReadingEvent{
		VehicleID: h.VehicleID,
		Timestamp: h.Timestamp,
		Overall:   h.Overall,
		Scores:    scores,
		Stale:     h.Stale(),
		Anomalous: a.Anomalous,
		Duration:  took,
	}); err != nil && p.log != nil {
		p.log.Errorf("record reading: %v", err)
	}
	for _, al := range res.Alerts {
		if err := p.sink.RecordAlert(metrics.AlertEvent{
			VehicleID:    al.VehicleID,
			Component:    al.Component,
			Risk:         al.Risk,
			Probability:  al.Probability,
			AutoSchedule: al.AutoSchedule,
			Time:         al.Timestamp,
		}); err != nil && p.log != nil {
			p.log.Errorf("record alert: %v", err)
		}
	}
}

func (p *Pipeline) recordBooking(ev metrics.BookingEvent) {
	if err := p.sink.RecordBooking(ev); err != nil && p.log != nil {
		p.log.Errorf("record booking: %v", err)
	}
}

func (p *Pipeline) lockFor(vehicleID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[vehicleID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[vehicleID] = lock
	}
	return lock
}
