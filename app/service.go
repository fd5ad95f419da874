package app

import (
	"context"
	"fmt"
	"time"

	"fleetsense/api"
	"fleetsense/config"
	"fleetsense/core/alert"
	"fleetsense/core/anomaly"
	"fleetsense/core/health"
	coremetrics "fleetsense/core/metrics"
	"fleetsense/core/model"
	"fleetsense/core/monitoring"
	"fleetsense/core/pipeline"
	"fleetsense/core/prediction"
	"fleetsense/core/scheduler"
	"fleetsense/core/telemetry"
	"fleetsense/core/vehiclestate"
	"fleetsense/infra/logger"
	"fleetsense/infra/metrics"
	inframon "fleetsense/infra/monitoring"
	"fleetsense/infra/mqtt"
	"fleetsense/infra/store"
	"fleetsense/internal/eventbus"
)

// Service wires the decision pipeline, its stores and the outer surfaces
// (HTTP API, MQTT ingress, metrics) from the configuration.
type Service struct {
	Pipeline  *pipeline.Pipeline
	Pool      *pipeline.Pool
	Scheduler *scheduler.Scheduler
	States    vehiclestate.Store
	Alerts    *eventbus.Bus[model.Alert]

	cfg     *config.Config
	log     logger.Logger
	api     *api.Server
	sqlite  *store.SQLiteStore
	ingress *mqtt.Ingress
	pub     *mqtt.AlertPublisher
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	monitor, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(monitor)

	scorer, err := health.NewScorer(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	detector, err := anomaly.NewDetector(cfg.Anomaly)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	predictor, err := prediction.NewPredictor(cfg.Prediction)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	classifier, err := alert.NewClassifier(cfg.Alerts)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	svc := &Service{cfg: cfg, log: logg}

	var schedStore scheduler.Store = scheduler.NewMemoryStore()
	var audit pipeline.AuditLog
	if cfg.Storage.Backend == "sqlite" {
		sq, err := store.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		svc.sqlite = sq
		schedStore = sq
		audit = sq
	}

	sched, err := scheduler.NewScheduler(cfg.Scheduler, schedStore, logger.New("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	states := vehiclestate.NewMemoryStore(cfg.Pipeline.HistoryLimit)
	bus := eventbus.New[model.Alert]()

	pipe, err := pipeline.New(
		telemetry.NewNormalizer(logger.New("normalizer")),
		scorer, detector, predictor, classifier,
		sched, states, audit, sink, bus,
		logger.New("pipeline"),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	svc.Pipeline = pipe
	svc.Pool = pipeline.NewPool(pipe, cfg.Pipeline.QueueSize, logg)
	svc.Scheduler = sched
	svc.States = states
	svc.Alerts = bus
	svc.api = api.NewServer(pipe, sched, states, logger.New("api"))
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.Pool.Start(ctx)

	if s.cfg.MQTT.Broker != "" {
		in, err := mqtt.NewIngress(s.cfg.MQTT, s.Pool)
		if err != nil {
			return fmt.Errorf("mqtt ingress: %w", err)
		}
		s.ingress = in
		pub, err := mqtt.NewAlertPublisher(s.cfg.MQTT, s.Alerts)
		if err != nil {
			return fmt.Errorf("mqtt alert publisher: %w", err)
		}
		s.pub = pub
	}

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	s.log.Infof("serving API on %s", s.cfg.API.Addr)
	err := s.api.Run(ctx, s.cfg.API.Addr, time.Duration(s.cfg.API.ReadTimeoutSeconds)*time.Second)
	s.Close()
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() {
	if s.ingress != nil {
		s.ingress.Disconnect()
		s.ingress = nil
	}
	s.Pool.Close()
	if s.pub != nil {
		s.pub.Close()
		s.pub = nil
	}
	s.Alerts.Close()
	if s.sqlite != nil {
		_ = s.sqlite.Close()
		s.sqlite = nil
	}
	monitoring.Flush(2 * time.Second)
}
