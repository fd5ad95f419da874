package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "fleetsense/core/metrics"
	"fleetsense/infra/logger"
)

// InfluxSink writes pipeline events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClientWithOptions(url, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordReading writes the overall and per-component scores of one reading.
func (s *InfluxSink) RecordReading(ev coremetrics.ReadingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("vehicle_health").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("anomalous", strconv.FormatBool(ev.Anomalous)).
		AddTag("stale", strconv.FormatBool(ev.Stale)).
		AddField("overall", round3(ev.Overall)).
		AddField("step_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Timestamp)
	for comp, score := range ev.Scores {
		p = p.AddField("score_"+string(comp), round3(score))
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAlert writes an emitted alert.
func (s *InfluxSink) RecordAlert(ev coremetrics.AlertEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("maintenance_alert").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("component", string(ev.Component)).
		AddTag("risk_level", ev.Risk.String()).
		AddTag("auto_schedule", strconv.FormatBool(ev.AutoSchedule)).
		AddField("probability", round3(ev.Probability)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBooking writes a booking outcome, including rejections.
func (s *InfluxSink) RecordBooking(ev coremetrics.BookingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("appointment_booking").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("service_type", string(ev.Service)).
		AddTag("status", string(ev.Status)).
		AddTag("auto", strconv.FormatBool(ev.Auto))
	if ev.AppointmentID != "" {
		p = p.AddTag("appointment_id", ev.AppointmentID)
	}
	p = p.AddField("slot_hour", ev.Slot.Hour).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
