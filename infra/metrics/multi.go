package metrics

import coremetrics "fleetsense/core/metrics"

// MultiSink fans pipeline events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordReading forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordReading(ev coremetrics.ReadingEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordReading(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAlert forwards alert events.
func (m *MultiSink) RecordAlert(ev coremetrics.AlertEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAlert(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordBooking forwards booking events.
func (m *MultiSink) RecordBooking(ev coremetrics.BookingEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordBooking(ev); err != nil {
			return err
		}
	}
	return nil
}
