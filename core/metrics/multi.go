package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOperation forwards the event to every sink and joins their errors.
func (m *MultiSink) RecordOperation(ev OperationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordOperation(ev))
	}
	return errors.Join(errs...)
}

// RecordDeviceLoad forwards the event to sinks that record device loads.
func (m *MultiSink) RecordDeviceLoad(ev DeviceLoadEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(DeviceLoadRecorder); ok {
			errs = append(errs, r.RecordDeviceLoad(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordTrades forwards the event to sinks that record trades.
func (m *MultiSink) RecordTrades(ev TradeEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(TradeRecorder); ok {
			errs = append(errs, r.RecordTrades(ev))
		}
	}
	return errors.Join(errs...)
}
