package metrics

import "time"

// OperationEvent is emitted when a command line operation finishes.
type OperationEvent struct {
	RunID     string
	Operation string
	Duration  time.Duration
	Created   int
	Error     string
	Time      time.Time
}

// Status returns "ok" or "error".
func (e OperationEvent) Status() string {
	if e.Error != "" {
		return "error"
	}
	return "ok"
}

// MetricsSink records operation outcomes.
type MetricsSink interface {
	RecordOperation(ev OperationEvent) error
}

// DeviceLoadEvent is one load update of a demand response device.
type DeviceLoadEvent struct {
	DeviceID     string
	PortfolioID  string
	InitialKW    float64
	CurrentKW    float64
	ActiveOrders int
	// DeviceErr and TelemetryErr are empty when the serial device and the
	// telemetry upload succeeded.
	DeviceErr    string
	TelemetryErr string
	Time         time.Time
}

// ReductionKW is the load shed because of active orders.
func (e DeviceLoadEvent) ReductionKW() float64 { return e.InitialKW - e.CurrentKW }

// DeviceLoadRecorder records device load updates.
type DeviceLoadRecorder interface {
	RecordDeviceLoad(ev DeviceLoadEvent) error
}

// TradeEvent summarizes the trades found on a grid node after a buy order.
type TradeEvent struct {
	GridNodeID    string
	Trades        int
	Quantity      float64
	MeanUnitPrice float64
	Time          time.Time
}

// TradeRecorder records trade summaries.
type TradeRecorder interface {
	RecordTrades(ev TradeEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordOperation(OperationEvent) error   { return nil }
func (NopSink) RecordDeviceLoad(DeviceLoadEvent) error { return nil }
func (NopSink) RecordTrades(TradeEvent) error          { return nil }
