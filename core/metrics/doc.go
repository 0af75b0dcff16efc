// Package metrics defines the events recorded while the demo runs and the
// sink interfaces that store them. A MetricsSink records finished
// operations; sinks may also implement DeviceLoadRecorder or TradeRecorder.
// NewMetricsSink builds the configured sinks from the factory registry and
// combines several of them in a MultiSink.
package metrics
