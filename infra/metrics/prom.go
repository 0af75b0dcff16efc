package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
)

// PromSink exposes operation, device and trade metrics to Prometheus.
type PromSink struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	load       *prometheus.GaugeVec
	reduction  *prometheus.GaugeVec
	syncErrors *prometheus.CounterVec
	trades     *prometheus.GaugeVec
	traded     *prometheus.GaugeVec
	meanPrice  *prometheus.GaugeVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register adds c to reg, reusing an identical collector registered before.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on reg. A nil registerer
// defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.operations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flexmarket_operations_total",
		Help: "Demo operations run, by outcome",
	}, []string{"operation", "status"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flexmarket_operation_duration_seconds",
		Help:    "Duration of demo operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if s.load, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexmarket_device_load_kw",
		Help: "Current load of demand response devices",
	}, []string{"device_id"})); err != nil {
		return nil, err
	}
	if s.reduction, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexmarket_device_load_reduction_kw",
		Help: "Load shed by demand response devices because of active orders",
	}, []string{"device_id"})); err != nil {
		return nil, err
	}
	if s.syncErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flexmarket_device_sync_errors_total",
		Help: "Failed device updates by target (serial or telemetry)",
	}, []string{"device_id", "target"})); err != nil {
		return nil, err
	}
	if s.trades, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexmarket_grid_node_trades",
		Help: "Trades found on a grid node after the last buy order",
	}, []string{"grid_node_id"})); err != nil {
		return nil, err
	}
	if s.traded, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexmarket_grid_node_traded_quantity",
		Help: "Quantity traded on a grid node",
	}, []string{"grid_node_id"})); err != nil {
		return nil, err
	}
	if s.meanPrice, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexmarket_grid_node_mean_unit_price",
		Help: "Quantity weighted mean unit price of the trades on a grid node",
	}, []string{"grid_node_id"})); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PromSink) RecordOperation(ev coremetrics.OperationEvent) error {
	s.operations.WithLabelValues(ev.Operation, ev.Status()).Inc()
	s.duration.WithLabelValues(ev.Operation).Observe(ev.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordDeviceLoad(ev coremetrics.DeviceLoadEvent) error {
	s.load.WithLabelValues(ev.DeviceID).Set(ev.CurrentKW)
	s.reduction.WithLabelValues(ev.DeviceID).Set(ev.ReductionKW())
	if ev.DeviceErr != "" {
		s.syncErrors.WithLabelValues(ev.DeviceID, "serial").Inc()
	}
	if ev.TelemetryErr != "" {
		s.syncErrors.WithLabelValues(ev.DeviceID, "telemetry").Inc()
	}
	return nil
}

func (s *PromSink) RecordTrades(ev coremetrics.TradeEvent) error {
	s.trades.WithLabelValues(ev.GridNodeID).Set(float64(ev.Trades))
	s.traded.WithLabelValues(ev.GridNodeID).Set(ev.Quantity)
	s.meanPrice.WithLabelValues(ev.GridNodeID).Set(ev.MeanUnitPrice)
	return nil
}
