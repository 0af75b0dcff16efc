package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/infra/logger"
	"github.com/kilianp07/flexmarket/internal/eventbus"
)

func TestPromSink_RecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordOperation(coremetrics.OperationEvent{Operation: "dso-grid", Duration: time.Second}))
	require.NoError(t, sink.RecordOperation(coremetrics.OperationEvent{Operation: "dso-grid", Error: "boom"}))
	require.NoError(t, sink.RecordOperation(coremetrics.OperationEvent{Operation: "fsp-assets"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.operations.WithLabelValues("dso-grid", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.operations.WithLabelValues("dso-grid", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.operations.WithLabelValues("fsp-assets", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.duration))
}

func TestPromSink_RecordDeviceLoad(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	ev := coremetrics.DeviceLoadEvent{DeviceID: "lamp", InitialKW: 10, CurrentKW: 3, DeviceErr: "no port"}
	require.NoError(t, sink.RecordDeviceLoad(ev))

	assert.Equal(t, 3.0, testutil.ToFloat64(sink.load.WithLabelValues("lamp")))
	assert.Equal(t, 7.0, testutil.ToFloat64(sink.reduction.WithLabelValues("lamp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.syncErrors.WithLabelValues("lamp", "serial")))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.syncErrors.WithLabelValues("lamp", "telemetry")))
}

func TestPromSink_RecordTrades(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordTrades(coremetrics.TradeEvent{GridNodeID: "g1", Trades: 2, Quantity: 300, MeanUnitPrice: 150}))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.trades.WithLabelValues("g1")))
	assert.Equal(t, 300.0, testutil.ToFloat64(sink.traded.WithLabelValues("g1")))
	assert.Equal(t, 150.0, testutil.ToFloat64(sink.meanPrice.WithLabelValues("g1")))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordOperation(coremetrics.OperationEvent{Operation: "all"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.operations.WithLabelValues("all", "ok")))
}

func TestCollectDeviceLoads(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)
	bus := eventbus.NewTyped[coremetrics.DeviceLoadEvent]()
	run := CollectDeviceLoads(bus, sink, logger.NopLogger{})
	bus.Publish(coremetrics.DeviceLoadEvent{DeviceID: "lamp", InitialKW: 10, CurrentKW: 5})

	done := make(chan struct{})
	go func() {
		run(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.load.WithLabelValues("lamp")) == 5
	}, time.Second, 5*time.Millisecond)

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after bus close")
	}
}

func TestCollectDeviceLoadsSkipsNonRecorder(t *testing.T) {
	bus := eventbus.NewTyped[coremetrics.DeviceLoadEvent]()
	run := CollectDeviceLoads(bus, opOnly{}, nil)
	assert.Equal(t, 0, bus.Subscribers())
	run(context.Background())
}

type opOnly struct{}

func (opOnly) RecordOperation(coremetrics.OperationEvent) error { return nil }
