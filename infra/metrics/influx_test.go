package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
)

type influxRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (r *influxRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, strings.TrimSpace(string(b)))
		r.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (r *influxRecorder) Bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func lineProtocol(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func newTestInflux(t *testing.T) (*InfluxSink, *influxRecorder) {
	rec := &influxRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	t.Cleanup(sink.Close)
	return sink, rec
}

func TestInfluxSink_RecordOperation(t *testing.T) {
	sink, rec := newTestInflux(t)
	now := time.Now()
	ev := coremetrics.OperationEvent{
		RunID:     "run1",
		Operation: "dso-grid",
		Duration:  1500 * time.Millisecond,
		Created:   9,
		Time:      now,
	}
	require.NoError(t, sink.RecordOperation(ev))

	p := write.NewPointWithMeasurement("operation").
		AddTag("operation", "dso-grid").
		AddTag("status", "ok").
		AddTag("run_id", "run1").
		AddField("duration_ms", 1500.0).
		AddField("created", 9).
		AddField("error", "").
		SetTime(now)
	assert.Equal(t, []string{lineProtocol(p)}, rec.Bodies())
}

func TestInfluxSink_RecordDeviceLoad(t *testing.T) {
	sink, rec := newTestInflux(t)
	now := time.Now()
	ev := coremetrics.DeviceLoadEvent{
		DeviceID:     "lamp",
		PortfolioID:  "ap1",
		InitialKW:    10,
		CurrentKW:    4,
		ActiveOrders: 2,
		TelemetryErr: "offline",
		Time:         now,
	}
	require.NoError(t, sink.RecordDeviceLoad(ev))

	p := write.NewPointWithMeasurement("device_load").
		AddTag("device_id", "lamp").
		AddTag("portfolio_id", "ap1").
		AddField("initial_kw", 10.0).
		AddField("current_kw", 4.0).
		AddField("reduction_kw", 6.0).
		AddField("active_orders", 2).
		AddField("device_synced", true).
		AddField("telemetry_sent", false).
		SetTime(now)
	assert.Equal(t, []string{lineProtocol(p)}, rec.Bodies())
}

func TestInfluxSink_RecordTrades(t *testing.T) {
	sink, rec := newTestInflux(t)
	now := time.Now()
	ev := coremetrics.TradeEvent{GridNodeID: "g1", Trades: 3, Quantity: 250, MeanUnitPrice: 101.23456, Time: now}
	require.NoError(t, sink.RecordTrades(ev))

	p := write.NewPointWithMeasurement("trade_summary").
		AddTag("grid_node_id", "g1").
		AddField("trades", 3).
		AddField("quantity", 250.0).
		AddField("mean_unit_price", 101.235).
		SetTime(now)
	assert.Equal(t, []string{lineProtocol(p)}, rec.Bodies())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{
		URL:    srv.URL + "/api/v2/write",
		Token:  "tok",
		Org:    "org",
		Bucket: "bucket",
	})
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
