package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
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

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordOperation(ev coremetrics.OperationEvent) error {
	p := write.NewPointWithMeasurement("operation").
		AddTag("operation", ev.Operation).
		AddTag("status", ev.Status()).
		AddTag("run_id", ev.RunID).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("created", ev.Created).
		AddField("error", ev.Error).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordDeviceLoad(ev coremetrics.DeviceLoadEvent) error {
	p := write.NewPointWithMeasurement("device_load").
		AddTag("device_id", ev.DeviceID)
	if ev.PortfolioID != "" {
		p = p.AddTag("portfolio_id", ev.PortfolioID)
	}
	p = p.AddField("initial_kw", round3(ev.InitialKW)).
		AddField("current_kw", round3(ev.CurrentKW)).
		AddField("reduction_kw", round3(ev.ReductionKW())).
		AddField("active_orders", ev.ActiveOrders).
		AddField("device_synced", ev.DeviceErr == "").
		AddField("telemetry_sent", ev.TelemetryErr == "").
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordTrades(ev coremetrics.TradeEvent) error {
	p := write.NewPointWithMeasurement("trade_summary").
		AddTag("grid_node_id", ev.GridNodeID).
		AddField("trades", ev.Trades).
		AddField("quantity", round3(ev.Quantity)).
		AddField("mean_unit_price", round3(ev.MeanUnitPrice)).
		SetTime(ev.Time)
	return s.write(p)
}

// Close flushes and closes the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
