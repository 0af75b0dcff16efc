// Package app wires configuration, platform access, metrics, journal and
// error monitoring for the command line.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/flexmarket/auth"
	"github.com/kilianp07/flexmarket/config"
	"github.com/kilianp07/flexmarket/core/demand"
	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
	coremon "github.com/kilianp07/flexmarket/core/monitoring"
	"github.com/kilianp07/flexmarket/core/platform"
	"github.com/kilianp07/flexmarket/core/roles"
	"github.com/kilianp07/flexmarket/infra/iothub"
	"github.com/kilianp07/flexmarket/infra/journal"
	"github.com/kilianp07/flexmarket/infra/logger"
	"github.com/kilianp07/flexmarket/infra/metrics"
	"github.com/kilianp07/flexmarket/infra/monitoring"
	"github.com/kilianp07/flexmarket/infra/nodesapi"
	"github.com/kilianp07/flexmarket/infra/serial"
	"github.com/kilianp07/flexmarket/internal/eventbus"
)

// Service holds what the operations share during one run.
type Service struct {
	Config   *config.Config
	Platform *platform.Client
	Sink     coremetrics.MetricsSink
	Journal  journal.Store
	Loads    *eventbus.TypedBus[coremetrics.DeviceLoadEvent]
	RunID    string

	out      io.Writer
	log      logger.Logger
	gatherer prometheus.Gatherer
	now      func() time.Time
}

type Option func(*Service)

// WithOutput sets where operations print their progress.
func WithOutput(w io.Writer) Option { return func(s *Service) { s.out = w } }

// WithPlatform replaces the HTTP platform client, e.g. by an in-memory fake.
func WithPlatform(p *platform.Client) Option { return func(s *Service) { s.Platform = p } }

// WithGatherer serves the given registry on the Prometheus endpoint.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Service) { s.gatherer = g } }

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		Config: cfg,
		RunID:  journal.NewRunID(),
		out:    os.Stdout,
		log:    logger.New("service"),
		Loads:  eventbus.NewTyped[coremetrics.DeviceLoadEvent](),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	if s.Platform == nil {
		if s.Platform, err = newPlatform(cfg); err != nil {
			return nil, err
		}
	}
	if s.Sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	if s.Journal, err = journal.Open(cfg.Journal); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	s.log.Debugw("service ready", map[string]any{
		"run_id":  s.RunID,
		"journal": cfg.Journal.Backend,
		"sinks":   len(cfg.Metrics.Sinks),
	})
	return s, nil
}

func newPlatform(cfg *config.Config) (*platform.Client, error) {
	var opts []nodesapi.Option
	if cfg.Auth.Enabled() {
		base := &http.Client{Timeout: cfg.Platform.API.Timeout()}
		opts = append(opts, nodesapi.WithHTTPClient(auth.NewClientCred(cfg.Auth, base).Client()))
	}
	client, err := nodesapi.New(cfg.Platform.API, opts...)
	if err != nil {
		return nil, fmt.Errorf("platform client: %w", err)
	}
	return client.Platform(), nil
}

// Run starts the background workers (Prometheus endpoint and device load
// collectors), calls fn and stops the workers once fn returns.
func (s *Service) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	bgCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(bgCtx)

	if addr := s.Config.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(gctx, addr, s.gatherer) })
	}
	workers := []func(context.Context){
		metrics.CollectDeviceLoads(s.Loads, s.Sink, logger.New("metrics")),
		journal.CollectDeviceLoads(s.Loads, s.Journal, s.RunID, logger.New("journal")),
	}
	for _, w := range workers {
		w := w
		g.Go(func() error {
			defer coremon.Recover()
			w(gctx)
			return nil
		})
	}

	err := fn(ctx)
	stop()
	if werr := g.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

// RoleOptions configures DSO and FSP sessions.
func (s *Service) RoleOptions() []roles.Option {
	return []roles.Option{
		roles.WithOutput(s.out),
		roles.WithLogger(logger.New("roles")),
		roles.WithConfig(s.Config.Platform.Roles),
	}
}

// RecordOperation journals the outcome of an operation, exports it as a
// metric and reports failures.
func (s *Service) RecordOperation(ctx context.Context, name string, started time.Time, created []string, opErr error) {
	d := s.now().Sub(started)
	rec := journal.OperationRecord(s.RunID, name, started, d, created, opErr)
	if err := s.Journal.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warnf("journal %s: %v", name, err)
	}
	ev := coremetrics.OperationEvent{
		RunID:     s.RunID,
		Operation: name,
		Duration:  d,
		Created:   len(created),
		Error:     rec.Error,
		Time:      started,
	}
	if err := s.Sink.RecordOperation(ev); err != nil {
		s.log.Warnf("metrics %s: %v", name, err)
	}
	if opErr != nil {
		coremon.CaptureOperation(s.RunID, name, opErr)
	}
}

// RecordTrades exports the trade summary of a buy order.
func (s *Service) RecordTrades(res roles.BuyResult) {
	rec, ok := s.Sink.(coremetrics.TradeRecorder)
	if !ok {
		return
	}
	ev := coremetrics.TradeEvent{
		GridNodeID:    res.Order.GridNodeID,
		Trades:        res.Summary.Count,
		Quantity:      res.Summary.Quantity,
		MeanUnitPrice: res.Summary.MeanUnitPrice,
		Time:          s.now(),
	}
	if err := rec.RecordTrades(ev); err != nil {
		s.log.Warnf("metrics trades: %v", err)
	}
}

// NewDemo builds the device demo on top of orders. The returned function
// releases the serial link and the hub connections.
func (s *Service) NewDemo(orders demand.OrderSource) (*demand.Demo, func(), error) {
	devices, err := s.Config.Demo.LoadDevices()
	if err != nil {
		return nil, nil, fmt.Errorf("load devices: %w", err)
	}
	links := serial.NewManager(s.Config.Serial, logger.New("serial"))
	uploader := iothub.NewUploader(s.Config.IoTHub, logger.New("iothub"))
	demo := demand.New(orders, links, uploader, devices,
		demand.WithInterval(s.Config.Demo.Interval()),
		demand.WithBus(s.Loads),
		demand.WithOutput(s.out),
		demand.WithLogger(logger.New("demand")),
	)
	release := func() {
		if err := links.Close(); err != nil {
			s.log.Warnf("close serial link: %v", err)
		}
		uploader.Close()
	}
	return demo, release, nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Loads.Close()
	coremon.Flush(2 * time.Second)
	return s.Journal.Close()
}
