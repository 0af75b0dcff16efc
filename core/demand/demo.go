package demand

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kilianp07/flexmarket/core/logger"
	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/internal/eventbus"
)

// OrderSource lists the active orders, optionally restricted to portfolios.
type OrderSource interface {
	ActiveOrders(ctx context.Context, portfolioIDs ...string) ([]model.Order, error)
}

// LoadController drives the physical load of the local device.
type LoadController interface {
	SetLoad(ctx context.Context, current, maxLoad float64) error
}

// TelemetryUploader sends the load of a device to the cloud.
type TelemetryUploader interface {
	UploadLoad(ctx context.Context, d model.Device) error
}

// Demo keeps the configured devices in line with the active orders.
type Demo struct {
	orders    OrderSource
	device    LoadController
	telemetry TelemetryUploader
	devices   []model.Device

	interval time.Duration
	bus      *eventbus.TypedBus[coremetrics.DeviceLoadEvent]
	out      io.Writer
	log      logger.Logger
	now      func() time.Time
	wait     func(context.Context, time.Duration) error
}

type Option func(*Demo)

func WithInterval(d time.Duration) Option { return func(m *Demo) { m.interval = d } }

// WithBus publishes a DeviceLoadEvent per device and cycle on bus.
func WithBus(bus *eventbus.TypedBus[coremetrics.DeviceLoadEvent]) Option {
	return func(m *Demo) { m.bus = bus }
}

func WithOutput(w io.Writer) Option     { return func(m *Demo) { m.out = w } }
func WithLogger(l logger.Logger) Option { return func(m *Demo) { m.log = l } }

// WithClock replaces time.Now and the wait between cycles.
func WithClock(now func() time.Time, wait func(context.Context, time.Duration) error) Option {
	return func(m *Demo) {
		if now != nil {
			m.now = now
		}
		if wait != nil {
			m.wait = wait
		}
	}
}

// New prepares a demo for devices. A nil device or telemetry disables that
// step.
func New(orders OrderSource, device LoadController, telemetry TelemetryUploader, devices []model.Device, opts ...Option) *Demo {
	m := &Demo{
		orders:    orders,
		device:    device,
		telemetry: telemetry,
		devices:   append([]model.Device(nil), devices...),
		interval:  10 * time.Second,
		out:       os.Stdout,
		now:       time.Now,
		wait:      waitCtx,
	}
	for _, o := range opts {
		o(m)
	}
	m.log = logger.OrNop(m.log)
	for i := range m.devices {
		m.devices[i].CurrentLoad = m.devices[i].InitialLoad
	}
	return m
}

// Devices returns a snapshot of the devices with their current load.
func (m *Demo) Devices() []model.Device {
	return append([]model.Device(nil), m.devices...)
}

func (m *Demo) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format+"\n", args...)
}

// Run repeats RunOnce every interval until ctx is canceled. A failed cycle
// is logged and retried on the next one.
func (m *Demo) Run(ctx context.Context) error {
	m.printf("Loaded %d device(s):", len(m.devices))
	for _, d := range m.devices {
		m.printf("    %s with id %s, initial load %.0f", d.Name, d.ID, d.InitialLoad)
	}
	m.printf("")
	for {
		if _, err := m.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.log.Errorf("demo cycle failed: %v", err)
		}
		m.printf("")
		m.printf("... waiting (press CTRL-C to terminate)")
		if err := m.wait(ctx, m.interval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		m.printf("")
	}
}

// RunOnce fetches the active orders, recomputes every device load, pushes
// it to the serial device and uploads it. Device and telemetry failures are
// logged and reported in the published events; only a failure to fetch
// orders is returned.
func (m *Demo) RunOnce(ctx context.Context) ([]model.Device, error) {
	orders, err := m.orders.ActiveOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch active orders: %w", err)
	}
	m.printf(" done fetching %d active order(s)", len(orders))
	m.printf("")

	for i := range m.devices {
		d := &m.devices[i]
		n := m.updateLoad(d, orders)
		ev := coremetrics.DeviceLoadEvent{
			DeviceID:     d.ID,
			PortfolioID:  d.AssetPortfolioID,
			InitialKW:    d.InitialLoad,
			ActiveOrders: n,
		}
		if err := m.adjust(ctx, *d); err != nil {
			ev.DeviceErr = err.Error()
		}
		if err := m.upload(ctx, *d); err != nil {
			ev.TelemetryErr = err.Error()
		}
		ev.CurrentKW = d.CurrentLoad
		ev.Time = m.now()
		if m.bus != nil {
			m.bus.Publish(ev)
		}
	}
	return m.Devices(), nil
}

// updateLoad resets d to its initial load minus the quantity of every
// order of its portfolio and returns how many orders applied.
func (m *Demo) updateLoad(d *model.Device, orders []model.Order) int {
	d.CurrentLoad = d.InitialLoad
	n := 0
	for _, o := range orders {
		if o.AssetPortfolioID != d.AssetPortfolioID {
			continue
		}
		m.printf("  %s: Load reduced by %.0f due to order %s", d, o.Quantity, o)
		d.CurrentLoad -= o.Quantity
		n++
	}
	return n
}

func (m *Demo) adjust(ctx context.Context, d model.Device) error {
	if m.device == nil {
		return nil
	}
	m.printf("  %s: Setting actual physical load to %.0f:", d, d.CurrentLoad)
	if err := m.device.SetLoad(ctx, d.CurrentLoad, d.InitialLoad); err != nil {
		m.printf("      failed: %v", err)
		m.log.Warnf("%s: set load: %v", d, err)
		return err
	}
	return nil
}

func (m *Demo) upload(ctx context.Context, d model.Device) error {
	if m.telemetry == nil {
		return nil
	}
	m.printf("  %s: Uploading current load %.0f to IOT-Hub:", d, d.CurrentLoad)
	if err := m.telemetry.UploadLoad(ctx, d); err != nil {
		m.printf("      failed: %v", err)
		return err
	}
	m.printf("    (done)")
	return nil
}

func waitCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
