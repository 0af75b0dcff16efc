package metrics

import (
	"context"

	corelogger "github.com/kilianp07/flexmarket/core/logger"
	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/internal/eventbus"
)

// CollectDeviceLoads subscribes to bus and returns a worker recording every
// device load on sink until its context is canceled or the bus is closed.
// Sinks that do not record device loads get a worker that returns at once.
func CollectDeviceLoads(bus *eventbus.TypedBus[coremetrics.DeviceLoadEvent], sink coremetrics.MetricsSink, log corelogger.Logger) func(context.Context) {
	rec, ok := sink.(coremetrics.DeviceLoadRecorder)
	if bus == nil || !ok {
		return func(context.Context) {}
	}
	log = corelogger.OrNop(log)
	return eventbus.Forward(bus, func(ev coremetrics.DeviceLoadEvent) {
		if err := rec.RecordDeviceLoad(ev); err != nil {
			log.Warnf("record load of %s: %v", ev.DeviceID, err)
		}
	})
}
