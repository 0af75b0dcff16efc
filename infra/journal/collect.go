package journal

import (
	"context"

	"github.com/kilianp07/flexmarket/core/logger"
	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/internal/eventbus"
)

// CollectDeviceLoads subscribes to bus and returns a worker appending every
// device load to store until its context is canceled or the bus is closed.
func CollectDeviceLoads(bus *eventbus.TypedBus[coremetrics.DeviceLoadEvent], store Store, runID string, log logger.Logger) func(context.Context) {
	log = logger.OrNop(log)
	return eventbus.Forward(bus, func(ev coremetrics.DeviceLoadEvent) {
		if err := store.Append(context.Background(), DeviceLoadRecord(runID, ev)); err != nil {
			log.Warnf("journal load of %s: %v", ev.DeviceID, err)
		}
	})
}
