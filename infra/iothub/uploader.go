// Package iothub provisions demand response devices and uploads their load
// as power telemetry over MQTT.
package iothub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/flexmarket/core/logger"
	"github.com/kilianp07/flexmarket/core/model"
)

// Uploader keeps one hub connection per device across demo cycles.
type Uploader struct {
	cfg  Config
	log  logger.Logger
	prov *Provisioner
	now  func() time.Time

	mu      sync.Mutex
	clients map[string]*DeviceClient
}

func NewUploader(cfg Config, log logger.Logger) *Uploader {
	cfg.SetDefaults()
	log = logger.OrNop(log)
	return &Uploader{
		cfg:     cfg,
		log:     log,
		prov:    NewProvisioner(cfg, log),
		now:     time.Now,
		clients: make(map[string]*DeviceClient),
	}
}

// UploadLoad sends the consumption and shed load of d. Devices without a
// cloud identity are skipped.
func (u *Uploader) UploadLoad(ctx context.Context, d model.Device) error {
	if d.IoTDeviceID == "" {
		u.log.Infof("%s: no iot device id, telemetry skipped", d)
		return nil
	}
	client, err := u.client(ctx, d)
	if err != nil {
		u.log.Errorf("%s: failed to register device: %v", d, err)
		return err
	}
	if err := client.Send(ctx, model.LoadTelemetry(d, u.now())); err != nil {
		u.forget(d.IoTDeviceID)
		return err
	}
	u.log.Infof("%s: uploaded current load %.0f", d, d.CurrentLoad)
	return nil
}

func (u *Uploader) client(ctx context.Context, d model.Device) (*DeviceClient, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if c, ok := u.clients[d.IoTDeviceID]; ok {
		return c, nil
	}
	scope := d.IoTScopeID
	if scope == "" {
		scope = u.cfg.ScopeID
	}
	reg, err := u.prov.Register(ctx, d.IoTGlobalEndpoint, scope, d.IoTDeviceID, d.IoTDevicePrimaryKey)
	if err != nil {
		return nil, err
	}
	c, err := ConnectDevice(ctx, u.cfg, reg, d.IoTDevicePrimaryKey, u.log)
	if err != nil {
		return nil, fmt.Errorf("connect %s to %s: %w", reg.DeviceID, reg.AssignedHub, err)
	}
	u.clients[d.IoTDeviceID] = c
	return c, nil
}

func (u *Uploader) forget(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if c, ok := u.clients[id]; ok {
		c.Close()
		delete(u.clients, id)
	}
}

// Close disconnects every device.
func (u *Uploader) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, c := range u.clients {
		c.Close()
		delete(u.clients, id)
	}
}
