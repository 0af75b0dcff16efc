package iothub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/kilianp07/flexmarket/core/logger"
	"github.com/kilianp07/flexmarket/core/model"
)

// DeviceClient publishes telemetry of one device to its assigned hub.
type DeviceClient struct {
	cli      pahoClient
	deviceID string
	timeout  time.Duration
	log      logger.Logger
}

// ConnectDevice opens the hub connection of a registered device.
func ConnectDevice(ctx context.Context, cfg Config, reg Registration, key string, log logger.Logger) (*DeviceClient, error) {
	cfg.SetDefaults()
	log = logger.OrNop(log)
	resource := reg.AssignedHub + "/devices/" + reg.DeviceID
	token, err := SASToken(resource, key, "", time.Now().Add(cfg.tokenTTL()))
	if err != nil {
		return nil, err
	}
	cli, err := cfg.connect(ctx, session{
		broker:   cfg.hubBroker(reg.AssignedHub),
		clientID: reg.DeviceID,
		username: fmt.Sprintf("%s/%s/?api-version=%s", reg.AssignedHub, reg.DeviceID, hubAPIVersion),
		password: token,
	}, log)
	if err != nil {
		return nil, err
	}
	return &DeviceClient{cli: cli, deviceID: reg.DeviceID, timeout: cfg.timeout(), log: log}, nil
}

// eventTopic returns the device-to-cloud topic with the message properties
// of a JSON payload created at created.
func eventTopic(deviceID string, created time.Time) string {
	return fmt.Sprintf("devices/%s/messages/events/$.ct=application%%2Fjson&$.ce=utf-8&iothub-creation-time-utc=%s",
		deviceID, url.QueryEscape(created.UTC().Format(time.RFC3339)))
}

// Send publishes each reading as one message.
func (d *DeviceClient) Send(ctx context.Context, batch []model.PowerTelemetry) error {
	for _, t := range batch {
		payload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode telemetry: %w", err)
		}
		topic := eventTopic(d.deviceID, t.CreationTimeUTC)
		if err := waitToken(ctx, d.cli.Publish(topic, 1, false, payload), d.timeout); err != nil {
			return fmt.Errorf("publish telemetry of %s: %w", d.deviceID, err)
		}
		d.log.Debugf("sent %s telemetry of %s", t.UsageMethod, d.deviceID)
	}
	return nil
}

func (d *DeviceClient) Close() {
	if d.cli != nil && d.cli.IsConnected() {
		d.cli.Disconnect(250)
	}
}
