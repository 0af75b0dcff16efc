package model

import (
	"fmt"
	"time"
)

// Device is a physical demand-response load bridged to the platform. Its load
// is reduced by the quantity of every active order of its asset portfolio.
type Device struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	AssetPortfolioID string  `json:"asset_portfolio_id" yaml:"asset_portfolio_id"`
	InitialLoad      float64 `json:"initial_load" yaml:"initial_load"` // kW
	CurrentLoad      float64 `json:"-" yaml:"-"`

	// Cloud identity used for telemetry. Devices without IoTDeviceID are not
	// uploaded.
	IoTDeviceID         string `json:"iot_device_id" yaml:"iot_device_id"`
	IoTDevicePrimaryKey string `json:"iot_device_primary_key" yaml:"iot_device_primary_key"`
	IoTScopeID          string `json:"iot_scope_id" yaml:"iot_scope_id"`
	IoTGlobalEndpoint   string `json:"iot_global_endpoint" yaml:"iot_global_endpoint"`
}

func (d Device) String() string { return fmt.Sprintf("%s (%s)", d.Name, d.ID) }

// Reduction returns how much of the initial load is currently shed.
func (d Device) Reduction() float64 { return d.InitialLoad - d.CurrentLoad }

// Validate checks the static part of the device configuration.
func (d Device) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("device id is required")
	}
	if d.InitialLoad < 0 {
		return fmt.Errorf("device %s: initial load must not be negative", d.ID)
	}
	if d.IoTDeviceID != "" && d.IoTDevicePrimaryKey == "" {
		return fmt.Errorf("device %s: iot_device_primary_key is required with iot_device_id", d.ID)
	}
	return nil
}

// PowerTelemetry is one reading sent to the cloud telemetry hub.
type PowerTelemetry struct {
	CreationTimeUTC      time.Time              `json:"iothub-creation-time-utc"`
	Timestamp            time.Time              `json:"Timestamp"`
	PowerAmountKW        *float64               `json:"PowerAmountKW,omitempty"`
	UsageMethod          ElectricityUsageMethod `json:"UsageMethod"`
	IoTHubTypeIdentifier string                 `json:"IoTHubTypeIdentifier"`
}

// PowerTelemetryType identifies PowerTelemetry messages downstream.
const PowerTelemetryType = "PowerTelemetry"

// NewPowerTelemetry builds a reading stamped at the current minute.
func NewPowerTelemetry(now time.Time, kw float64, method ElectricityUsageMethod) PowerTelemetry {
	minute := now.UTC().Truncate(time.Minute)
	return PowerTelemetry{
		CreationTimeUTC:      minute,
		Timestamp:            minute,
		PowerAmountKW:        &kw,
		UsageMethod:          method,
		IoTHubTypeIdentifier: PowerTelemetryType,
	}
}

// LoadTelemetry returns the consumption and shed-load readings of a device.
func LoadTelemetry(d Device, now time.Time) []PowerTelemetry {
	return []PowerTelemetry{
		NewPowerTelemetry(now, d.CurrentLoad, UsageConsumption),
		NewPowerTelemetry(now, d.Reduction(), UsageOptimizedConsumptionDecrease),
	}
}
