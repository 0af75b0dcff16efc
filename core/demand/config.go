package demand

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/flexmarket/core/model"
)

// Config selects the demo devices and the cycle interval.
type Config struct {
	// DevicesFile is a YAML or JSON file with a top level "devices" list.
	// It takes precedence over Devices.
	DevicesFile     string         `json:"devices_file"`
	IntervalSeconds int            `json:"interval_seconds"`
	Devices         []model.Device `json:"devices"`
}

// DefaultDevice is used when no device is configured.
func DefaultDevice() model.Device {
	return model.Device{
		ID:               "el-lampo-numero-uno",
		Name:             "Usb device",
		AssetPortfolioID: "ap1",
		InitialLoad:      10,
	}
}

func (c *Config) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 10
	}
}

func (c Config) Validate() error {
	for _, d := range c.Devices {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LoadDevices returns the devices of the file when one is set, the inline
// devices otherwise, and DefaultDevice when both are empty.
func (c Config) LoadDevices() ([]model.Device, error) {
	devices := c.Devices
	if c.DevicesFile != "" {
		var err error
		if devices, err = LoadDevicesFile(c.DevicesFile); err != nil {
			return nil, err
		}
	}
	if len(devices) == 0 {
		return []model.Device{DefaultDevice()}, nil
	}
	return devices, nil
}

type deviceFile struct {
	Devices []model.Device `json:"devices" yaml:"devices"`
}

// LoadDevicesFile reads devices from a JSON or YAML file.
func LoadDevicesFile(path string) ([]model.Device, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f deviceFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported devices format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, d := range f.Devices {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return f.Devices, nil
}
