package serial

import (
	"fmt"
	"time"
)

// Config defines the serial line of the demand response device.
type Config struct {
	// Port forces the device port. When empty every port is probed.
	Port          string `json:"port"`
	BaudRate      int    `json:"baud_rate"`
	ReadTimeoutMS int    `json:"read_timeout_ms"`
	// WriteDelayMS is the pause after each command so the device can act.
	WriteDelayMS int `json:"write_delay_ms"`
	ProbeDelayMS int `json:"probe_delay_ms"`
}

func (c *Config) SetDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = 9600
	}
	if c.ReadTimeoutMS == 0 {
		c.ReadTimeoutMS = 1000
	}
	if c.WriteDelayMS == 0 {
		c.WriteDelayMS = 1000
	}
	if c.ProbeDelayMS == 0 {
		c.ProbeDelayMS = 100
	}
}

func (c Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("serial baud_rate must be positive")
	}
	if c.ReadTimeoutMS < 0 || c.WriteDelayMS < 0 || c.ProbeDelayMS < 0 {
		return fmt.Errorf("serial delays must not be negative")
	}
	return nil
}

func (c Config) readTimeout() time.Duration { return time.Duration(c.ReadTimeoutMS) * time.Millisecond }
func (c Config) writeDelay() time.Duration  { return time.Duration(c.WriteDelayMS) * time.Millisecond }
func (c Config) probeDelay() time.Duration  { return time.Duration(c.ProbeDelayMS) * time.Millisecond }
