package roles

import (
	"fmt"
	"time"
)

// DefaultMPID is the metering point the demo assets are assigned to.
const DefaultMPID = "12345678910"

// Config tunes the demo operations.
type Config struct {
	// SettleDelayMS is how long PlaceBuyOrder waits for the platform to
	// match the new order before listing trades.
	SettleDelayMS int    `json:"settle_delay_ms"`
	MPID          string `json:"mpid"`
}

func (c *Config) SetDefaults() {
	if c.SettleDelayMS <= 0 {
		c.SettleDelayMS = 1000
	}
	if c.MPID == "" {
		c.MPID = DefaultMPID
	}
}

func (c Config) Validate() error {
	if c.SettleDelayMS < 0 {
		return fmt.Errorf("settle_delay_ms must not be negative")
	}
	return nil
}

func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}
