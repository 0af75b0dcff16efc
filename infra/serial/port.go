// Package serial talks to the demand response device over a serial line
// (8 data bits, no parity, one stop bit).
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	bugst "go.bug.st/serial"

	"github.com/kilianp07/flexmarket/core/logger"
)

var (
	// ErrNoPort is returned when no serial port can be opened.
	ErrNoPort = errors.New("no serial device found")
	// ErrAmbiguousPort is returned when several ports can be opened and none
	// is configured.
	ErrAmbiguousPort = errors.New("several serial devices found, set serial.port")
	// ErrTimeout is returned when the device sends nothing before the read
	// timeout.
	ErrTimeout = errors.New("serial read timeout")
	// ErrNotReady is returned when the device does not answer the handshake.
	ErrNotReady = errors.New("serial device not ready")
)

// Port is the subset of a serial port the link uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

var (
	listPorts = bugst.GetPortsList
	openPort  = func(name string, mode *bugst.Mode) (Port, error) { return bugst.Open(name, mode) }
)

func (c Config) mode() *bugst.Mode {
	return &bugst.Mode{
		BaudRate: c.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
}

// FindPort returns the single port a device is attached to. A configured
// port wins over discovery.
func FindPort(ctx context.Context, cfg Config, log logger.Logger) (string, error) {
	cfg.SetDefaults()
	log = logger.OrNop(log)
	if cfg.Port != "" {
		return cfg.Port, nil
	}
	names, err := listPorts()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	log.Infof("%d available port names: %v", len(names), names)

	var usable []string
	for _, name := range names {
		if probe(ctx, cfg, name) {
			usable = append(usable, name)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	switch len(usable) {
	case 0:
		return "", ErrNoPort
	case 1:
		return usable[0], nil
	default:
		return "", fmt.Errorf("%w: %v", ErrAmbiguousPort, usable)
	}
}

// probe opens and closes the port, then leaves the device a moment.
func probe(ctx context.Context, cfg Config, name string) bool {
	p, err := openPort(name, cfg.mode())
	if err != nil {
		return false
	}
	_ = p.Close()
	_ = wait(ctx, cfg.probeDelay())
	return true
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
