package serial

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kilianp07/flexmarket/core/logger"
)

// Device commands. Commands are sent newline and NUL terminated.
const (
	CmdReady   = "READY?"
	ReplyReady = "READY!"
	CmdValue   = "VAL"
	CmdMax     = "MAX"
)

// Link is an open line to a device.
type Link struct {
	name string
	port Port
	cfg  Config
	log  logger.Logger

	mu sync.Mutex
}

// Open opens name with the device line settings.
func Open(name string, cfg Config, log logger.Logger) (*Link, error) {
	cfg.SetDefaults()
	p, err := openPort(name, cfg.mode())
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := p.SetReadTimeout(cfg.readTimeout()); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return &Link{name: name, port: p, cfg: cfg, log: logger.OrNop(log)}, nil
}

func (l *Link) Name() string { return l.name }

func (l *Link) Close() error { return l.port.Close() }

// Send writes cmd and waits for the device to process it.
func (l *Link) Send(ctx context.Context, cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.send(ctx, cmd)
}

func (l *Link) send(ctx context.Context, cmd string) error {
	if _, err := l.port.Write([]byte(cmd + "\n\x00")); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	l.log.Debugf("sent %q on %s", cmd, l.name)
	return wait(ctx, l.cfg.writeDelay())
}

// ReadLine reads up to the next newline. Carriage returns, newlines and NUL
// bytes are stripped.
func (l *Link) ReadLine() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLine()
}

func (l *Link) readLine() (string, error) {
	var line bytes.Buffer
	b := make([]byte, 1)
	for {
		n, err := l.port.Read(b)
		if err != nil {
			return "", fmt.Errorf("read from %s: %w", l.name, err)
		}
		if n == 0 {
			return "", ErrTimeout
		}
		if b[0] == '\n' {
			break
		}
		line.WriteByte(b[0])
	}
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == 0 {
			return -1
		}
		return r
	}, line.String()), nil
}

// Ready runs the handshake. Failures are logged and reported as false.
func (l *Link) Ready(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready(ctx)
}

func (l *Link) ready(ctx context.Context) bool {
	// Drop acks and echoes of earlier commands so the reply read is ours.
	if err := l.port.ResetInputBuffer(); err != nil {
		l.log.Warnf("device on %s: reset input: %v", l.name, err)
		return false
	}
	if err := l.send(ctx, CmdReady); err != nil {
		l.log.Warnf("device on %s: %v", l.name, err)
		return false
	}
	resp, err := l.readLine()
	if err != nil {
		l.log.Warnf("device on %s: %v", l.name, err)
		return false
	}
	return strings.Contains(resp, ReplyReady)
}

// SetLoad sends the maximum then the current load, rounded to whole units,
// once the device is ready.
func (l *Link) SetLoad(ctx context.Context, current, maxLoad float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready(ctx) {
		return fmt.Errorf("%s: %w", l.name, ErrNotReady)
	}
	if err := l.send(ctx, fmt.Sprintf("%s%d", CmdMax, int64(math.Round(maxLoad)))); err != nil {
		return err
	}
	return l.send(ctx, fmt.Sprintf("%s%d", CmdValue, int64(math.Round(current))))
}

// Manager keeps one link open across demo cycles.
type Manager struct {
	cfg Config
	log logger.Logger

	mu   sync.Mutex
	link *Link
}

func NewManager(cfg Config, log logger.Logger) *Manager {
	cfg.SetDefaults()
	return &Manager{cfg: cfg, log: logger.OrNop(log)}
}

// GetOrCreate returns the open link, discovering and opening the device port
// when needed.
func (m *Manager) GetOrCreate(ctx context.Context) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link != nil {
		return m.link, nil
	}
	name, err := FindPort(ctx, m.cfg, m.log)
	if err != nil {
		return nil, err
	}
	l, err := Open(name, m.cfg, m.log)
	if err != nil {
		return nil, err
	}
	m.log.Infof("connection opened on serial port %s", name)
	m.link = l
	return l, nil
}

// SetLoad pushes the load to the device. A failed write drops the link so the
// next call reconnects.
func (m *Manager) SetLoad(ctx context.Context, current, maxLoad float64) error {
	l, err := m.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	if err := l.SetLoad(ctx, current, maxLoad); err != nil {
		m.drop(l)
		return err
	}
	return nil
}

func (m *Manager) drop(l *Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link == l {
		_ = l.Close()
		m.link = nil
	}
}

// Close closes the open link if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link == nil {
		return nil
	}
	err := m.link.Close()
	m.link = nil
	return err
}
