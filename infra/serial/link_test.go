package serial

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bugst "go.bug.st/serial"

	"github.com/kilianp07/flexmarket/infra/logger"
)

// fakePort answers commands from a reply table.
type fakePort struct {
	mu      sync.Mutex
	in      bytes.Buffer
	writes  []string
	replies map[string]string
	timeout time.Duration
	closed  bool
	readErr error
}

func newFakePort(replies map[string]string) *fakePort {
	return &fakePort{replies: replies}
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.in.Len() == 0 {
		return 0, nil
	}
	return p.in.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, string(b))
	cmd := strings.TrimRight(string(b), "\n\x00")
	if r, ok := p.replies[cmd]; ok {
		p.in.WriteString(r)
	}
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Reset()
	return nil
}

func (p *fakePort) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

var fastCfg = Config{WriteDelayMS: 1, ProbeDelayMS: 1}

// usePorts installs fake ports keyed by name for the duration of the test.
func usePorts(t *testing.T, ports map[string]*fakePort, extra ...string) *[]*bugst.Mode {
	t.Helper()
	oldList, oldOpen := listPorts, openPort
	t.Cleanup(func() { listPorts, openPort = oldList, oldOpen })

	var modes []*bugst.Mode
	listPorts = func() ([]string, error) {
		var names []string
		for n := range ports {
			names = append(names, n)
		}
		return append(names, extra...), nil
	}
	openPort = func(name string, mode *bugst.Mode) (Port, error) {
		modes = append(modes, mode)
		p, ok := ports[name]
		if !ok {
			return nil, errors.New("busy")
		}
		return p, nil
	}
	return &modes
}

func TestFindPort(t *testing.T) {
	ctx := context.Background()
	modes := usePorts(t, map[string]*fakePort{"/dev/ttyUSB0": newFakePort(nil)}, "/dev/ttyS0")

	name, err := FindPort(ctx, fastCfg, logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", name)

	require.NotEmpty(t, *modes)
	m := (*modes)[0]
	assert.Equal(t, 9600, m.BaudRate)
	assert.Equal(t, 8, m.DataBits)
	assert.Equal(t, bugst.NoParity, m.Parity)
	assert.Equal(t, bugst.OneStopBit, m.StopBits)
}

func TestFindPortNoneOrMany(t *testing.T) {
	ctx := context.Background()
	usePorts(t, nil, "/dev/ttyS0")
	_, err := FindPort(ctx, fastCfg, nil)
	assert.ErrorIs(t, err, ErrNoPort)

	usePorts(t, map[string]*fakePort{"a": newFakePort(nil), "b": newFakePort(nil)})
	_, err = FindPort(ctx, fastCfg, nil)
	assert.ErrorIs(t, err, ErrAmbiguousPort)

	cfg := fastCfg
	cfg.Port = "b"
	name, err := FindPort(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", name)
}

func TestLinkSendAndReadLine(t *testing.T) {
	port := newFakePort(map[string]string{"PING": "\x00PONG\r\n"})
	usePorts(t, map[string]*fakePort{"p": port})
	l, err := Open("p", fastCfg, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, port.timeout)

	require.NoError(t, l.Send(context.Background(), "PING"))
	assert.Equal(t, []string{"PING\n\x00"}, port.Writes())

	line, err := l.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "PONG", line)

	_, err = l.ReadLine()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLinkReady(t *testing.T) {
	ctx := context.Background()
	ok := newFakePort(map[string]string{CmdReady: "device READY!\n"})
	silent := newFakePort(nil)
	broken := newFakePort(nil)
	broken.readErr = errors.New("unplugged")
	usePorts(t, map[string]*fakePort{"ok": ok, "silent": silent, "broken": broken})

	for name, want := range map[string]bool{"ok": true, "silent": false, "broken": false} {
		l, err := Open(name, fastCfg, nil)
		require.NoError(t, err)
		assert.Equal(t, want, l.Ready(ctx), name)
	}
}

func TestLinkSetLoad(t *testing.T) {
	ctx := context.Background()
	port := newFakePort(map[string]string{CmdReady: "READY!\n"})
	usePorts(t, map[string]*fakePort{"p": port})
	l, err := Open("p", fastCfg, nil)
	require.NoError(t, err)

	require.NoError(t, l.SetLoad(ctx, 3.6, 10))
	assert.Equal(t, []string{"READY?\n\x00", "MAX10\n\x00", "VAL4\n\x00"}, port.Writes())
}

func TestLinkSetLoadIgnoresStaleAcks(t *testing.T) {
	ctx := context.Background()
	port := newFakePort(map[string]string{CmdReady: "READY!\n", "MAX10": "ok\n", "VAL4": "ok\n"})
	usePorts(t, map[string]*fakePort{"p": port})
	l, err := Open("p", fastCfg, nil)
	require.NoError(t, err)

	require.NoError(t, l.SetLoad(ctx, 4, 10))
	require.NoError(t, l.SetLoad(ctx, 4, 10))
	assert.Len(t, port.Writes(), 6)
}

func TestLinkSetLoadNotReady(t *testing.T) {
	port := newFakePort(nil)
	usePorts(t, map[string]*fakePort{"p": port})
	l, err := Open("p", fastCfg, nil)
	require.NoError(t, err)

	err = l.SetLoad(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, []string{"READY?\n\x00"}, port.Writes())
}

func TestManagerReusesAndDropsLink(t *testing.T) {
	ctx := context.Background()
	port := newFakePort(map[string]string{CmdReady: "READY!\n"})
	usePorts(t, map[string]*fakePort{"p": port})
	m := NewManager(fastCfg, nil)

	l1, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	l2, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Same(t, l1, l2)

	require.NoError(t, m.SetLoad(ctx, 5, 10))

	delete(port.replies, CmdReady)
	assert.ErrorIs(t, m.SetLoad(ctx, 5, 10), ErrNotReady)
	assert.True(t, port.closed)

	l3, err := m.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.NotSame(t, l1, l3)
	require.NoError(t, m.Close())
}
