package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flexmarket/app"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/infra/journal"
	"github.com/kilianp07/flexmarket/internal/platformtest"
)

func writeConfig(t *testing.T, extra ...string) (cfgPath, journalPath string) {
	t.Helper()
	dir := t.TempDir()
	journalPath = filepath.Join(dir, "journal.jsonl")
	cfgPath = filepath.Join(dir, "config.yaml")
	data := fmt.Sprintf(`platform:
  settle_delay_ms: 1
journal:
  backend: jsonl
  path: %q
`, journalPath) + strings.Join(extra, "")
	require.NoError(t, os.WriteFile(cfgPath, []byte(data), 0o644))
	return cfgPath, journalPath
}

func execute(t *testing.T, f *platformtest.Fake, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeContext(context.Background(), t, f, stdin, args...)
}

func executeContext(ctx context.Context, t *testing.T, f *platformtest.Fake, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(strings.NewReader(stdin), &out, app.WithPlatform(f.Platform()))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestParse(t *testing.T) {
	names := func(p plan) []string {
		var n []string
		for _, op := range p.steps {
			n = append(n, op.name)
		}
		return n
	}

	_, ok := parse(nil)
	assert.False(t, ok)
	_, ok = parse([]string{"dso-grid", "nope"})
	assert.False(t, ok)

	p, ok := parse([]string{"dso-order", "dso-grid", "dso-grid", opSkip})
	require.True(t, ok)
	assert.True(t, p.skip)
	assert.Equal(t, []string{"dso-grid", "dso-order"}, names(p))

	p, ok = parse([]string{opAll, "orders-clear"})
	require.True(t, ok)
	assert.Equal(t, []string{
		"dso-grid", "dso-tree", "fsp-assets", "dso-approve",
		"fsp-portfolios", "fsp-order", "dso-order", "orders-clear",
	}, names(p))

	p, ok = parse([]string{opHelp})
	require.True(t, ok)
	assert.True(t, p.help)
	assert.Empty(t, p.steps)
}

func TestUnknownOperationShowsHelp(t *testing.T) {
	out, err := execute(t, platformtest.New(), "", "--config", "unused.yaml", "fly")
	require.NoError(t, err)
	assert.Contains(t, out, "Commands: ")
	assert.Contains(t, out, "   devices-demo")
	assert.NotContains(t, out, "   all ")
	assert.NotContains(t, out, "Your commands")
	assert.NotContains(t, out, "--- DONE")
}

func TestPauseAtEnd(t *testing.T) {
	out, err := execute(t, platformtest.New(), "\n", "help")
	require.NoError(t, err)
	assert.Contains(t, out, "   Your commands: help.")
	assert.True(t, strings.HasSuffix(out, "--- DONE - Press enter to close program\n"))

	out, err = execute(t, platformtest.New(), "", "help", "skip-pause-at-end")
	require.NoError(t, err)
	assert.NotContains(t, out, "--- DONE")

	out, err = execute(t, platformtest.New(), "", "--pause-at-end=false", "help")
	require.NoError(t, err)
	assert.NotContains(t, out, "--- DONE")
}

func TestAllRunsTheDemoFlow(t *testing.T) {
	cfgPath, journalPath := writeConfig(t)
	f := platformtest.New()
	f.AssetTypes.Seed(model.AssetType{ID: "type1", Name: "Battery"})

	out, err := execute(t, f, "", "-c", cfgPath, "all", "skip-pause-at-end")
	require.NoError(t, err, out)

	assert.Len(t, f.GridNodes.Items(), 3)
	assert.Len(t, f.Assets.Items(), 3)
	for _, a := range f.Assets.Items() {
		assert.Equal(t, model.StatusActive, a.Status)
	}
	assert.Len(t, f.AssetPortfolioAssignments.Items(), 3)
	var sides []model.OrderSide
	for _, o := range f.Orders.Items() {
		sides = append(sides, o.Side)
	}
	assert.ElementsMatch(t, []model.OrderSide{model.SideSell, model.SideBuy}, sides)
	assert.Contains(t, out, "(Gridlocation)")

	store, err := journal.NewJSONLStore(journalPath)
	require.NoError(t, err)
	recs, err := store.Query(context.Background(), journal.Query{Kind: journal.KindOperation})
	require.NoError(t, err)
	require.Len(t, recs, 7)
	assert.Equal(t, "dso-grid", recs[0].Name)
	assert.Len(t, recs[0].Created, 5)
	assert.Equal(t, recs[0].RunID, recs[6].RunID)
	for _, r := range recs {
		assert.Empty(t, r.Error, r.Name)
	}
}

func TestFailedOperationStopsAndIsJournaled(t *testing.T) {
	cfgPath, journalPath := writeConfig(t)
	f := platformtest.New()

	out, err := execute(t, f, "", "-c", cfgPath, "dso-order", "orders-clear", "skip-pause-at-end")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dso-order:")
	assert.NotContains(t, out, "--- DONE")

	store, err := journal.NewJSONLStore(journalPath)
	require.NoError(t, err)
	recs, err := store.Query(context.Background(), journal.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "dso-order", recs[0].Name)
	assert.NotEmpty(t, recs[0].Error)
}

func TestOrdersChart(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	chart := filepath.Join(t.TempDir(), "book.html")
	f := platformtest.New()
	f.Orders.Seed(model.Order{ID: "o1", Side: model.SideSell, Quantity: 100, UnitPrice: 300, Status: model.StatusActive})

	out, err := execute(t, f, "", "-c", cfgPath, "--chart", chart, "orders-chart", "skip-pause-at-end")
	require.NoError(t, err)
	assert.Contains(t, out, "Order book written to "+chart)
	b, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<html")
}

func TestOrdersChartFailureLeavesNoFile(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	chart := filepath.Join(t.TempDir(), "book.html")
	f := platformtest.New()
	f.Orders.Err = errors.New("platform down")

	_, err := execute(t, f, "", "-c", cfgPath, "--chart", chart, "orders-chart", "skip-pause-at-end")
	require.ErrorContains(t, err, "platform down")
	assert.NoFileExists(t, chart)
}

func TestDevicesDemoOnce(t *testing.T) {
	noTTY := filepath.Join(t.TempDir(), "no-such-tty")
	cfgPath, journalPath := writeConfig(t, fmt.Sprintf("serial:\n  port: %q\n", noTTY))
	f := platformtest.New()
	f.Orders.Seed(model.Order{ID: "o1", AssetPortfolioID: "ap1", Quantity: 4, Status: model.StatusActive})

	out, err := execute(t, f, "", "-c", cfgPath, "--once", "devices-demo", "skip-pause-at-end")
	require.NoError(t, err)
	assert.Contains(t, out, "Usb device (el-lampo-numero-uno): Load reduced by 4")
	assert.Contains(t, out, "      failed:")

	store, err := journal.NewJSONLStore(journalPath)
	require.NoError(t, err)
	recs, err := store.Query(context.Background(), journal.Query{Kind: journal.KindDeviceLoad})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 6.0, recs[0].Load.CurrentKW)
	assert.NotEmpty(t, recs[0].Load.DeviceErr)
}

func TestDevicesDemoInterruptedSkipsPause(t *testing.T) {
	noTTY := filepath.Join(t.TempDir(), "no-such-tty")
	cfgPath, _ := writeConfig(t, fmt.Sprintf("serial:\n  port: %q\n", noTTY))
	f := platformtest.New()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	out, err := executeContext(ctx, t, f, "\n", "-c", cfgPath, "devices-demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 1 device(s):")
	assert.Contains(t, out, "press CTRL-C to terminate")
	assert.NotContains(t, out, "--- DONE")
}
