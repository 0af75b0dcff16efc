package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kilianp07/flexmarket/app"
	"github.com/kilianp07/flexmarket/core/roles"
)

// env is what an operation runs against.
type env struct {
	svc   *app.Service
	out   io.Writer
	once  bool
	chart string
}

func (e *env) dso(ctx context.Context) (*roles.DSO, error) {
	return roles.NewDSO(ctx, e.svc.Platform, e.svc.RoleOptions()...)
}

func (e *env) fsp(ctx context.Context) (*roles.FSP, error) {
	return roles.NewFSP(ctx, e.svc.Platform, e.svc.RoleOptions()...)
}

// operation is a named step of the demo. run returns the ids of the
// platform records it created.
type operation struct {
	name string
	help string
	run  func(ctx context.Context, e *env) ([]string, error)
}

// inAll reports whether the "all" operation includes op.
func (op operation) inAll() bool {
	return strings.HasPrefix(op.name, "dso-") || strings.HasPrefix(op.name, "fsp-")
}

const (
	opHelp = "help"
	opSkip = "skip-pause-at-end"
	opAll  = "all"
)

// operations in execution order. "all" is accepted but not listed.
var operations = []operation{
	{name: opHelp, help: "show this list"},
	{name: opSkip, help: "do not wait for enter before exiting"},
	{name: "dso-grid", help: "create the DSO grid node structure and market", run: func(ctx context.Context, e *env) ([]string, error) {
		d, err := e.dso(ctx)
		if err != nil {
			return nil, err
		}
		g, err := d.CreateGridNodes(ctx)
		if err != nil {
			return nil, err
		}
		return g.IDs(), nil
	}},
	{name: "dso-tree", help: "print the grid node tree", run: func(ctx context.Context, e *env) ([]string, error) {
		d, err := e.dso(ctx)
		if err != nil {
			return nil, err
		}
		return nil, d.DisplayGridNodeTree(ctx)
	}},
	{name: "fsp-assets", help: "create FSP assets and assign them to the grid", run: func(ctx context.Context, e *env) ([]string, error) {
		f, err := e.fsp(ctx)
		if err != nil {
			return nil, err
		}
		assets, err := f.CreateAssets(ctx)
		ids := make([]string, len(assets))
		for i, a := range assets {
			ids[i] = a.ID
		}
		return ids, err
	}},
	{name: "dso-approve", help: "approve every pending asset", run: func(ctx context.Context, e *env) ([]string, error) {
		d, err := e.dso(ctx)
		if err != nil {
			return nil, err
		}
		_, err = d.ApproveAssets(ctx)
		return nil, err
	}},
	{name: "fsp-portfolios", help: "put the approved assets in a portfolio", run: func(ctx context.Context, e *env) ([]string, error) {
		f, err := e.fsp(ctx)
		if err != nil {
			return nil, err
		}
		p, _, err := f.CreatePortfolio(ctx)
		if err != nil {
			return nil, err
		}
		return []string{p.ID}, nil
	}},
	{name: "fsp-order", help: "place a sell order for the portfolio", run: func(ctx context.Context, e *env) ([]string, error) {
		f, err := e.fsp(ctx)
		if err != nil {
			return nil, err
		}
		o, err := f.PlaceSellOrder(ctx)
		if err != nil {
			return nil, err
		}
		return []string{o.ID}, nil
	}},
	{name: "dso-order", help: "buy the offered flexibility and list trades", run: func(ctx context.Context, e *env) ([]string, error) {
		d, err := e.dso(ctx)
		if err != nil {
			return nil, err
		}
		res, err := d.PlaceBuyOrder(ctx)
		if res.Order.ID == "" {
			return nil, err
		}
		e.svc.RecordTrades(res)
		return []string{res.Order.ID}, err
	}},
	{name: "orders-clear", help: "delete every order", run: func(ctx context.Context, e *env) ([]string, error) {
		_, err := roles.AttachFSP(e.svc.Platform, e.svc.RoleOptions()...).ClearOrders(ctx)
		return nil, err
	}},
	{name: "orders-chart", help: "write the open order book as an HTML chart", run: func(ctx context.Context, e *env) ([]string, error) {
		var buf bytes.Buffer
		if _, err := roles.AttachFSP(e.svc.Platform, e.svc.RoleOptions()...).RenderOrderBook(ctx, &buf); err != nil {
			return nil, err
		}
		if err := os.WriteFile(e.chart, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.chart, err)
		}
		fmt.Fprintf(e.out, "Order book written to %s\n", e.chart)
		return nil, nil
	}},
	{name: "devices-demo", help: "drive the demand response devices from active orders", run: func(ctx context.Context, e *env) ([]string, error) {
		demo, release, err := e.svc.NewDemo(roles.AttachFSP(e.svc.Platform, e.svc.RoleOptions()...))
		if err != nil {
			return nil, err
		}
		defer release()
		if e.once {
			_, err = demo.RunOnce(ctx)
			return nil, err
		}
		return nil, demo.Run(ctx)
	}},
}

// plan is the parsed operation list of one invocation.
type plan struct {
	help  bool
	skip  bool
	steps []operation
}

// parse selects the operations named in args, each once, in declaration
// order. ok is false when args is empty or names an unknown operation.
func parse(args []string) (p plan, ok bool) {
	if len(args) == 0 {
		return p, false
	}
	want := map[string]bool{}
	for _, a := range args {
		if a != opAll && lookup(a) == nil {
			return p, false
		}
		want[a] = true
	}
	p.help, p.skip = want[opHelp], want[opSkip]
	for _, op := range operations {
		if op.run == nil {
			continue
		}
		if want[op.name] || (want[opAll] && op.inAll()) {
			p.steps = append(p.steps, op)
		}
	}
	return p, true
}

func lookup(name string) *operation {
	for i := range operations {
		if operations[i].name == name {
			return &operations[i]
		}
	}
	return nil
}

func showHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands: ")
	for _, op := range operations {
		fmt.Fprintf(w, "   %-18s %s\n", op.name, op.help)
	}
}
