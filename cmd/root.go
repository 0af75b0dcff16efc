package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flexmarket/app"
	"github.com/kilianp07/flexmarket/config"
	"github.com/kilianp07/flexmarket/infra/logger"
)

type options struct {
	cfgPath    string
	pauseAtEnd bool
	once       bool
	chart      string
}

// NewRootCmd builds the command line. Operations print to out and the end
// of run pause reads from in. svcOpts customize the service, e.g. in tests.
func NewRootCmd(in io.Reader, out io.Writer, svcOpts ...app.Option) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "flexmarket [flags] <operation>...",
		Short: "Flexibility market demo client",
		Long:  "Runs demo operations of a DSO and an FSP against the flexibility trading platform. Run with 'help' to list them.",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o, args, in, out, svcOpts)
		},
	}
	cmd.SetOut(out)
	cmd.Flags().StringVarP(&o.cfgPath, "config", "c", "config.yaml", "configuration file (missing file means defaults)")
	cmd.Flags().BoolVar(&o.pauseAtEnd, "pause-at-end", true, "wait for enter before exiting")
	cmd.Flags().BoolVar(&o.once, "once", false, "run a single devices-demo cycle")
	cmd.Flags().StringVar(&o.chart, "chart", "orderbook.html", "output file of orders-chart")
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Restore default signal handling after the first signal so a second one
	// kills the process.
	context.AfterFunc(ctx, stop)
	return NewRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx)
}

func run(ctx context.Context, o options, args []string, in io.Reader, out io.Writer, svcOpts []app.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(out, "Welcome to the flexibility market demo client!")
	p, ok := parse(args)
	if !ok {
		showHelp(out)
		return nil
	}
	fmt.Fprintf(out, "   Your commands: %s. Run with argument 'help' to see list of options.\n", strings.Join(args, " "))
	if p.help {
		showHelp(out)
	}

	if len(p.steps) > 0 {
		if err := runSteps(ctx, o, p.steps, out, svcOpts); err != nil {
			return err
		}
	}

	// Interrupted runs exit without waiting for enter.
	if ctx.Err() != nil {
		return nil
	}
	if o.pauseAtEnd && !p.skip {
		fmt.Fprintln(out, "--- DONE - Press enter to close program")
		_, _ = bufio.NewReader(in).ReadString('\n')
	}
	return nil
}

func runSteps(ctx context.Context, o options, steps []operation, out io.Writer, svcOpts []app.Option) error {
	log := logger.New("cli")
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg, append([]app.Option{app.WithOutput(out)}, svcOpts...)...)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()

	e := &env{svc: svc, out: out, once: o.once, chart: o.chart}
	return svc.Run(ctx, func(ctx context.Context) error {
		for _, op := range steps {
			log.Infof("running %s", op.name)
			started := time.Now()
			created, err := op.run(ctx, e)
			svc.RecordOperation(ctx, op.name, started, created, err)
			if err != nil {
				log.Errorf("%s failed: %v", op.name, err)
				return fmt.Errorf("%s: %w", op.name, err)
			}
		}
		return nil
	})
}
