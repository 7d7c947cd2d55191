package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/avandermeer/tieout"
	"github.com/avandermeer/tieout/logger"
	"github.com/avandermeer/tieout/telemetry"
	"github.com/avandermeer/tieout/web"
)

type WebCmd struct {
	Dir  string `help:"Data directory containing the input CSV tables." arg:"" default:"." type:"existingdir"`
	Port int    `help:"Port to listen on." default:"8080"`

	Watch                bool    `help:"Reload the pipeline when files in the data directory change." short:"w"`
	CashAccount          string  `help:"Ledger account id of the cash account (auto-detected from the chart when omitted)."`
	BankTolerance        float64 `help:"Tolerance for bank amount comparisons." default:"0.01"`
	RollforwardTolerance float64 `help:"Tolerance for rollforward tie-outs." default:"0.000001"`
}

func (cmd *WebCmd) Run(ctx *kong.Context, globals *Globals) error {
	log := logger.New()
	runCtx := logger.WithContext(context.Background(), log)

	if globals.Telemetry {
		collector := telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		defer func() {
			_, _ = fmt.Fprintln(ctx.Stderr)
			collector.Report(ctx.Stderr)
		}()
	}

	dataDir, err := filepath.Abs(cmd.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	server := web.New(cmd.Port, dataDir)
	server.Version = Version
	server.CommitSHA = CommitSHA
	server.WatchEnabled = cmd.Watch
	server.Options = tieout.Options{
		CashAccountID:        cmd.CashAccount,
		BankTolerance:        decimal.NewFromFloat(cmd.BankTolerance),
		RollforwardTolerance: decimal.NewFromFloat(cmd.RollforwardTolerance),
	}

	printInfof(ctx.Stdout, "Starting server on %s:%d", server.Host, cmd.Port)
	printInfof(ctx.Stdout, "Serving data directory: %s", pathStyle.Render(dataDir))
	if cmd.Watch {
		printInfof(ctx.Stdout, "Watching for changes")
	}

	return server.Start(runCtx)
}
