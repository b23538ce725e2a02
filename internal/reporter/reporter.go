// Package reporter renders the periodic status line and the final
// run summary.
package reporter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"tradeogre-grid-bot-go/internal/models"
)

// Reporter turns bot state into human-readable output. The status line
// goes through the structured logger; the final summary is a table
// written to out.
type Reporter struct {
	cfg    *models.Config
	state  *models.BotState
	logger *zap.SugaredLogger
	out    io.Writer
	now    func() time.Time
}

// New builds a reporter writing its summary table to stdout.
func New(cfg *models.Config, state *models.BotState, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{
		cfg:    cfg,
		state:  state,
		logger: logger,
		out:    os.Stdout,
		now:    time.Now,
	}
}

// Status logs a one-line snapshot of the run.
func (r *Reporter) Status(cycle int) {
	r.logger.Infof("status: cycle %d, %d open orders, %d trades, last price %.8f, failures %d",
		cycle, len(r.state.Orders), r.state.TotalTrades, r.state.LastPrice, r.state.ConsecutiveFailures)
}

// Final renders the end-of-run summary table.
func (r *Reporter) Final() {
	uptime := r.now().UTC().Sub(r.state.StartTime).Round(time.Second)

	outcome := "clean shutdown"
	if r.state.EmergencyStop {
		outcome = "emergency stop: " + r.state.StopReason
	}

	mode := "live"
	if r.cfg.DryRun {
		mode = "dry run"
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("Run Summary")
	t.AppendRows([]table.Row{
		{"Market", r.cfg.Market},
		{"Mode", mode},
		{"Uptime", uptime.String()},
		{"Outcome", outcome},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total trades", r.state.TotalTrades},
		{"Open orders remaining", len(r.state.Orders)},
		{"Last observed price", fmt.Sprintf("%.8f", r.state.LastPrice)},
		{"Daily PnL", fmt.Sprintf("%.2f", r.state.DailyPnL)},
	})
	t.Render()

	r.logger.Infof("run finished: %s, %d trades over %s", outcome, r.state.TotalTrades, uptime)
}
