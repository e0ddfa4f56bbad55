package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	datafeed "github.com/fazecat/triggerdesk/Internal/database"
	"github.com/fazecat/triggerdesk/Internal/handlers/monitoring"
	"github.com/fazecat/triggerdesk/Internal/strategy"
	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/config"
	"github.com/fazecat/triggerdesk/Internal/utils/formatting"
	"github.com/fazecat/triggerdesk/Internal/utils/scanner"
)

// DeskStore is what the menu reads directly from the trade store.
type DeskStore interface {
	ListTrades(ctx context.Context, status types.TradeStatus) ([]types.Trade, error)
	ListTriggers(ctx context.Context, ticker string, status types.TriggerStatus) ([]types.Trigger, error)
	TradeStats(ctx context.Context, lookbackDays int) (*datafeed.TradeStats, error)
}

// Desk drives the interactive menu. Every handler prints its result and
// returns; errors are shown, never fatal.
type Desk struct {
	cfg      *config.Config
	store    DeskStore
	scanner  *scanner.Scanner
	executor *TradeExecutor
	monitor  *monitoring.TriggerMonitor
	in       *bufio.Reader
	out      io.Writer
}

func NewDesk(cfg *config.Config, store DeskStore, sc *scanner.Scanner, exec *TradeExecutor,
	mon *monitoring.TriggerMonitor, in io.Reader, out io.Writer) *Desk {
	return &Desk{cfg: cfg, store: store, scanner: sc, executor: exec, monitor: mon, in: bufio.NewReader(in), out: out}
}

func (d *Desk) prompt(label string) string {
	fmt.Fprint(d.out, label)
	line, _ := d.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (d *Desk) promptFloat(label string) (float64, bool) {
	v, err := strconv.ParseFloat(d.prompt(label), 64)
	return v, err == nil
}

func (d *Desk) header(title string, width int) {
	fmt.Fprintln(d.out, "\n"+formatting.Separator(width))
	fmt.Fprintln(d.out, title)
	fmt.Fprintln(d.out, formatting.Separator(width))
}

// ShowMenu prints the main menu and returns the trimmed choice.
func (d *Desk) ShowMenu() string {
	monitorState := "stopped"
	if d.monitor.Running() {
		monitorState = "running"
	}

	fmt.Fprintln(d.out, "\n=== TriggerDesk ===")
	fmt.Fprintln(d.out, "1. Import universe & scan")
	fmt.Fprintln(d.out, "2. Show scan results")
	fmt.Fprintln(d.out, "3. Levels for a symbol")
	fmt.Fprintln(d.out, "4. Open trade")
	fmt.Fprintln(d.out, "5. List trades")
	fmt.Fprintln(d.out, "6. List triggers")
	fmt.Fprintln(d.out, "7. Trade stats")
	fmt.Fprintln(d.out, "8. Export shortlist")
	fmt.Fprintln(d.out, "9. Run trigger tick now")
	fmt.Fprintf(d.out, "10. Start/stop trigger monitor (%s)\n", monitorState)
	fmt.Fprintln(d.out, "11. Settings")
	fmt.Fprintln(d.out, "12. Exit")
	return d.prompt("Select option: ")
}

func (d *Desk) HandleImportAndScan(ctx context.Context) {
	path := d.prompt(fmt.Sprintf("Universe CSV (default %s): ", d.cfg.Scan.UniverseFile))
	if path == "" {
		path = d.cfg.Scan.UniverseFile
	}

	symbols, err := scanner.LoadUniverse(path)
	if err != nil {
		fmt.Fprintf(d.out, "Import failed: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Imported %d symbols, scanning...\n", len(symbols))

	res, err := d.scanner.Run(ctx, symbols)
	if err != nil {
		fmt.Fprintf(d.out, "Scan failed: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Scan complete in %s: %d retained, %d dropped, %d failed\n",
		res.Duration.Round(time.Millisecond), res.Retained, res.Dropped, len(res.Failed))
	if len(res.Failed) > 0 {
		fmt.Fprintf(d.out, "Failed: %s\n", strings.Join(res.Failed, ", "))
	}
}

func (d *Desk) HandleShowScan(ctx context.Context) {
	rows, err := d.scanner.Snapshots(ctx, d.cfg.Export.MinBearScore)
	if err != nil {
		fmt.Fprintf(d.out, "Failed to load scan results: %v\n", err)
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(d.out, "No scan results, run a scan first")
		return
	}

	d.header("SCAN RESULTS", 90)
	fmt.Fprintf(d.out, "%-8s %-24s %8s %5s %8s %5s %6s %5s %8s\n",
		"Ticker", "Company", "Bear", "Steps", "Bounce", "Steps", "Vol", "Swal", "OptSize")
	for _, r := range rows {
		company := r.Company
		if len(company) > 24 {
			company = company[:24]
		}
		fmt.Fprintf(d.out, "%-8s %-24s %8.4f %5d %8.4f %5d %6.2f %5d %8.2f\n",
			r.Ticker, company, r.BearScore, r.BearSteps, r.BounceScore, r.BounceSteps, r.VolScore, r.PullbackSwallow, r.OptSize)
	}
}

func (d *Desk) HandleLevels(ctx context.Context) {
	symbol := strings.ToUpper(d.prompt("Symbol: "))
	if symbol == "" {
		fmt.Fprintln(d.out, "Invalid symbol")
		return
	}

	rep, err := d.scanner.Levels(ctx, symbol)
	if err != nil {
		fmt.Fprintf(d.out, "Failed to compute levels: %v\n", err)
		return
	}

	d.header(fmt.Sprintf("LEVELS %s (last close %.2f, mean bar size %.2f)", rep.Ticker, rep.LastClose, rep.SizeMean), 60)
	for _, l := range rep.Levels {
		marker := ""
		switch l {
		case rep.NearestUp:
			marker = "  <- next resistance"
		case rep.NearestDown:
			marker = "  <- next support"
		}
		fmt.Fprintf(d.out, "  %.2f%s\n", l, marker)
	}
	fmt.Fprintf(d.out, "Opt size: %.2f\n", rep.OptSize)
}

func (d *Desk) HandleOpenTrade(ctx context.Context) {
	plan := strategy.TradePlan{Ticker: strings.ToUpper(d.prompt("Ticker: "))}
	plan.SetupNote = d.prompt("Setup note: ")

	units, err := strconv.ParseInt(d.prompt("Units: "), 10, 64)
	if err != nil {
		fmt.Fprintln(d.out, "Invalid units")
		return
	}
	plan.Units = units

	var ok bool
	if plan.BuyPrice, ok = d.promptFloat("Buy price: "); !ok {
		fmt.Fprintln(d.out, "Invalid buy price")
		return
	}
	if plan.StopLoss, ok = d.promptFloat("Stop loss: "); !ok {
		fmt.Fprintln(d.out, "Invalid stop loss")
		return
	}
	if plan.R1, ok = d.promptFloat("Target 1: "); !ok {
		fmt.Fprintln(d.out, "Invalid target")
		return
	}
	if r2 := d.prompt("Target 2 (blank for none): "); r2 != "" {
		if plan.R2, err = strconv.ParseFloat(r2, 64); err != nil {
			fmt.Fprintln(d.out, "Invalid target")
			return
		}
	}
	plan.PlaceBuy = strings.EqualFold(d.prompt("Place limit BUY now? (y/n): "), "y")

	res, err := d.executor.OpenTrade(ctx, plan)
	if err != nil {
		fmt.Fprintf(d.out, "Trade not opened: %v\n", err)
		return
	}

	fmt.Fprintf(d.out, "Trade #%d opened: %s x%d @ %.2f (cost %s, R/R %.2f)\n",
		res.Trade.ID, res.Trade.Ticker, res.Trade.Units, res.Trade.BuyPrice,
		formatting.Money(res.Trade.TotalCost), res.Validation.RiskReward)
	for _, t := range res.Triggers {
		fmt.Fprintf(d.out, "  trigger #%d %s %.2f\n", t.ID, t.Type, t.Price)
	}
}

func (d *Desk) HandleListTrades(ctx context.Context) {
	var status types.TradeStatus
	switch strings.ToLower(d.prompt("Filter (o)pen / (c)omplete / Enter for all: ")) {
	case "o":
		status = types.TradeNew
	case "c":
		status = types.TradeComplete
	}

	trades, err := d.store.ListTrades(ctx, status)
	if err != nil {
		fmt.Fprintf(d.out, "Failed to fetch trades: %v\n", err)
		return
	}
	if len(trades) == 0 {
		fmt.Fprintln(d.out, "No trades")
		return
	}

	d.header(fmt.Sprintf("TRADES (%d)", len(trades)), 96)
	fmt.Fprintf(d.out, "%-5s %-16s %-8s %7s %8s %8s %8s %8s %-9s %12s\n",
		"ID", "Opened", "Ticker", "Units", "Buy", "Stop", "R1", "Sell", "Status", "P&L")
	for _, t := range trades {
		fmt.Fprintf(d.out, "%-5d %-16s %-8s %7d %8.2f %8.2f %8.2f %8.2f %-9s %12s\n",
			t.ID, t.OpenedAt.Format("2006-01-02 15:04"), t.Ticker, t.Units, t.BuyPrice, t.StopLoss, t.R1,
			t.SellPrice, t.Status, formatting.PnL(t.PnL))
	}
}

func (d *Desk) HandleListTriggers(ctx context.Context) {
	ticker := strings.ToUpper(d.prompt("Ticker (Enter for all): "))
	trigs, err := d.store.ListTriggers(ctx, ticker, "")
	if err != nil {
		fmt.Fprintf(d.out, "Failed to fetch triggers: %v\n", err)
		return
	}
	if len(trigs) == 0 {
		fmt.Fprintln(d.out, "No triggers")
		return
	}

	d.header(fmt.Sprintf("TRIGGERS (%d)", len(trigs)), 72)
	for _, t := range trigs {
		closed := ""
		if t.ClosedAt != nil {
			closed = t.ClosedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(d.out, "#%-4d %-8s %-6s %8.2f %-10s %12s %s\n",
			t.ID, t.Ticker, t.Type, t.Price, t.Status, formatting.PnL(t.PnL), closed)
	}
}

func (d *Desk) HandleStats(ctx context.Context) {
	days := 30
	if v, err := strconv.Atoi(d.prompt("Lookback days (default 30): ")); err == nil && v > 0 {
		days = v
	}

	stats, err := d.store.TradeStats(ctx, days)
	if err != nil {
		fmt.Fprintf(d.out, "Failed to compute stats: %v\n", err)
		return
	}

	pnl, _ := stats.TotalPnL.Float64()
	d.header(fmt.Sprintf("TRADE STATS (last %d days)", days), 50)
	fmt.Fprintf(d.out, "Total Trades:     %d (%d open)\n", stats.TotalTrades, stats.OpenTrades)
	fmt.Fprintf(d.out, "Winning Trades:   %d (%.1f%% win rate)\n", stats.WinningTrades, stats.WinRate)
	fmt.Fprintf(d.out, "Losing Trades:    %d\n", stats.LosingTrades)
	fmt.Fprintf(d.out, "Realized P&L:     %s\n", formatting.PnL(pnl))
	fmt.Fprintf(d.out, "Avg Trade Size:   %s units\n", stats.AverageTradeSize.Round(1).String())
}

func (d *Desk) HandleExport(ctx context.Context) {
	rows, err := d.scanner.Snapshots(ctx, d.cfg.Export.MinBearScore)
	if err != nil {
		fmt.Fprintf(d.out, "Failed to load scan results: %v\n", err)
		return
	}
	path, err := scanner.ExportShortlist(d.cfg.Export.Dir, rows, time.Now())
	if err != nil {
		fmt.Fprintf(d.out, "Export failed: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Exported %d rows to %s\n", len(rows), path)
}

func (d *Desk) HandleManualTick(ctx context.Context) {
	report, err := d.monitor.RunTick(ctx, time.Now())
	switch {
	case errors.Is(err, monitoring.ErrTickInProgress):
		fmt.Fprintln(d.out, "A tick is already running")
		return
	case err != nil:
		fmt.Fprintf(d.out, "Tick failed: %v\n", err)
		return
	case report.Skipped:
		fmt.Fprintln(d.out, "Broker not connected, tick skipped")
		return
	}
	fmt.Fprintf(d.out, "Tick done: %d tickers, %d fired, %d rejected, %d reconciled, %d trades completed, %d errors\n",
		report.Tickers, report.Fired, report.Rejected, report.Reconciled, report.Completed, report.Errors)
}

func (d *Desk) HandleMonitorToggle(ctx context.Context) {
	if d.monitor.Running() {
		d.monitor.Stop()
		fmt.Fprintln(d.out, "Trigger monitor stopped")
		return
	}
	d.monitor.Start(ctx)
	fmt.Fprintf(d.out, "Trigger monitor started (every %s)\n", d.cfg.Triggers.PollInterval)
}

func (d *Desk) HandleSettings() {
	if err := config.ConfigureInteractive(d.cfg, d.in); err != nil {
		fmt.Fprintf(d.out, "Settings error: %v\n", err)
	}
}
