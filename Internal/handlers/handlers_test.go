package handlers

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	datafeed "github.com/fazecat/triggerdesk/Internal/database"
	"github.com/fazecat/triggerdesk/Internal/handlers/monitoring"
	"github.com/fazecat/triggerdesk/Internal/strategy/triggers"
	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/config"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
	"github.com/fazecat/triggerdesk/Internal/utils/metrics"
	"github.com/fazecat/triggerdesk/Internal/utils/scanner"
)

type deskStore struct {
	trades   []types.Trade
	triggers []types.Trigger
}

func (s *deskStore) ListTrades(context.Context, types.TradeStatus) ([]types.Trade, error) {
	return s.trades, nil
}

func (s *deskStore) ListTriggers(_ context.Context, ticker string, _ types.TriggerStatus) ([]types.Trigger, error) {
	var out []types.Trigger
	for _, t := range s.triggers {
		if ticker == "" || t.Ticker == ticker {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *deskStore) TradeStats(context.Context, int) (*datafeed.TradeStats, error) {
	return datafeed.ComputeTradeStats(s.trades), nil
}

// idleMonitorDeps satisfy the monitor with a disconnected broker.
type idleMonitorDeps struct{}

func (idleMonitorDeps) ActiveTriggers(context.Context, string) ([]types.Trigger, error) { return nil, nil }
func (idleMonitorDeps) SubmittedTriggers(context.Context) ([]types.Trigger, error)      { return nil, nil }
func (idleMonitorDeps) OpenTrade(context.Context, string) (*types.Trade, error) {
	return nil, datafeed.ErrNoOpenTrade
}
func (idleMonitorDeps) ApplyTickerUpdate(context.Context, types.TickerUpdate) error { return nil }
func (idleMonitorDeps) IsConnected() bool                                          { return false }
func (idleMonitorDeps) Positions(context.Context) ([]types.Position, error)        { return nil, nil }
func (idleMonitorDeps) PlaceOrder(context.Context, types.OrderRequest) (types.OrderResult, error) {
	return types.OrderResult{}, nil
}
func (idleMonitorDeps) OrderStatus(context.Context, string) (types.OrderResult, error) {
	return types.OrderResult{}, nil
}
func (idleMonitorDeps) LatestPrice(context.Context, string) float64 { return 0 }
func (idleMonitorDeps) History(context.Context, string, time.Time, time.Time) ([]types.Bar, error) {
	return nil, nil
}
func (idleMonitorDeps) ReplaceSnapshots(context.Context, []types.PatternScore) error { return nil }
func (idleMonitorDeps) ListSnapshots(context.Context, float64) ([]types.PatternScore, error) {
	return nil, nil
}

func newTestDesk(t *testing.T, store *deskStore, trades *captureStore, input string) (*Desk, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.LoadFrom("")
	if err != nil {
		t.Fatal(err)
	}
	deps := idleMonitorDeps{}
	rec := metrics.New()
	mon := monitoring.NewTriggerMonitor(triggers.NewEngine(triggers.Window{}), deps, deps, deps, rec, time.Second, logger.Nop())
	sc := scanner.New(deps, deps, rec, 30, logger.Nop())

	out := &bytes.Buffer{}
	return NewDesk(cfg, store, sc, NewTradeExecutor(trades, nil, logger.Nop()), mon, strings.NewReader(input), out), out
}

func TestDeskOpenTrade(t *testing.T) {
	trades := &captureStore{}
	input := strings.Join([]string{"abc", "flag break", "100", "10", "9.5", "11", "12", "n"}, "\n") + "\n"
	desk, out := newTestDesk(t, &deskStore{}, trades, input)

	desk.HandleOpenTrade(context.Background())

	if trades.trade == nil || trades.trade.Ticker != "ABC" || trades.trade.R2 != 12 {
		t.Fatalf("trade not recorded: %+v\n%s", trades.trade, out.String())
	}
	if !strings.Contains(out.String(), "Trade #42 opened") {
		t.Errorf("missing confirmation:\n%s", out.String())
	}
}

func TestDeskOpenTradeRejectsBadInput(t *testing.T) {
	trades := &captureStore{}
	desk, out := newTestDesk(t, &deskStore{}, trades, "abc\nnote\nlots\n")

	desk.HandleOpenTrade(context.Background())

	if trades.trade != nil {
		t.Errorf("trade recorded from bad input")
	}
	if !strings.Contains(out.String(), "Invalid units") {
		t.Errorf("missing error:\n%s", out.String())
	}
}

func TestDeskListTriggersFiltersByTicker(t *testing.T) {
	store := &deskStore{triggers: []types.Trigger{
		{ID: 1, Ticker: "ABC", Type: types.TriggerAbove, Price: 11, Status: types.TriggerActive},
		{ID: 2, Ticker: "XYZ", Type: types.TriggerBelow, Price: 4, Status: types.TriggerFilled, PnL: -20},
	}}
	desk, out := newTestDesk(t, store, &captureStore{}, "xyz\n")

	desk.HandleListTriggers(context.Background())

	got := out.String()
	if !strings.Contains(got, "TRIGGERS (1)") || !strings.Contains(got, "XYZ") || strings.Contains(got, "ABC") {
		t.Errorf("unexpected output:\n%s", got)
	}
	if !strings.Contains(got, "+$20.00") {
		t.Errorf("pnl should be shown as a gain:\n%s", got)
	}
}

func TestDeskManualTickWhileDisconnected(t *testing.T) {
	desk, out := newTestDesk(t, &deskStore{}, &captureStore{}, "")

	desk.HandleManualTick(context.Background())

	if !strings.Contains(out.String(), "tick skipped") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestDeskStats(t *testing.T) {
	store := &deskStore{trades: []types.Trade{
		{Units: 100, Status: types.TradeComplete, PnL: -150},
		{Units: 100, Status: types.TradeNew},
	}}
	desk, out := newTestDesk(t, store, &captureStore{}, "\n")

	desk.HandleStats(context.Background())

	got := out.String()
	if !strings.Contains(got, "Total Trades:     2 (1 open)") || !strings.Contains(got, "+$150.00") {
		t.Errorf("unexpected output:\n%s", got)
	}
}
