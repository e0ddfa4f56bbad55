package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	datafeed "github.com/fazecat/triggerdesk/Internal/database"
	"github.com/fazecat/triggerdesk/Internal/strategy/triggers"
	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
	"github.com/fazecat/triggerdesk/Internal/utils/metrics"
)

var ErrTickInProgress = errors.New("trigger tick already running")

// TriggerStore is the part of the trade store the monitor reads and writes.
type TriggerStore interface {
	ActiveTriggers(ctx context.Context, ticker string) ([]types.Trigger, error)
	SubmittedTriggers(ctx context.Context) ([]types.Trigger, error)
	OpenTrade(ctx context.Context, ticker string) (*types.Trade, error)
	ApplyTickerUpdate(ctx context.Context, u types.TickerUpdate) error
}

type Broker interface {
	IsConnected() bool
	Positions(ctx context.Context) ([]types.Position, error)
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
	OrderStatus(ctx context.Context, orderID string) (types.OrderResult, error)
}

type PriceSource interface {
	LatestPrice(ctx context.Context, ticker string) float64
}

// TickReport summarises one monitor pass.
type TickReport struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Skipped    bool          `json:"skipped"`
	Tickers    int           `json:"tickers"`
	Fired      int           `json:"fired"`
	Rejected   int           `json:"rejected"`
	Reconciled int           `json:"reconciled"`
	Completed  int           `json:"completed"`
	Errors     int           `json:"errors"`
}

// TriggerMonitor polls positions and prices and turns trigger crossings into
// broker orders. Ticks never overlap.
type TriggerMonitor struct {
	engine   *triggers.Engine
	store    TriggerStore
	broker   Broker
	prices   PriceSource
	metrics  *metrics.Recorder
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time

	tickMu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTriggerMonitor(engine *triggers.Engine, store TriggerStore, broker Broker, prices PriceSource,
	rec *metrics.Recorder, interval time.Duration, log *logger.Logger) *TriggerMonitor {
	return &TriggerMonitor{
		engine:   engine,
		store:    store,
		broker:   broker,
		prices:   prices,
		metrics:  rec,
		log:      log.With(logger.String("component", "trigger_monitor")),
		interval: interval,
		now:      time.Now,
	}
}

// Start runs a tick every interval until ctx is done or Stop is called.
func (m *TriggerMonitor) Start(ctx context.Context) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.cancel != nil {
		m.log.Warn("trigger monitor already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)

	m.log.Info("trigger monitor started", logger.Duration("interval", m.interval))
}

func (m *TriggerMonitor) Stop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
	m.log.Info("trigger monitor stopped")
}

func (m *TriggerMonitor) Running() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	return m.cancel != nil
}

func (m *TriggerMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RunTick(ctx, m.now()); err != nil && !errors.Is(err, ErrTickInProgress) {
				m.log.Error("trigger tick failed", logger.Error(err))
			}
		}
	}
}

// RunTick performs one pass over every held position and every ticker with a
// submitted exit order. Each ticker's changes, reconciliation included, are
// committed together. Per-ticker failures are logged and counted; only a
// failure to list positions is returned.
func (m *TriggerMonitor) RunTick(ctx context.Context, now time.Time) (report TickReport, err error) {
	if !m.tickMu.TryLock() {
		m.metrics.RecordTick("overlap")
		return TickReport{StartedAt: now, Skipped: true}, ErrTickInProgress
	}
	defer m.tickMu.Unlock()

	start := time.Now()
	report.StartedAt = now
	defer func() {
		report.Duration = time.Since(start)
		m.metrics.RecordLatency("tick", report.Duration.Seconds())
	}()

	if !m.broker.IsConnected() {
		m.log.Debug("broker disconnected, skipping tick")
		m.metrics.RecordTick("disconnected")
		report.Skipped = true
		return report, nil
	}

	positions, err := m.broker.Positions(ctx)
	if err != nil {
		m.metrics.RecordTick("error")
		return report, fmt.Errorf("list positions: %w", err)
	}

	held := map[string]int64{}
	var tickers []string
	for _, pos := range positions {
		if pos.Qty <= 0 {
			continue
		}
		held[pos.Ticker] = pos.Qty
		tickers = append(tickers, pos.Ticker)
	}

	submitted, orders := m.submittedOrders(ctx, &report)
	var extra []string
	for ticker := range submitted {
		if _, ok := held[ticker]; !ok {
			extra = append(extra, ticker)
		}
	}
	sort.Strings(extra)
	tickers = append(tickers, extra...)

	activeSeen := 0
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}
		report.Tickers++
		n, err := m.processTicker(ctx, now, ticker, held[ticker], submitted[ticker], orders, &report)
		activeSeen += n
		if err != nil {
			report.Errors++
			m.log.Error("ticker tick failed", logger.String("ticker", ticker), logger.Error(err))
		}
	}
	m.metrics.SetActiveTriggers(activeSeen)

	outcome := "ok"
	if report.Errors > 0 {
		outcome = "partial"
	}
	m.metrics.RecordTick(outcome)

	m.log.Debug("trigger tick finished",
		logger.Int("tickers", report.Tickers),
		logger.Int("fired", report.Fired),
		logger.Int("reconciled", report.Reconciled),
		logger.Int("errors", report.Errors))
	return report, nil
}

// submittedOrders groups Submitted triggers by ticker and looks up their
// orders. An order whose status cannot be read stays pending.
func (m *TriggerMonitor) submittedOrders(ctx context.Context, report *TickReport) (map[string][]types.Trigger, map[string]types.OrderResult) {
	byTicker := map[string][]types.Trigger{}
	orders := map[string]types.OrderResult{}

	submitted, err := m.store.SubmittedTriggers(ctx)
	if err != nil {
		report.Errors++
		m.log.Error("list submitted triggers", logger.Error(err))
		return byTicker, orders
	}

	for _, t := range submitted {
		byTicker[t.Ticker] = append(byTicker[t.Ticker], t)
		if t.OrderID == "" {
			continue
		}
		if _, seen := orders[t.OrderID]; seen {
			continue
		}
		res, err := m.broker.OrderStatus(ctx, t.OrderID)
		if err != nil {
			m.log.Warn("order status unavailable", logger.String("order_id", t.OrderID), logger.Error(err))
			continue
		}
		orders[t.OrderID] = res
	}
	return byTicker, orders
}

func (m *TriggerMonitor) processTicker(ctx context.Context, now time.Time, ticker string, held int64,
	submitted []types.Trigger, orders map[string]types.OrderResult, report *TickReport) (int, error) {
	var price float64
	if held > 0 {
		price = m.prices.LatestPrice(ctx, ticker)
		if price <= 0 && len(submitted) == 0 {
			m.log.Warn("no live price, skipping ticker", logger.String("ticker", ticker))
			return 0, nil
		}
		if price > 0 {
			m.metrics.RecordLastPrice(ticker, price)
		}
	}

	active, err := m.store.ActiveTriggers(ctx, ticker)
	if err != nil {
		return 0, err
	}
	trade, err := m.openTrade(ctx, ticker)
	if err != nil {
		return len(active), err
	}

	sess := m.engine.NewSession(now, triggers.Snapshot{
		Ticker:    ticker,
		Held:      held,
		Price:     price,
		Active:    active,
		Trade:     trade,
		Submitted: submitted,
		Orders:    orders,
	})
	if sess.Pending() > 0 {
		m.log.Debug("exit order pending, not firing", logger.String("ticker", ticker), logger.Int("pending", sess.Pending()))
	}

	for {
		action, ok := sess.Next()
		if !ok {
			break
		}
		m.metrics.RecordFire(action.Kind.String())

		res, err := m.broker.PlaceOrder(ctx, action.Order)
		if err != nil {
			m.log.Error("order placement failed",
				logger.String("ticker", ticker),
				logger.String("kind", action.Kind.String()),
				logger.Error(err))
			res = placedResult(res)
		}
		m.metrics.RecordOrder(string(res.Status))

		fields := []logger.Field{
			logger.String("ticker", ticker),
			logger.String("kind", action.Kind.String()),
			logger.Int64("qty", action.Order.Quantity),
			logger.Int("divide", action.Divide),
			logger.Float("price", price),
			logger.String("status", string(res.Status)),
		}
		if action.Trigger != nil {
			fields = append(fields, logger.Int64("trigger_id", action.Trigger.ID), logger.Float("trigger_price", action.Trigger.Price))
		}

		if !sess.Resolve(action, res) {
			report.Rejected++
			m.log.Warn("order not accepted, will retry next tick", fields...)
			break
		}
		report.Fired++
		m.log.Info("trigger fired", fields...)
	}

	update := sess.Update()
	if update.Empty() {
		return len(active), nil
	}
	if err := m.store.ApplyTickerUpdate(ctx, update); err != nil {
		return len(active), fmt.Errorf("commit %s update: %w", ticker, err)
	}
	report.Reconciled += sess.Reconciled()
	if update.Trade != nil {
		report.Completed++
		m.log.Info("trade completed",
			logger.String("ticker", ticker),
			logger.Int64("trade_id", update.Trade.TradeID),
			logger.Float("sell_price", update.Trade.SellPrice),
			logger.Float("pnl", update.Trade.PnL))
	}
	return len(active), nil
}

// placedResult is the outcome recorded when PlaceOrder failed. An order the
// broker already holds is tracked as Submitted so a later tick reconciles it
// instead of selling again.
func placedResult(res types.OrderResult) types.OrderResult {
	if res.OrderID == "" {
		return types.OrderResult{Status: types.OrderUnknown}
	}
	if !res.Status.Accepted() && res.Status != types.OrderCancelled {
		res.Status = types.OrderSubmitted
	}
	return res
}

func (m *TriggerMonitor) openTrade(ctx context.Context, ticker string) (*types.Trade, error) {
	trade, err := m.store.OpenTrade(ctx, ticker)
	if errors.Is(err, datafeed.ErrNoOpenTrade) {
		return nil, nil
	}
	return trade, err
}

// Preview returns what a tick at now would do, without placing orders.
// Tickers waiting on a submitted exit order show no action.
func (m *TriggerMonitor) Preview(ctx context.Context, now time.Time) ([]triggers.Action, error) {
	if !m.broker.IsConnected() {
		return nil, datafeed.ErrNotConnected
	}
	positions, err := m.broker.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	submitted, err := m.store.SubmittedTriggers(ctx)
	if err != nil {
		return nil, err
	}
	pending := map[string][]types.Trigger{}
	for _, t := range submitted {
		pending[t.Ticker] = append(pending[t.Ticker], t)
	}

	var snaps []triggers.Snapshot
	for _, pos := range positions {
		if pos.Qty <= 0 {
			continue
		}
		price := m.prices.LatestPrice(ctx, pos.Ticker)
		if price <= 0 {
			continue
		}
		active, err := m.store.ActiveTriggers(ctx, pos.Ticker)
		if err != nil {
			return nil, err
		}
		trade, err := m.openTrade(ctx, pos.Ticker)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, triggers.Snapshot{
			Ticker:    pos.Ticker,
			Held:      pos.Qty,
			Price:     price,
			Active:    active,
			Trade:     trade,
			Submitted: pending[pos.Ticker],
		})
	}
	return m.engine.Preview(now, snaps), nil
}
