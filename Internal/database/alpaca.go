package datafeed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/fazecat/triggerdesk/Internal/strategy"
	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils"
	"github.com/fazecat/triggerdesk/Internal/utils/config"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
)

var ErrNotConnected = errors.New("broker session not connected")

// tradingClient is the slice of *alpaca.Client the gateway uses.
type tradingClient interface {
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetOrder(orderID string) (*alpaca.Order, error)
}

// Gateway is the broker session. It must be connected before positions or
// orders are requested.
type Gateway struct {
	cfg       config.BrokerConfig
	settle    time.Duration
	log       *logger.Logger
	newClient func(alpaca.ClientOpts) tradingClient

	mu     sync.RWMutex
	client tradingClient
}

func NewGateway(cfg config.BrokerConfig, settle time.Duration, log *logger.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		settle: settle,
		log:    log.With(logger.String("component", "gateway")),
		newClient: func(opts alpaca.ClientOpts) tradingClient {
			return alpaca.NewClient(opts)
		},
	}
}

// Connect opens the session and checks the credentials against the account
// endpoint.
func (g *Gateway) Connect(ctx context.Context) error {
	if g.cfg.APIKey == "" || g.cfg.APISecret == "" {
		return fmt.Errorf("ALPACA_API_KEY or ALPACA_API_SECRET not set")
	}

	client := g.newClient(alpaca.ClientOpts{
		APIKey:    g.cfg.APIKey,
		APISecret: g.cfg.APISecret,
		BaseURL:   g.cfg.BaseURL,
	})

	var account *alpaca.Account
	err := utils.RetryWithBackoff(ctx, func() error {
		var err error
		account, err = client.GetAccount()
		return err
	}, utils.DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	g.mu.Lock()
	g.client = client
	g.mu.Unlock()

	g.log.Info("broker session connected", logger.String("account", account.AccountNumber), logger.String("url", g.cfg.BaseURL))
	return nil
}

func (g *Gateway) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.log.Info("broker session closed")
	}
	g.client = nil
}

func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client != nil
}

func (g *Gateway) session() (tradingClient, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.client == nil {
		return nil, ErrNotConnected
	}
	return g.client, nil
}

// Positions lists broker holdings. Fractional quantities are truncated.
func (g *Gateway) Positions(ctx context.Context) ([]types.Position, error) {
	client, err := g.session()
	if err != nil {
		return nil, err
	}

	var raw []alpaca.Position
	err = utils.RetryWithBackoff(ctx, func() error {
		var err error
		raw, err = client.GetPositions()
		return err
	}, utils.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	out := make([]types.Position, 0, len(raw))
	for _, p := range raw {
		out = append(out, types.Position{Ticker: p.Symbol, Qty: p.Qty.IntPart()})
	}
	return out, nil
}

// PlaceOrder submits req, waits the settle delay and reads the order back so
// the caller sees the broker's status after the first fill attempt.
func (g *Gateway) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	client, err := g.session()
	if err != nil {
		return types.OrderResult{}, err
	}

	placeReq, err := strategy.BuildPlaceOrderRequest(req)
	if err != nil {
		return types.OrderResult{}, err
	}

	order, err := client.PlaceOrder(*placeReq)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("place %s %s order for %s: %w", req.Side, req.Type, req.Ticker, err)
	}
	g.log.Info("order submitted",
		logger.String("ticker", req.Ticker),
		logger.String("side", string(req.Side)),
		logger.String("type", string(req.Type)),
		logger.Int64("qty", req.Quantity),
		logger.String("order_id", order.ID))

	if g.settle > 0 {
		select {
		case <-ctx.Done():
			return strategy.OrderResultFrom(order), ctx.Err()
		case <-time.After(g.settle):
		}
	}

	settled, err := client.GetOrder(order.ID)
	if err != nil {
		g.log.Warn("order status read-back failed", logger.String("order_id", order.ID), logger.Error(err))
		return strategy.OrderResultFrom(order), nil
	}
	return strategy.OrderResultFrom(settled), nil
}

func (g *Gateway) OrderStatus(ctx context.Context, orderID string) (types.OrderResult, error) {
	client, err := g.session()
	if err != nil {
		return types.OrderResult{}, err
	}
	order, err := client.GetOrder(orderID)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return strategy.OrderResultFrom(order), nil
}

// barsClient is the slice of *marketdata.Client used for history and quotes.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// MarketData serves bar history and live prices from Alpaca.
type MarketData struct {
	client    barsClient
	feed      marketdata.Feed
	timeframe marketdata.TimeFrame
	retry     utils.RetryConfig
	log       *logger.Logger
}

func NewMarketData(broker config.BrokerConfig, cfg config.MarketDataConfig, log *logger.Logger) *MarketData {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    broker.APIKey,
		APISecret: broker.APISecret,
		Feed:      cfg.Feed,
	})
	return newMarketData(client, cfg, log)
}

func newMarketData(client barsClient, cfg config.MarketDataConfig, log *logger.Logger) *MarketData {
	return &MarketData{
		client:    client,
		feed:      cfg.Feed,
		timeframe: ParseTimeFrame(cfg.Timeframe),
		retry:     utils.DefaultRetryConfig(),
		log:       log.With(logger.String("component", "marketdata")),
	}
}

// ParseTimeFrame maps the config timeframe names onto Alpaca timeframes.
// Unknown names fall back to daily bars.
func ParseTimeFrame(tf string) marketdata.TimeFrame {
	switch tf {
	case "1Min":
		return marketdata.OneMin
	case "5Min":
		return marketdata.NewTimeFrame(5, marketdata.Min)
	case "15Min":
		return marketdata.NewTimeFrame(15, marketdata.Min)
	case "1Hour":
		return marketdata.OneHour
	default:
		return marketdata.OneDay
	}
}

// History returns bars for ticker between start and end, oldest first.
func (m *MarketData) History(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error) {
	var raw []marketdata.Bar
	err := utils.RetryWithBackoff(ctx, func() error {
		var err error
		raw, err = m.client.GetBars(strings.ToUpper(ticker), marketdata.GetBarsRequest{
			TimeFrame: m.timeframe,
			Start:     start,
			End:       end,
			Feed:      m.feed,
		})
		return err
	}, m.retry)
	if err != nil {
		return nil, fmt.Errorf("get bars for %s: %w", ticker, err)
	}

	bars := make([]types.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, types.Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// LatestPrice is the last trade price, or 0 when the provider has none.
func (m *MarketData) LatestPrice(ctx context.Context, ticker string) float64 {
	var trade *marketdata.Trade
	err := utils.RetryWithBackoff(ctx, func() error {
		var err error
		trade, err = m.client.GetLatestTrade(strings.ToUpper(ticker), marketdata.GetLatestTradeRequest{Feed: m.feed})
		return err
	}, m.retry)
	if err != nil {
		m.log.Warn("latest price unavailable", logger.String("ticker", ticker), logger.Error(err))
		return 0
	}
	if trade == nil {
		return 0
	}
	return trade.Price
}
