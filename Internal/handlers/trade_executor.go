package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fazecat/triggerdesk/Internal/strategy"
	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
)

var (
	ErrInvalidPlan = errors.New("invalid trade plan")
	ErrBuyRejected = errors.New("buy order not accepted")
)

type TradeWriter interface {
	CreateTradeWithTriggers(ctx context.Context, trade *types.Trade, trigs []types.Trigger) error
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
}

// TradeExecutor opens trades: an optional limit BUY, then the trade and its
// stop and targets recorded together.
type TradeExecutor struct {
	store  TradeWriter
	broker OrderPlacer
	log    *logger.Logger
}

type OpenTradeResult struct {
	Trade      *types.Trade             `json:"trade"`
	Triggers   []types.Trigger          `json:"triggers"`
	Validation *strategy.PlanValidation `json:"validation"`
	BuyOrder   *types.OrderResult       `json:"buy_order,omitempty"`
}

func NewTradeExecutor(store TradeWriter, broker OrderPlacer, log *logger.Logger) *TradeExecutor {
	return &TradeExecutor{store: store, broker: broker, log: log.With(logger.String("component", "trade_executor"))}
}

func (e *TradeExecutor) OpenTrade(ctx context.Context, plan strategy.TradePlan) (*OpenTradeResult, error) {
	plan.Ticker = strings.ToUpper(strings.TrimSpace(plan.Ticker))

	validation := strategy.ValidatePlan(&plan)
	if !validation.IsValid {
		return &OpenTradeResult{Validation: validation},
			fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(validation.Issues, "; "))
	}

	res := &OpenTradeResult{Validation: validation}

	if plan.PlaceBuy {
		if e.broker == nil {
			return res, fmt.Errorf("place buy for %s: no broker session", plan.Ticker)
		}
		order, err := e.broker.PlaceOrder(ctx, types.OrderRequest{
			Ticker:     plan.Ticker,
			Side:       types.SideBuy,
			Type:       types.OrderLimit,
			Quantity:   plan.Units,
			LimitPrice: plan.BuyPrice,
		})
		if err != nil {
			return res, fmt.Errorf("place buy for %s: %w", plan.Ticker, err)
		}
		res.BuyOrder = &order
		if !order.Status.Accepted() {
			return res, fmt.Errorf("%w: %s status %s", ErrBuyRejected, plan.Ticker, order.Status)
		}
	}

	cost, _ := decimal.NewFromFloat(plan.BuyPrice).Mul(decimal.NewFromInt(plan.Units)).Round(2).Float64()
	trade := &types.Trade{
		Ticker:    plan.Ticker,
		SetupNote: plan.SetupNote,
		BuyPrice:  plan.BuyPrice,
		Units:     plan.Units,
		StopLoss:  plan.StopLoss,
		R1:        plan.R1,
		R2:        plan.R2,
		TotalCost: cost,
		Status:    types.TradeNew,
	}
	trigs := plan.Triggers()

	if err := e.store.CreateTradeWithTriggers(ctx, trade, trigs); err != nil {
		return res, fmt.Errorf("record trade for %s: %w", plan.Ticker, err)
	}
	res.Trade = trade
	res.Triggers = trigs

	e.log.Info("trade opened",
		logger.String("ticker", trade.Ticker),
		logger.Int64("trade_id", trade.ID),
		logger.Int64("units", trade.Units),
		logger.Float("buy", trade.BuyPrice),
		logger.Float("stop", trade.StopLoss),
		logger.Float("r1", trade.R1),
		logger.Float("r2", trade.R2),
		logger.Float("risk_reward", validation.RiskReward))
	return res, nil
}
