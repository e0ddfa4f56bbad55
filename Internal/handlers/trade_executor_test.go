package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/fazecat/triggerdesk/Internal/strategy"
	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
)

type captureStore struct {
	trade *types.Trade
	trigs []types.Trigger
}

func (s *captureStore) CreateTradeWithTriggers(_ context.Context, trade *types.Trade, trigs []types.Trigger) error {
	trade.ID = 42
	for i := range trigs {
		trigs[i].ID = int64(i + 1)
	}
	s.trade, s.trigs = trade, trigs
	return nil
}

type stubPlacer struct {
	status types.OrderStatus
	reqs   []types.OrderRequest
}

func (p *stubPlacer) PlaceOrder(_ context.Context, req types.OrderRequest) (types.OrderResult, error) {
	p.reqs = append(p.reqs, req)
	return types.OrderResult{OrderID: "buy-1", Status: p.status}, nil
}

func validPlan() strategy.TradePlan {
	return strategy.TradePlan{
		Ticker: " abc ", SetupNote: "pullback into level", Units: 100,
		BuyPrice: 10, StopLoss: 9.5, R1: 11, R2: 12,
	}
}

func TestOpenTradeRecordsTradeAndTriggers(t *testing.T) {
	store := &captureStore{}
	e := NewTradeExecutor(store, nil, logger.Nop())

	res, err := e.OpenTrade(context.Background(), validPlan())
	if err != nil {
		t.Fatalf("OpenTrade() error = %v", err)
	}
	if res.Trade.ID != 42 || res.Trade.Ticker != "ABC" || res.Trade.TotalCost != 1000 {
		t.Errorf("unexpected trade %+v", res.Trade)
	}
	if res.Validation.RiskReward != 2 {
		t.Errorf("RiskReward = %v, want 2", res.Validation.RiskReward)
	}

	want := []struct {
		typ   types.TriggerType
		price float64
	}{
		{types.TriggerBelow, 9.5},
		{types.TriggerAbove, 11},
		{types.TriggerAbove, 12},
	}
	if len(store.trigs) != len(want) {
		t.Fatalf("got %d triggers, want %d", len(store.trigs), len(want))
	}
	for i, w := range want {
		got := store.trigs[i]
		if got.Type != w.typ || got.Price != w.price || got.Status != types.TriggerActive || got.Ticker != "ABC" {
			t.Errorf("trigger %d = %+v", i, got)
		}
	}
}

func TestOpenTradeRejectsBadPlans(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *strategy.TradePlan)
	}{
		{name: "stop above entry", mutate: func(p *strategy.TradePlan) { p.StopLoss = 10.5 }},
		{name: "target below entry", mutate: func(p *strategy.TradePlan) { p.R1 = 9.8 }},
		{name: "second target below first", mutate: func(p *strategy.TradePlan) { p.R2 = 10.5 }},
		{name: "no units", mutate: func(p *strategy.TradePlan) { p.Units = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &captureStore{}
			plan := validPlan()
			tt.mutate(&plan)

			res, err := NewTradeExecutor(store, nil, logger.Nop()).OpenTrade(context.Background(), plan)
			if !errors.Is(err, ErrInvalidPlan) {
				t.Fatalf("error = %v, want ErrInvalidPlan", err)
			}
			if res.Validation == nil || len(res.Validation.Issues) == 0 {
				t.Errorf("validation issues missing")
			}
			if store.trade != nil {
				t.Errorf("invalid plan must not be recorded")
			}
		})
	}
}

func TestOpenTradeWithBuyOrder(t *testing.T) {
	tests := []struct {
		name     string
		status   types.OrderStatus
		wantErr  error
		recorded bool
	}{
		{name: "filled buy", status: types.OrderFilled, recorded: true},
		{name: "working buy", status: types.OrderSubmitted, recorded: true},
		{name: "rejected buy", status: types.OrderCancelled, wantErr: ErrBuyRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &captureStore{}
			placer := &stubPlacer{status: tt.status}
			plan := validPlan()
			plan.PlaceBuy = true

			res, err := NewTradeExecutor(store, placer, logger.Nop()).OpenTrade(context.Background(), plan)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(placer.reqs) != 1 {
				t.Fatalf("placed %d orders", len(placer.reqs))
			}
			req := placer.reqs[0]
			if req.Side != types.SideBuy || req.Type != types.OrderLimit || req.Quantity != 100 || req.LimitPrice != 10 {
				t.Errorf("unexpected buy %+v", req)
			}
			if (store.trade != nil) != tt.recorded {
				t.Errorf("recorded = %v, want %v", store.trade != nil, tt.recorded)
			}
			if res.BuyOrder == nil || res.BuyOrder.OrderID != "buy-1" {
				t.Errorf("buy order result missing: %+v", res.BuyOrder)
			}
		})
	}
}
