package datafeed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fazecat/triggerdesk/Internal/types"
)

type TradeStats struct {
	TotalTrades      int
	OpenTrades       int
	WinningTrades    int
	LosingTrades     int
	TotalPnL         decimal.Decimal
	WinRate          float64
	AverageTradeSize decimal.Decimal
}

func (s *Store) TradeStats(ctx context.Context, lookbackDays int) (*TradeStats, error) {
	trades, err := s.TradesSince(ctx, time.Now().AddDate(0, 0, -lookbackDays))
	if err != nil {
		return nil, err
	}
	return ComputeTradeStats(trades), nil
}

// ComputeTradeStats summarises trades. Trade pnl is buy value minus sell
// value, so a winning trade has a negative pnl.
func ComputeTradeStats(trades []types.Trade) *TradeStats {
	stats := &TradeStats{
		TotalPnL:         decimal.Zero,
		AverageTradeSize: decimal.Zero,
	}
	if len(trades) == 0 {
		return stats
	}

	stats.TotalTrades = len(trades)
	totalUnits := decimal.Zero
	closed := 0

	for _, t := range trades {
		totalUnits = totalUnits.Add(decimal.NewFromInt(t.Units))
		if t.Status != types.TradeComplete {
			stats.OpenTrades++
			continue
		}
		closed++

		pnl := decimal.NewFromFloat(t.PnL)
		stats.TotalPnL = stats.TotalPnL.Add(pnl)
		if pnl.IsNegative() {
			stats.WinningTrades++
		} else if pnl.IsPositive() {
			stats.LosingTrades++
		}
	}

	if closed > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(closed) * 100
	}
	stats.AverageTradeSize = totalUnits.Div(decimal.NewFromInt(int64(stats.TotalTrades)))
	return stats
}
