package monitoring

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fazecat/triggerdesk/Internal/types"
)

type TradeHistoryRecord struct {
	Trade     types.Trade     `json:"trade"`
	Triggers  []types.Trigger `json:"triggers"`
	ReturnPct float64         `json:"return_pct"`
	Duration  time.Duration   `json:"duration"`
	IsClosed  bool            `json:"is_closed"`
}

// PairTradesWithTriggers attaches to each trade the triggers of its ticker
// created between its opening and the opening of the next trade on that
// ticker. Newest trades come first.
func PairTradesWithTriggers(trades []types.Trade, trigs []types.Trigger) []TradeHistoryRecord {
	byTicker := make(map[string][]types.Trade)
	for _, t := range trades {
		byTicker[t.Ticker] = append(byTicker[t.Ticker], t)
	}
	for _, list := range byTicker {
		sort.SliceStable(list, func(i, j int) bool { return list[i].OpenedAt.Before(list[j].OpenedAt) })
	}

	owner := make(map[int64][]types.Trigger)
	for _, trig := range trigs {
		list := byTicker[trig.Ticker]
		for i := len(list) - 1; i >= 0; i-- {
			if !trig.CreatedAt.Before(list[i].OpenedAt) {
				owner[list[i].ID] = append(owner[list[i].ID], trig)
				break
			}
		}
	}

	out := make([]TradeHistoryRecord, 0, len(trades))
	for _, t := range trades {
		rec := TradeHistoryRecord{
			Trade:    t,
			Triggers: owner[t.ID],
			IsClosed: t.Status == types.TradeComplete,
		}
		if rec.IsClosed {
			rec.ReturnPct = returnPct(t.BuyPrice, t.SellPrice)
			if t.ClosedAt != nil {
				rec.Duration = t.ClosedAt.Sub(t.OpenedAt)
			}
		}
		sort.SliceStable(rec.Triggers, func(i, j int) bool { return rec.Triggers[i].Price < rec.Triggers[j].Price })
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Trade.OpenedAt.After(out[j].Trade.OpenedAt) })
	return out
}

// returnPct is the percentage move from buy to sell, rounded to 2dp.
func returnPct(buy, sell float64) float64 {
	if buy <= 0 {
		return 0
	}
	b := decimal.NewFromFloat(buy)
	pct, _ := decimal.NewFromFloat(sell).Sub(b).Div(b).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}
