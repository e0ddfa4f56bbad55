package strategy

import (
	"fmt"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fazecat/triggerdesk/Internal/types"
)

// TradePlan is what the operator enters when opening a trade: entry, one
// stop and one or two targets.
type TradePlan struct {
	Ticker    string
	SetupNote string
	Units     int64
	BuyPrice  float64
	StopLoss  float64
	R1        float64
	R2        float64 // optional second target, 0 when unused
	PlaceBuy  bool    // submit a limit BUY at BuyPrice before recording the trade
}

type PlanValidation struct {
	IsValid    bool
	RiskAmount float64
	Reward1    float64
	RiskReward float64
	Issues     []string
}

// ValidatePlan checks the price ladder stop < buy < r1 <= r2 for a long trade.
func ValidatePlan(p *TradePlan) *PlanValidation {
	v := &PlanValidation{IsValid: true, Issues: []string{}}

	if strings.TrimSpace(p.Ticker) == "" {
		v.IsValid = false
		v.Issues = append(v.Issues, "Ticker is required")
	}
	if p.Units <= 0 {
		v.IsValid = false
		v.Issues = append(v.Issues, "Units must be > 0")
	}
	if p.BuyPrice <= 0 || p.StopLoss <= 0 || p.R1 <= 0 {
		v.IsValid = false
		v.Issues = append(v.Issues, "Invalid price levels (must be > 0)")
		return v
	}
	if p.StopLoss >= p.BuyPrice {
		v.IsValid = false
		v.Issues = append(v.Issues, "Stop loss must be below the buy price")
	}
	if p.R1 <= p.BuyPrice {
		v.IsValid = false
		v.Issues = append(v.Issues, "First target must be above the buy price")
	}
	if p.R2 != 0 && p.R2 < p.R1 {
		v.IsValid = false
		v.Issues = append(v.Issues, "Second target must not be below the first")
	}

	units := decimal.NewFromInt(p.Units)
	risk := decimal.NewFromFloat(p.BuyPrice).Sub(decimal.NewFromFloat(p.StopLoss)).Mul(units)
	reward := decimal.NewFromFloat(p.R1).Sub(decimal.NewFromFloat(p.BuyPrice)).Mul(units)
	v.RiskAmount, _ = risk.Float64()
	v.Reward1, _ = reward.Float64()
	if risk.IsPositive() {
		v.RiskReward, _ = reward.Div(risk).Round(2).Float64()
	}
	return v
}

// Triggers builds the Below stop and the Above targets for a plan.
func (p *TradePlan) Triggers() []types.Trigger {
	ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
	out := []types.Trigger{
		{Ticker: ticker, Status: types.TriggerActive, Type: types.TriggerBelow, Price: p.StopLoss},
		{Ticker: ticker, Status: types.TriggerActive, Type: types.TriggerAbove, Price: p.R1},
	}
	if p.R2 > 0 {
		out = append(out, types.Trigger{Ticker: ticker, Status: types.TriggerActive, Type: types.TriggerAbove, Price: p.R2})
	}
	return out
}

// BuildPlaceOrderRequest converts a desk order into an Alpaca order request.
// Every request gets a fresh client order id.
func BuildPlaceOrderRequest(req types.OrderRequest) (*alpaca.PlaceOrderRequest, error) {
	if req.Ticker == "" {
		return nil, fmt.Errorf("order request has no ticker")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity: %d", req.Quantity)
	}

	var side alpaca.Side
	switch req.Side {
	case types.SideBuy:
		side = alpaca.Buy
	case types.SideSell:
		side = alpaca.Sell
	default:
		return nil, fmt.Errorf("invalid side: %s (must be BUY or SELL)", req.Side)
	}

	qty := decimal.NewFromInt(req.Quantity)
	placeOrderReq := &alpaca.PlaceOrderRequest{
		Symbol:        strings.ToUpper(req.Ticker),
		Qty:           &qty,
		Side:          side,
		TimeInForce:   alpaca.Day,
		ClientOrderID: "td-" + uuid.NewString(),
	}

	switch req.Type {
	case types.OrderMarket:
		placeOrderReq.Type = alpaca.Market
	case types.OrderLimit:
		if req.LimitPrice <= 0 {
			return nil, fmt.Errorf("limit order needs a positive limit price")
		}
		limitPrice := decimal.NewFromFloat(req.LimitPrice).Round(2)
		placeOrderReq.Type = alpaca.Limit
		placeOrderReq.LimitPrice = &limitPrice
	case types.OrderTrail:
		if req.TrailPercent <= 0 {
			return nil, fmt.Errorf("trailing order needs a positive trail percent")
		}
		trail := decimal.NewFromFloat(req.TrailPercent)
		placeOrderReq.Type = alpaca.TrailingStop
		placeOrderReq.TrailPercent = &trail
	default:
		return nil, fmt.Errorf("invalid order type: %s (must be LMT, MKT or TRAIL)", req.Type)
	}

	return placeOrderReq, nil
}

// MapOrderStatus folds Alpaca's order lifecycle into the statuses the trigger
// engine understands.
func MapOrderStatus(status string) types.OrderStatus {
	switch status {
	case "filled":
		return types.OrderFilled
	case "new", "accepted", "partially_filled", "held", "calculated":
		return types.OrderSubmitted
	case "pending_new", "accepted_for_bidding":
		return types.OrderPreSubmitted
	case "canceled", "expired", "rejected", "suspended", "stopped", "done_for_day", "replaced":
		return types.OrderCancelled
	default:
		return types.OrderUnknown
	}
}

// OrderResultFrom reads the fields the engine needs off an Alpaca order.
func OrderResultFrom(o *alpaca.Order) types.OrderResult {
	if o == nil {
		return types.OrderResult{Status: types.OrderUnknown}
	}
	res := types.OrderResult{
		OrderID:   o.ID,
		Status:    MapOrderStatus(o.Status),
		FilledQty: o.FilledQty.IntPart(),
	}
	if o.FilledAvgPrice != nil {
		res.FillPrice, _ = o.FilledAvgPrice.Float64()
	}
	return res
}
