package types

import "time"

type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// Symbol is one row of the imported universe.
type Symbol struct {
	Ticker  string
	Company string
}

type TriggerStatus string

const (
	TriggerActive    TriggerStatus = "Active"
	TriggerSubmitted TriggerStatus = "Submitted"
	TriggerFilled    TriggerStatus = "Filled"
	TriggerCancel    TriggerStatus = "Cancel"
)

type TriggerType string

const (
	TriggerAbove TriggerType = "Above"
	TriggerBelow TriggerType = "Below"
)

// Trigger is a persisted exit intent: sell when price crosses Price in the
// direction of Type.
type Trigger struct {
	ID        int64         `db:"id" json:"id"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	Ticker    string        `db:"ticker" json:"ticker"`
	Status    TriggerStatus `db:"status" json:"status"`
	Type      TriggerType   `db:"type" json:"type"`
	Price     float64       `db:"price" json:"price"`
	PnL       float64       `db:"pnl" json:"pnl"`
	ClosedAt  *time.Time    `db:"closed_at" json:"closed_at,omitempty"`
	OrderID   string        `db:"order_id" json:"order_id,omitempty"`
}

type TradeStatus string

const (
	TradeNew      TradeStatus = "New"
	TradeComplete TradeStatus = "Complete"
)

type Trade struct {
	ID        int64       `db:"id" json:"id"`
	OpenedAt  time.Time   `db:"opened_at" json:"opened_at"`
	Ticker    string      `db:"ticker" json:"ticker"`
	SetupNote string      `db:"setup_note" json:"setup_note"`
	BuyPrice  float64     `db:"buy_price" json:"buy_price"`
	SellPrice float64     `db:"sell_price" json:"sell_price"`
	Units     int64       `db:"units" json:"units"`
	StopLoss  float64     `db:"stop_loss" json:"stop_loss"`
	R1        float64     `db:"r1" json:"r1"`
	R2        float64     `db:"r2" json:"r2"`
	TotalCost float64     `db:"total_cost" json:"total_cost"`
	Status    TradeStatus `db:"status" json:"status"`
	PnL       float64     `db:"pnl" json:"pnl"`
	ClosedAt  *time.Time  `db:"closed_at" json:"closed_at,omitempty"`
}

// PatternScore is one row of a scan snapshot.
type PatternScore struct {
	ID              int64     `db:"id" json:"id"`
	Ticker          string    `db:"ticker" json:"ticker"`
	Company         string    `db:"company" json:"company"`
	BearScore       float64   `db:"bear_score" json:"bear_score"`
	BearSteps       int       `db:"bear_steps" json:"bear_steps"`
	BounceScore     float64   `db:"bounce_score" json:"bounce_score"`
	BounceSteps     int       `db:"bounce_steps" json:"bounce_steps"`
	VolScore        float64   `db:"vol_score" json:"vol_score"`
	PullbackSwallow int       `db:"pullback_swallow" json:"pullback_swallow"`
	OptSize         float64   `db:"opt_size" json:"opt_size"`
	LastOpen        float64   `db:"last_open" json:"last_open"`
	LastHigh        float64   `db:"last_high" json:"last_high"`
	LastLow         float64   `db:"last_low" json:"last_low"`
	LastClose       float64   `db:"last_close" json:"last_close"`
	PrevClose       float64   `db:"prev_close" json:"prev_close"`
	ScannedAt       time.Time `db:"scanned_at" json:"scanned_at"`
}

// Position is a broker-reported holding.
type Position struct {
	Ticker string
	Qty    int64
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderLimit  OrderType = "LMT"
	OrderMarket OrderType = "MKT"
	OrderTrail  OrderType = "TRAIL"
)

type OrderRequest struct {
	Ticker       string
	Side         OrderSide
	Type         OrderType
	Quantity     int64
	LimitPrice   float64
	TrailPercent float64
}

type OrderStatus string

const (
	OrderFilled       OrderStatus = "Filled"
	OrderSubmitted    OrderStatus = "Submitted"
	OrderPreSubmitted OrderStatus = "PreSubmitted"
	OrderCancelled    OrderStatus = "Cancelled"
	OrderUnknown      OrderStatus = "Unknown"
)

// Accepted reports whether the broker took the order.
func (s OrderStatus) Accepted() bool {
	return s == OrderFilled || s == OrderSubmitted || s == OrderPreSubmitted
}

type OrderResult struct {
	OrderID   string
	Status    OrderStatus
	FillPrice float64
	FilledQty int64
}

// TriggerChange is a status transition recorded for one trigger.
type TriggerChange struct {
	ID       int64
	Status   TriggerStatus
	PnL      float64
	OrderID  string
	ClosedAt *time.Time
}

type TradeCompletion struct {
	TradeID   int64
	SellPrice float64
	PnL       float64
	ClosedAt  time.Time
}

// TickerUpdate holds every mutation produced for one ticker in one tick. It is
// committed in a single transaction.
type TickerUpdate struct {
	Ticker   string
	Triggers []TriggerChange
	Trade    *TradeCompletion
}

func (u TickerUpdate) Empty() bool {
	return len(u.Triggers) == 0 && u.Trade == nil
}
