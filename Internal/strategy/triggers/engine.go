package triggers

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fazecat/triggerdesk/Internal/types"
)

type ActionKind int

const (
	FireAbove ActionKind = iota
	FireBelow
	Liquidate
)

func (k ActionKind) String() string {
	switch k {
	case FireAbove:
		return "above"
	case FireBelow:
		return "below"
	case Liquidate:
		return "liquidate"
	default:
		return "unknown"
	}
}

// Snapshot is everything the engine needs to decide for one held ticker.
type Snapshot struct {
	Ticker string
	Held   int64
	Price  float64
	Active []types.Trigger
	Trade  *types.Trade // open (New) trade for the ticker, nil if none

	// Submitted triggers of the ticker and the broker's latest view of their
	// orders, keyed by order id. A submitted trigger without an entry is
	// still pending.
	Submitted []types.Trigger
	Orders    map[string]types.OrderResult
}

// Action is one order the engine wants placed.
type Action struct {
	Kind    ActionKind
	Ticker  string
	Trigger *types.Trigger // nil for Liquidate
	Divide  int
	Order   types.OrderRequest
}

// Engine decides trigger fires. It does no I/O.
type Engine struct {
	SellOff Window
}

func NewEngine(sellOff Window) *Engine {
	return &Engine{SellOff: sellOff}
}

// Preview runs every snapshot through a session as if each order filled at
// its limit price (market orders at the live price) and returns the actions
// a tick at now would take.
func (e *Engine) Preview(now time.Time, snaps []Snapshot) []Action {
	var actions []Action
	for _, snap := range snaps {
		sess := e.NewSession(now, snap)
		for {
			a, ok := sess.Next()
			if !ok {
				break
			}
			actions = append(actions, a)
			fill := a.Order.LimitPrice
			if fill == 0 {
				fill = snap.Price
			}
			sess.Resolve(a, types.OrderResult{Status: types.OrderFilled, FillPrice: fill, FilledQty: a.Order.Quantity})
		}
	}
	return actions
}

type phase int

const (
	phaseAbove phase = iota
	phaseBelow
	phaseSellOff
	phaseDone
)

// Session walks one ticker through a single tick: the nearest Above target,
// then the nearest Below stop, then the sell-off liquidation. Call Next to get
// the next order, Resolve with the broker outcome, and Update for the
// mutations to commit.
type Session struct {
	now     time.Time
	sellOff Window
	ticker  string
	price   float64
	held    int64
	active  []types.Trigger
	trade   *types.Trade
	phase   phase
	update  types.TickerUpdate

	pending    int
	reconciled int
}

func (e *Engine) NewSession(now time.Time, snap Snapshot) *Session {
	active := make([]types.Trigger, 0, len(snap.Active))
	for _, t := range snap.Active {
		if t.Status == types.TriggerActive && t.Ticker == snap.Ticker {
			active = append(active, t)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Price < active[j].Price })

	s := &Session{
		now:     now,
		sellOff: e.SellOff,
		ticker:  snap.Ticker,
		price:   snap.Price,
		held:    snap.Held,
		active:  active,
		trade:   snap.Trade,
		update:  types.TickerUpdate{Ticker: snap.Ticker},
	}
	s.reconcile(snap.Submitted, snap.Orders)
	if s.held <= 0 || s.price <= 0 {
		s.phase = phaseDone
	}
	return s
}

// Next returns the next action for this tick, or false once the ticker is
// finished.
func (s *Session) Next() (Action, bool) {
	for s.phase != phaseDone {
		if s.held <= 0 {
			s.phase = phaseDone
			break
		}

		switch s.phase {
		case phaseAbove:
			s.phase = phaseBelow
			if t, ok := s.nearest(types.TriggerAbove); ok && s.price > t.Price {
				return s.fire(FireAbove, t, types.OrderLimit, t.Price), true
			}
		case phaseBelow:
			s.phase = phaseSellOff
			if t, ok := s.nearest(types.TriggerBelow); ok && s.price < t.Price {
				return s.fire(FireBelow, t, types.OrderMarket, 0), true
			}
		case phaseSellOff:
			s.phase = phaseDone
			if s.trade != nil && s.sellOff.Contains(s.now) {
				return Action{
					Kind:   Liquidate,
					Ticker: s.ticker,
					Divide: 1,
					Order: types.OrderRequest{
						Ticker:   s.ticker,
						Side:     types.SideSell,
						Type:     types.OrderMarket,
						Quantity: s.held,
					},
				}, true
			}
		}
	}
	return Action{}, false
}

// nearest is the lowest Active Above or the highest Active Below.
func (s *Session) nearest(typ types.TriggerType) (types.Trigger, bool) {
	if typ == types.TriggerAbove {
		for _, t := range s.active {
			if t.Type == typ {
				return t, true
			}
		}
		return types.Trigger{}, false
	}
	for i := len(s.active) - 1; i >= 0; i-- {
		if s.active[i].Type == typ {
			return s.active[i], true
		}
	}
	return types.Trigger{}, false
}

func (s *Session) fire(kind ActionKind, t types.Trigger, orderType types.OrderType, limit float64) Action {
	divide := s.divide(t)
	qty := s.held / int64(divide)
	if qty < 1 {
		qty = 1
	}
	fired := t
	return Action{
		Kind:    kind,
		Ticker:  s.ticker,
		Trigger: &fired,
		Divide:  divide,
		Order: types.OrderRequest{
			Ticker:     s.ticker,
			Side:       types.SideSell,
			Type:       orderType,
			Quantity:   qty,
			LimitPrice: limit,
		},
	}
}

// divide counts Active triggers of the fired type at or beyond the fired
// price, the fired trigger included.
func (s *Session) divide(fired types.Trigger) int {
	if n := s.beyond(fired); n > 1 {
		return n
	}
	return 1
}

// beyond counts Active triggers of t's type at or beyond t's price.
func (s *Session) beyond(t types.Trigger) int {
	n := 0
	for _, a := range s.active {
		if a.Type != t.Type {
			continue
		}
		if (t.Type == types.TriggerAbove && a.Price >= t.Price) ||
			(t.Type == types.TriggerBelow && a.Price <= t.Price) {
			n++
		}
	}
	return n
}

// Resolve applies the broker outcome of a. It returns false when the order was
// not accepted; nothing is mutated and the session ends for this tick.
//
// A trigger order that is only Submitted ends the session too. If it was the
// last exit, the cascade and trade completion wait until a later tick sees
// the order filled.
func (s *Session) Resolve(a Action, res types.OrderResult) bool {
	if !res.Status.Accepted() {
		s.phase = phaseDone
		return false
	}

	sell := res.FillPrice
	if sell <= 0 {
		sell = a.Order.LimitPrice
	}
	if sell <= 0 {
		sell = s.price
	}
	qty := a.Order.Quantity
	if res.FilledQty > 0 {
		qty = res.FilledQty
	}

	if a.Trigger != nil {
		change := types.TriggerChange{
			ID:      a.Trigger.ID,
			Status:  types.TriggerSubmitted,
			OrderID: res.OrderID,
		}
		if res.Status == types.OrderFilled {
			change.Status = types.TriggerFilled
			change.ClosedAt = s.closedAt()
		}
		if s.trade != nil {
			change.PnL = RealizedPnL(s.trade.BuyPrice, sell, qty)
		}
		s.update.Triggers = append(s.update.Triggers, change)
		s.remove(a.Trigger.ID)
	}
	s.held -= a.Order.Quantity

	if a.Kind != Liquidate && res.Status != types.OrderFilled {
		s.phase = phaseDone
		return true
	}
	if a.Kind == Liquidate || a.Divide == 1 || s.held <= 0 {
		s.cascade()
		s.complete(sell)
		s.phase = phaseDone
	}
	return true
}

// Pending is the number of submitted trigger orders the broker has not
// settled yet. No new order is fired for a ticker while it is non-zero.
func (s *Session) Pending() int {
	return s.pending
}

// Reconciled is the number of submitted triggers settled by this session.
func (s *Session) Reconciled() int {
	return s.reconciled
}

// Update is the set of mutations produced so far.
func (s *Session) Update() types.TickerUpdate {
	return s.update
}

func (s *Session) remove(id int64) {
	for i, t := range s.active {
		if t.ID == id {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}

func (s *Session) cascade() {
	for _, t := range s.active {
		s.update.Triggers = append(s.update.Triggers, types.TriggerChange{
			ID:       t.ID,
			Status:   types.TriggerCancel,
			ClosedAt: s.closedAt(),
		})
	}
	s.active = nil
}

func (s *Session) complete(sell float64) {
	if s.trade == nil {
		return
	}
	s.update.Trade = &types.TradeCompletion{
		TradeID:   s.trade.ID,
		SellPrice: sell,
		PnL:       RealizedPnL(s.trade.BuyPrice, sell, s.trade.Units),
		ClosedAt:  s.now,
	}
	s.trade = nil
}

func (s *Session) closedAt() *time.Time {
	t := s.now
	return &t
}

// RealizedPnL is buy*units - sell*units, so a profitable exit is negative.
func RealizedPnL(buy, sell float64, units int64) float64 {
	u := decimal.NewFromInt(units)
	pnl := decimal.NewFromFloat(buy).Mul(u).Sub(decimal.NewFromFloat(sell).Mul(u))
	f, _ := pnl.Round(4).Float64()
	return f
}
