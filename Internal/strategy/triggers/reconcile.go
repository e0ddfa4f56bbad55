package triggers

import (
	"sort"
	"time"

	"github.com/fazecat/triggerdesk/Internal/types"
)

// Reconcile settles a Submitted trigger against the broker's current view of
// its order. A filled order closes the trigger; a cancelled or rejected one
// puts it back to Active so the next tick can fire it again. Pending orders
// produce no change.
func Reconcile(t types.Trigger, res types.OrderResult, trade *types.Trade, now time.Time) (types.TriggerChange, bool) {
	if t.Status != types.TriggerSubmitted {
		return types.TriggerChange{}, false
	}

	switch res.Status {
	case types.OrderFilled:
		closed := now
		change := types.TriggerChange{
			ID:       t.ID,
			Status:   types.TriggerFilled,
			OrderID:  t.OrderID,
			ClosedAt: &closed,
			PnL:      t.PnL,
		}
		if trade != nil && res.FillPrice > 0 && res.FilledQty > 0 {
			change.PnL = RealizedPnL(trade.BuyPrice, res.FillPrice, res.FilledQty)
		}
		return change, true
	case types.OrderCancelled:
		return types.TriggerChange{ID: t.ID, Status: types.TriggerActive}, true
	default:
		return types.TriggerChange{}, false
	}
}

// reconcile settles the ticker's submitted triggers before anything fires.
// Cancelled orders return their trigger to the active set. Once nothing is
// pending, a fill that left the position flat or no trigger of its type
// beyond it cascades and completes the trade.
func (s *Session) reconcile(submitted []types.Trigger, orders map[string]types.OrderResult) {
	type fill struct {
		trigger types.Trigger
		price   float64
	}
	var fills []fill

	for _, t := range submitted {
		if t.Ticker != s.ticker || t.Status != types.TriggerSubmitted {
			continue
		}
		res, ok := orders[t.OrderID]
		if !ok {
			s.pending++
			continue
		}
		change, ok := Reconcile(t, res, s.trade, s.now)
		if !ok {
			s.pending++
			continue
		}
		s.update.Triggers = append(s.update.Triggers, change)
		s.reconciled++

		if change.Status == types.TriggerActive {
			revived := t
			revived.Status = types.TriggerActive
			revived.OrderID = ""
			s.active = append(s.active, revived)
			continue
		}
		price := res.FillPrice
		if price <= 0 {
			price = t.Price
		}
		fills = append(fills, fill{trigger: t, price: price})
	}
	sort.SliceStable(s.active, func(i, j int) bool { return s.active[i].Price < s.active[j].Price })

	if s.pending > 0 {
		s.phase = phaseDone
		return
	}
	for _, f := range fills {
		if s.held <= 0 || s.beyond(f.trigger) == 0 {
			s.cascade()
			s.complete(f.price)
			s.phase = phaseDone
			return
		}
	}
}
