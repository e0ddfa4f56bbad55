package datafeed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
)

var (
	ErrNoOpenTrade       = errors.New("no open trade for ticker")
	ErrTradeNotOpen      = errors.New("trade is not open")
	ErrTriggerNotUpdated = errors.New("trigger not found")
)

const triggerColumns = `id, created_at, ticker, status, type, price, pnl, closed_at, order_id`

const tradeColumns = `id, opened_at, ticker, setup_note, buy_price, sell_price, units, stop_loss,
	r1, r2, total_cost, status, pnl, closed_at`

// ActiveTriggers returns the ticker's Active triggers ordered by price.
func (s *Store) ActiveTriggers(ctx context.Context, ticker string) ([]types.Trigger, error) {
	return s.ListTriggers(ctx, ticker, types.TriggerActive)
}

// SubmittedTriggers returns every trigger waiting on a broker order.
func (s *Store) SubmittedTriggers(ctx context.Context) ([]types.Trigger, error) {
	return s.ListTriggers(ctx, "", types.TriggerSubmitted)
}

// ListTriggers filters by ticker and status when they are non-empty.
func (s *Store) ListTriggers(ctx context.Context, ticker string, status types.TriggerStatus) ([]types.Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM trigger WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if ticker != "" {
		query += fmt.Sprintf(" AND ticker = $%d", argIndex)
		args = append(args, strings.ToUpper(ticker))
		argIndex++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
	}
	query += " ORDER BY ticker, price ASC, id ASC"

	var out []types.Trigger
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	return out, nil
}

// OpenTrade returns the newest New trade for ticker or ErrNoOpenTrade.
func (s *Store) OpenTrade(ctx context.Context, ticker string) (*types.Trade, error) {
	var t types.Trade
	err := s.db.GetContext(ctx, &t,
		`SELECT `+tradeColumns+` FROM trades WHERE ticker = $1 AND status = $2 ORDER BY opened_at DESC, id DESC LIMIT 1`,
		strings.ToUpper(ticker), types.TradeNew)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoOpenTrade
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open trade for %s: %w", ticker, err)
	}
	return &t, nil
}

func (s *Store) ListTrades(ctx context.Context, status types.TradeStatus) ([]types.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY opened_at DESC, id DESC`

	var out []types.Trade
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return out, nil
}

// CreateTradeWithTriggers inserts the trade and its triggers in one
// transaction, filling in ids and timestamps.
func (s *Store) CreateTradeWithTriggers(ctx context.Context, trade *types.Trade, trigs []types.Trigger) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		trade.Ticker = strings.ToUpper(trade.Ticker)
		if trade.Status == "" {
			trade.Status = types.TradeNew
		}
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO trades (ticker, setup_note, buy_price, units, stop_loss, r1, r2, total_cost, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, opened_at`,
			trade.Ticker, trade.SetupNote, trade.BuyPrice, trade.Units, trade.StopLoss,
			trade.R1, trade.R2, trade.TotalCost, trade.Status,
		).Scan(&trade.ID, &trade.OpenedAt)
		if err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}

		for i := range trigs {
			t := &trigs[i]
			t.Ticker = trade.Ticker
			if t.Status == "" {
				t.Status = types.TriggerActive
			}
			err := tx.QueryRowxContext(ctx,
				`INSERT INTO trigger (ticker, status, type, price) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
				t.Ticker, t.Status, t.Type, t.Price,
			).Scan(&t.ID, &t.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert %s trigger at %.2f: %w", t.Type, t.Price, err)
			}
		}
		return nil
	})
}

// ApplyTickerUpdate commits every mutation of one ticker-tick together.
func (s *Store) ApplyTickerUpdate(ctx context.Context, u types.TickerUpdate) error {
	if u.Empty() {
		return nil
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range u.Triggers {
			res, err := tx.ExecContext(ctx,
				`UPDATE trigger SET status = $1, pnl = $2, order_id = $3, closed_at = $4 WHERE id = $5`,
				c.Status, c.PnL, c.OrderID, c.ClosedAt, c.ID)
			if err != nil {
				return fmt.Errorf("update trigger %d: %w", c.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("trigger %d: %w", c.ID, ErrTriggerNotUpdated)
			}
		}

		if c := u.Trade; c != nil {
			res, err := tx.ExecContext(ctx,
				`UPDATE trades SET status = $1, sell_price = $2, pnl = $3, closed_at = $4 WHERE id = $5 AND status = $6`,
				types.TradeComplete, c.SellPrice, c.PnL, c.ClosedAt, c.TradeID, types.TradeNew)
			if err != nil {
				return fmt.Errorf("complete trade %d: %w", c.TradeID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("trade %d: %w", c.TradeID, ErrTradeNotOpen)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug("ticker update committed",
		logger.String("ticker", u.Ticker),
		logger.Int("trigger_changes", len(u.Triggers)),
		logger.Bool("trade_completed", u.Trade != nil))
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("rollback failed", logger.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TradesSince is used by the stats view.
func (s *Store) TradesSince(ctx context.Context, since time.Time) ([]types.Trade, error) {
	var out []types.Trade
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+tradeColumns+` FROM trades WHERE opened_at >= $1 ORDER BY opened_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trade history: %w", err)
	}
	return out, nil
}
