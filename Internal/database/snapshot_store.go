package datafeed

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
)

const insertSnapshotSQL = `
INSERT INTO stocks (
	ticker, company, bear_score, bear_steps, bounce_score, bounce_steps, vol_score,
	pullback_swallow, opt_size, last_open, last_high, last_low, last_close, prev_close, scanned_at
) VALUES (
	:ticker, :company, :bear_score, :bear_steps, :bounce_score, :bounce_steps, :vol_score,
	:pullback_swallow, :opt_size, :last_open, :last_high, :last_low, :last_close, :prev_close, :scanned_at
)`

// ReplaceSnapshots clears the previous scan batch and stores rows in its
// place, atomically.
func (s *Store) ReplaceSnapshots(ctx context.Context, rows []types.PatternScore) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM stocks`); err != nil {
			return fmt.Errorf("clear snapshots: %w", err)
		}
		for _, row := range rows {
			if _, err := tx.NamedExecContext(ctx, insertSnapshotSQL, row); err != nil {
				return fmt.Errorf("insert snapshot for %s: %w", row.Ticker, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("scan snapshot replaced", logger.Int("rows", len(rows)))
	return nil
}

// ListSnapshots returns rows with bear_score >= minBearScore, strongest
// breakdowns first.
func (s *Store) ListSnapshots(ctx context.Context, minBearScore float64) ([]types.PatternScore, error) {
	var out []types.PatternScore
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, ticker, company, bear_score, bear_steps, bounce_score, bounce_steps, vol_score,
			pullback_swallow, opt_size, last_open, last_high, last_low, last_close, prev_close, scanned_at
		FROM stocks
		WHERE bear_score >= $1
		ORDER BY bear_score DESC, ticker ASC`, minBearScore)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return out, nil
}
