package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fazecat/triggerdesk/Internal/strategy/candles"
	"github.com/fazecat/triggerdesk/Internal/strategy/detection"
	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
	"github.com/fazecat/triggerdesk/Internal/utils/metrics"
)

type HistorySource interface {
	History(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error)
}

type SnapshotStore interface {
	ReplaceSnapshots(ctx context.Context, rows []types.PatternScore) error
	ListSnapshots(ctx context.Context, minBearScore float64) ([]types.PatternScore, error)
}

type ScanResult struct {
	Scanned  int                  `json:"scanned"`
	Retained int                  `json:"retained"`
	Dropped  int                  `json:"dropped"`
	Failed   []string             `json:"failed"`
	Rows     []types.PatternScore `json:"rows"`
	Duration time.Duration        `json:"duration"`
}

// Scanner scores a symbol universe and replaces the stored snapshot with the
// symbols that show a breakdown leg.
type Scanner struct {
	history     HistorySource
	store       SnapshotStore
	scorer      *detection.PatternScorer
	metrics     *metrics.Recorder
	log         *logger.Logger
	historyDays int
	now         func() time.Time
}

func New(history HistorySource, store SnapshotStore, rec *metrics.Recorder, historyDays int, log *logger.Logger) *Scanner {
	return &Scanner{
		history:     history,
		store:       store,
		scorer:      detection.NewPatternScorer(),
		metrics:     rec,
		log:         log.With(logger.String("component", "scanner")),
		historyDays: historyDays,
		now:         time.Now,
	}
}

// Run scans symbols one by one. A symbol that fails to load is logged and
// skipped; only the final snapshot write can fail the run.
func (s *Scanner) Run(ctx context.Context, symbols []types.Symbol) (*ScanResult, error) {
	start := time.Now()
	res := &ScanResult{Rows: []types.PatternScore{}}
	scannedAt := s.now().UTC()

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Scanned++

		row, ok, err := s.scoreSymbol(ctx, sym, scannedAt)
		switch {
		case err != nil:
			res.Failed = append(res.Failed, sym.Ticker)
			s.metrics.RecordScanSymbol("failed")
			s.log.Warn("skipping symbol", logger.String("ticker", sym.Ticker), logger.Error(err))
		case !ok:
			res.Dropped++
			s.metrics.RecordScanSymbol("dropped")
		default:
			res.Retained++
			res.Rows = append(res.Rows, row)
			s.metrics.RecordScanSymbol("retained")
		}
	}

	if err := s.store.ReplaceSnapshots(ctx, res.Rows); err != nil {
		return nil, fmt.Errorf("store scan snapshot: %w", err)
	}

	res.Duration = time.Since(start)
	s.metrics.RecordLatency("scan", res.Duration.Seconds())
	s.log.Info("scan finished",
		logger.Int("scanned", res.Scanned),
		logger.Int("retained", res.Retained),
		logger.Int("dropped", res.Dropped),
		logger.Int("failed", len(res.Failed)),
		logger.Duration("took", res.Duration))
	return res, nil
}

func (s *Scanner) scoreSymbol(ctx context.Context, sym types.Symbol, scannedAt time.Time) (types.PatternScore, bool, error) {
	series, err := s.series(ctx, sym.Ticker)
	if err != nil {
		return types.PatternScore{}, false, err
	}
	if series.Len() == 0 {
		return types.PatternScore{}, false, fmt.Errorf("no bars for %s", sym.Ticker)
	}

	row, ok := s.scorer.Score(series)
	if !ok {
		return row, false, nil
	}

	_, levels := detection.SortedLevels(series)
	row.OptSize = detection.OptSize(row.LastClose, levels)
	row.Ticker = strings.ToUpper(sym.Ticker)
	row.Company = sym.Company
	row.ScannedAt = scannedAt
	return row, true, nil
}

func (s *Scanner) series(ctx context.Context, ticker string) (candles.Series, error) {
	end := s.now()
	bars, err := s.history.History(ctx, ticker, end.AddDate(0, 0, -s.historyDays), end)
	if err != nil {
		return nil, err
	}
	return candles.Series(bars), nil
}

// Snapshots returns the stored scan rows at or above minBearScore.
func (s *Scanner) Snapshots(ctx context.Context, minBearScore float64) ([]types.PatternScore, error) {
	return s.store.ListSnapshots(ctx, minBearScore)
}

// LevelReport describes the support/resistance picture for one symbol.
type LevelReport struct {
	Ticker      string    `json:"ticker"`
	LastClose   float64   `json:"last_close"`
	SizeMean    float64   `json:"size_mean"`
	Levels      []float64 `json:"levels"`
	NearestUp   float64   `json:"nearest_up,omitempty"`
	NearestDown float64   `json:"nearest_down,omitempty"`
	OptSize     float64   `json:"opt_size"`
}

func (s *Scanner) Levels(ctx context.Context, ticker string) (*LevelReport, error) {
	series, err := s.series(ctx, ticker)
	if err != nil {
		return nil, err
	}
	last, ok := series.FromEnd(1)
	if !ok {
		return nil, fmt.Errorf("no bars for %s", ticker)
	}

	sizeMean, levels := detection.SortedLevels(series)
	rep := &LevelReport{
		Ticker:    strings.ToUpper(ticker),
		LastClose: last.Close,
		SizeMean:  sizeMean,
		Levels:    levels,
		OptSize:   detection.OptSize(last.Close, levels),
	}
	if up, ok := detection.NearestLevelAbove(last.Close, levels); ok {
		rep.NearestUp = up
	}
	if down, ok := detection.NearestLevelBelow(last.Close, levels); ok {
		rep.NearestDown = down
	}
	return rep, nil
}
