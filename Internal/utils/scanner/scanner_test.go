package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fazecat/triggerdesk/Internal/types"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
	"github.com/fazecat/triggerdesk/Internal/utils/metrics"
)

type mapHistory map[string][]types.Bar

func (m mapHistory) History(_ context.Context, ticker string, _, _ time.Time) ([]types.Bar, error) {
	bars, ok := m[ticker]
	if !ok {
		return nil, errors.New("symbol not found")
	}
	return bars, nil
}

type recordingStore struct {
	replaced [][]types.PatternScore
	err      error
}

func (s *recordingStore) ReplaceSnapshots(_ context.Context, rows []types.PatternScore) error {
	if s.err != nil {
		return s.err
	}
	s.replaced = append(s.replaced, rows)
	return nil
}

func (s *recordingStore) ListSnapshots(_ context.Context, min float64) ([]types.PatternScore, error) {
	if len(s.replaced) == 0 {
		return nil, nil
	}
	var out []types.PatternScore
	for _, r := range s.replaced[len(s.replaced)-1] {
		if r.BearScore >= min {
			out = append(out, r)
		}
	}
	return out, nil
}

// breakdownBars rises for three bars, falls for three and bounces for three.
func breakdownBars() []types.Bar {
	return []types.Bar{
		{Open: 10, High: 11.5, Low: 9.5, Close: 11, Volume: 1000},
		{Open: 11, High: 12.5, Low: 10.5, Close: 12, Volume: 1000},
		{Open: 12, High: 13.5, Low: 11.5, Close: 13, Volume: 1000},
		{Open: 11.9, High: 12.2, Low: 10.5, Close: 10.8, Volume: 1000},
		{Open: 11.5, High: 11.8, Low: 9.8, Close: 10.0, Volume: 1000},
		{Open: 10.8, High: 11.0, Low: 9.0, Close: 9.2, Volume: 1000},
		{Open: 10.9, High: 11.5, Low: 10.5, Close: 11.4, Volume: 1000},
		{Open: 11.4, High: 12.0, Low: 11.0, Close: 11.9, Volume: 1000},
		{Open: 11.9, High: 12.6, Low: 11.5, Close: 12.5, Volume: 1000},
	}
}

// flatBars never has two clean red bars in a row.
func flatBars() []types.Bar {
	return []types.Bar{
		{Open: 20, High: 21, Low: 19, Close: 20.5, Volume: 100},
		{Open: 20.5, High: 21, Low: 19, Close: 20.6, Volume: 100},
		{Open: 20.6, High: 21, Low: 19, Close: 20.7, Volume: 100},
		{Open: 20.7, High: 21, Low: 19, Close: 20.8, Volume: 100},
	}
}

func newTestScanner(history mapHistory, store *recordingStore) *Scanner {
	s := New(history, store, metrics.New(), 120, logger.Nop())
	s.now = func() time.Time { return time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC) }
	return s
}

func TestScannerRun(t *testing.T) {
	store := &recordingStore{}
	s := newTestScanner(mapHistory{"ABC": breakdownBars(), "FLAT": flatBars(), "EMPTY": nil}, store)

	res, err := s.Run(context.Background(), []types.Symbol{
		{Ticker: "abc", Company: "Abc Corp"},
		{Ticker: "FLAT", Company: "Flat Inc"},
		{Ticker: "GONE", Company: "Delisted"},
		{Ticker: "EMPTY", Company: "No Bars"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Scanned != 4 || res.Retained != 1 || res.Dropped != 1 || len(res.Failed) != 2 {
		t.Errorf("unexpected counts %+v", res)
	}
	if len(store.replaced) != 1 || len(store.replaced[0]) != 1 {
		t.Fatalf("snapshot not replaced with retained rows: %+v", store.replaced)
	}

	row := store.replaced[0][0]
	if row.Ticker != "ABC" || row.Company != "Abc Corp" || row.BearSteps != 3 {
		t.Errorf("unexpected row %+v", row)
	}
	if row.ScannedAt.IsZero() || row.LastClose != 12.5 {
		t.Errorf("snapshot fields missing: %+v", row)
	}
}

func TestScannerRunFailsOnStoreError(t *testing.T) {
	store := &recordingStore{err: errors.New("db down")}
	s := newTestScanner(mapHistory{"ABC": breakdownBars()}, store)

	if _, err := s.Run(context.Background(), []types.Symbol{{Ticker: "ABC"}}); err == nil {
		t.Error("Run() should fail when the snapshot cannot be stored")
	}
}

func TestScannerLevels(t *testing.T) {
	lows := []float64{10, 8, 9, 7, 7.5, 8, 8}
	bars := make([]types.Bar, len(lows))
	for i, l := range lows {
		bars[i] = types.Bar{Open: l + 0.25, High: l + 1, Low: l, Close: l + 0.5}
	}
	s := newTestScanner(mapHistory{"LVL": bars}, &recordingStore{})

	rep, err := s.Levels(context.Background(), "lvl")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Ticker != "LVL" || rep.SizeMean != 1 || rep.LastClose != 8.5 {
		t.Errorf("unexpected report %+v", rep)
	}
	if len(rep.Levels) != 1 || rep.Levels[0] != 7 {
		t.Fatalf("Levels = %v, want [7]", rep.Levels)
	}
	if rep.NearestDown != 7 || rep.NearestUp != 0 || rep.OptSize != 0 {
		t.Errorf("nearest levels wrong: %+v", rep)
	}

	if _, err := s.Levels(context.Background(), "NOPE"); err == nil {
		t.Error("unknown symbol should fail")
	}
}
