package scanner

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fazecat/triggerdesk/Internal/strategy/candles"
	"github.com/fazecat/triggerdesk/Internal/types"
)

var shortlistHeader = []string{
	"ticker", "company", "bear_score", "bear_steps", "bounce_score", "bounce_steps",
	"vol_score", "pullback_swallow", "opt_size",
	"latest_close", "candle_color", "gap_direction", "gap_size",
}

// ShortlistName is the dated export file name for day.
func ShortlistName(day time.Time) string {
	return fmt.Sprintf("shortlist_%s.csv", day.Format("2006-01-02"))
}

// ExportShortlist writes rows to dir/shortlist_YYYY-MM-DD.csv and returns
// the path.
func ExportShortlist(dir string, rows []types.PatternScore, day time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, ShortlistName(day))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteShortlist(f, rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func WriteShortlist(w io.Writer, rows []types.PatternScore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(shortlistHeader); err != nil {
		return fmt.Errorf("write shortlist header: %w", err)
	}

	for _, r := range rows {
		dir, size := Gap(r)
		last := types.Bar{Open: r.LastOpen, High: r.LastHigh, Low: r.LastLow, Close: r.LastClose}
		record := []string{
			r.Ticker,
			r.Company,
			num(r.BearScore),
			strconv.Itoa(r.BearSteps),
			num(r.BounceScore),
			strconv.Itoa(r.BounceSteps),
			num(r.VolScore),
			strconv.Itoa(r.PullbackSwallow),
			num(r.OptSize),
			num(r.LastClose),
			candles.Color(last),
			dir,
			num(size),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write shortlist row %s: %w", r.Ticker, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Gap compares the latest open with the previous close. size is always
// non-negative. A row without a previous bar has no gap.
func Gap(r types.PatternScore) (direction string, size float64) {
	if r.PrevClose == 0 {
		return "none", 0
	}
	diff := decimal.NewFromFloat(r.LastOpen).Sub(decimal.NewFromFloat(r.PrevClose))
	size, _ = diff.Abs().Round(4).Float64()
	switch diff.Sign() {
	case 1:
		return "up", size
	case -1:
		return "down", size
	default:
		return "none", 0
	}
}

func num(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String()
}
