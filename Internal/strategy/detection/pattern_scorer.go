package detection

import (
	"github.com/fazecat/triggerdesk/Internal/strategy/candles"
	"github.com/fazecat/triggerdesk/Internal/types"
)

type stage int

const (
	stageBounce stage = iota
	stageBear
	stageDone
)

// PatternScorer classifies the newest bars of a series into a pullback
// (bounce) leg followed, further back in time, by a breakdown (bear) leg.
type PatternScorer struct {
	MaxBounceSteps int // bounce run length after which the bear stage is forced
	HeadReserve    int // oldest bars never consumed by the walk
	VolumeWindow   int // newest bars averaged for vol_score
}

// creates a new pattern scorer with default settings
func NewPatternScorer() *PatternScorer {
	return &PatternScorer{
		MaxBounceSteps: 2,
		HeadReserve:    2,
		VolumeWindow:   4,
	}
}

type walkState struct {
	stage           stage
	bounceSteps     int
	bearSteps       int
	pullbackHigh    *float64
	pullbackLow     *float64
	bearLow         *float64
	bearHigh        *float64
	pullbackSwallow int
}

// Score walks s backwards from the newest bar. ok is false when no bear leg
// was found; such symbols are dropped from a scan.
func (ps *PatternScorer) Score(s candles.Series) (score types.PatternScore, ok bool) {
	st := walkState{stage: stageBounce}

	it := s.Reverse(ps.HeadReserve)
	for st.stage != stageDone && it.Next() {
		prev, cur := it.Previous(), it.Current()

		switch st.stage {
		case stageBounce:
			ps.bounceStep(&st, prev, cur)
		case stageBear:
			bearStep(&st, prev, cur)
		}

		if st.pullbackHigh != nil && *st.pullbackHigh > cur.Close {
			st.pullbackSwallow++
		}
	}

	score = types.PatternScore{
		BearSteps:       st.bearSteps,
		BounceSteps:     st.bounceSteps,
		PullbackSwallow: st.pullbackSwallow,
		BearScore:       legScore(st.bearHigh, st.bearLow, st.bearSteps),
		BounceScore:     legScore(st.pullbackHigh, st.pullbackLow, st.bounceSteps),
	}
	if st.bearSteps > 0 {
		score.VolScore = ps.volumeRatio(s)
	}
	fillLastBars(&score, s)

	return score, st.bearSteps > 0
}

func (ps *PatternScorer) bounceStep(st *walkState, prev, cur types.Bar) {
	if candles.IsGreen(cur) && candles.CleanBull(prev, cur) {
		st.bounceSteps++
		if st.pullbackHigh == nil {
			st.pullbackHigh = ptr(cur.Close)
		}
	} else {
		if st.bounceSteps == 0 && candles.IsGreen(cur) {
			st.bounceSteps++
			st.pullbackHigh = ptr(cur.Close)
		}
		st.stage = stageBear
		if st.pullbackHigh != nil && st.pullbackLow == nil {
			st.pullbackLow = ptr(cur.Open)
		}
	}

	if st.stage == stageBounce && st.bounceSteps > ps.MaxBounceSteps {
		st.stage = stageBear
	}
}

func bearStep(st *walkState, prev, cur types.Bar) {
	if candles.IsRed(cur) && candles.CleanBear(prev, cur) {
		st.bearSteps++
		if st.bearLow == nil {
			st.bearLow = ptr(cur.Close)
		}
		return
	}

	st.stage = stageDone
	if st.bearLow != nil && st.bearHigh == nil {
		st.bearHigh = ptr(cur.Open)
	}
}

func legScore(high, low *float64, steps int) float64 {
	if steps == 0 || high == nil || low == nil {
		return 0
	}
	return (*high - *low) / float64(steps)
}

func (ps *PatternScorer) volumeRatio(s candles.Series) float64 {
	all := s.MeanVolume()
	if all == 0 {
		return 0
	}
	return s.Tail(ps.VolumeWindow).MeanVolume() / all
}

func fillLastBars(score *types.PatternScore, s candles.Series) {
	if last, ok := s.FromEnd(1); ok {
		score.LastOpen = last.Open
		score.LastHigh = last.High
		score.LastLow = last.Low
		score.LastClose = last.Close
	}
	if prev, ok := s.FromEnd(2); ok {
		score.PrevClose = prev.Close
	}
}

func ptr(v float64) *float64 { return &v }
