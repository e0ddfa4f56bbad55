package detection

import (
	"math"
	"testing"

	"github.com/fazecat/triggerdesk/Internal/strategy/candles"
	"github.com/fazecat/triggerdesk/Internal/types"
)

// threeLegSeries is three rising green bars, three falling red bars and three
// rising green bars, oldest first.
func threeLegSeries() candles.Series {
	return candles.Series{
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

func TestPatternScorer_ThreeLegScenario(t *testing.T) {
	scorer := NewPatternScorer()
	score, ok := scorer.Score(threeLegSeries())

	if !ok {
		t.Fatalf("series with a bear leg should be retained")
	}
	if score.BounceSteps != 3 {
		t.Errorf("BounceSteps = %d, want 3", score.BounceSteps)
	}
	if score.BearSteps != 3 {
		t.Errorf("BearSteps = %d, want 3", score.BearSteps)
	}
	wantBear := (12 - 9.2) / 3
	if math.Abs(score.BearScore-wantBear) > 1e-9 {
		t.Errorf("BearScore = %v, want %v", score.BearScore, wantBear)
	}
	if score.BounceScore != 0 {
		t.Errorf("forced transition leaves no pullback low, BounceScore = %v", score.BounceScore)
	}
	if score.PullbackSwallow != 5 {
		t.Errorf("PullbackSwallow = %d, want 5", score.PullbackSwallow)
	}
	if score.VolScore != 1 {
		t.Errorf("VolScore = %v, want 1 for flat volume", score.VolScore)
	}
	if score.LastClose != 12.5 || score.PrevClose != 11.9 {
		t.Errorf("last bars not captured: %+v", score)
	}
}

func TestPatternScorer_BounceEndsOnRedBar(t *testing.T) {
	s := candles.Series{
		{Open: 20, High: 21, Low: 19, Close: 20.5, Volume: 100},
		{Open: 20.5, High: 21, Low: 19, Close: 20, Volume: 100},
		{Open: 19.5, High: 20, Low: 18, Close: 18.5, Volume: 100},
		{Open: 18.5, High: 19.5, Low: 18.2, Close: 19.4, Volume: 100},  // green, ends the bear stage
		{Open: 19.3, High: 19.6, Low: 18.9, Close: 19.0, Volume: 100},  // red, breaks the bounce
		{Open: 19.3, High: 19.8, Low: 18.95, Close: 19.7, Volume: 100}, // green, clean bull
	}

	score, ok := NewPatternScorer().Score(s)
	if score.BounceSteps != 1 {
		t.Errorf("BounceSteps = %d, want 1", score.BounceSteps)
	}
	want := 19.7 - 19.3
	if math.Abs(score.BounceScore-want) > 1e-9 {
		t.Errorf("BounceScore = %v, want %v", score.BounceScore, want)
	}
	if score.PullbackSwallow != 2 {
		t.Errorf("PullbackSwallow = %d, want 2", score.PullbackSwallow)
	}
	if ok || score.BearSteps != 0 {
		t.Errorf("no bear leg follows the bounce, got retained=%v steps=%d", ok, score.BearSteps)
	}
}

func TestPatternScorer_PullbackBounds(t *testing.T) {
	// newest bar green + clean bull, older one green but not clean: bounce of
	// one step closed by a green breaking bar.
	s := candles.Series{
		{Open: 30, High: 31, Low: 29, Close: 30.5, Volume: 10},
		{Open: 30.5, High: 30.8, Low: 28, Close: 28.5, Volume: 10},
		{Open: 28.4, High: 28.6, Low: 27, Close: 27.2, Volume: 10},
		{Open: 26.0, High: 29.0, Low: 25.0, Close: 26.5, Volume: 10},
		{Open: 26.6, High: 29.5, Low: 25.5, Close: 28.0, Volume: 10},
	}

	score, _ := NewPatternScorer().Score(s)
	if score.BounceSteps != 1 {
		t.Fatalf("BounceSteps = %d, want 1", score.BounceSteps)
	}
	// pullback high is the newest close, pullback low the breaking bar's open.
	want := 28.0 - 26.0
	if math.Abs(score.BounceScore-want) > 1e-9 {
		t.Errorf("BounceScore = %v, want %v", score.BounceScore, want)
	}
}

func TestPatternScorer_DropsSeriesWithoutBearLeg(t *testing.T) {
	s := make(candles.Series, 10)
	for i := range s {
		base := 10 + float64(i)
		s[i] = types.Bar{Open: base, High: base + 1.5, Low: base - 0.5, Close: base + 1, Volume: 500}
	}

	score, ok := NewPatternScorer().Score(s)
	if ok {
		t.Errorf("rising series should not be retained")
	}
	if score.BearSteps != 0 || score.BearScore != 0 {
		t.Errorf("no bear leg expected, got %+v", score)
	}
	if score.VolScore != 0 {
		t.Errorf("VolScore must stay 0 without a bear leg, got %v", score.VolScore)
	}
}

func TestPatternScorer_VolumeRatio(t *testing.T) {
	s := threeLegSeries()
	for i := len(s) - 4; i < len(s); i++ {
		s[i].Volume = 2000
	}

	score, ok := NewPatternScorer().Score(s)
	if !ok {
		t.Fatalf("expected retained series")
	}
	mean := (5*1000.0 + 4*2000.0) / 9
	want := 2000 / mean
	if math.Abs(score.VolScore-want) > 1e-9 {
		t.Errorf("VolScore = %v, want %v", score.VolScore, want)
	}
}

func TestPatternScorer_ShortSeries(t *testing.T) {
	tests := []struct {
		name   string
		series candles.Series
	}{
		{name: "empty", series: nil},
		{name: "single bar", series: candles.Series{{Open: 1, High: 2, Low: 0.5, Close: 1.5}}},
		{name: "head only", series: candles.Series{{Open: 1, Close: 2}, {Open: 2, Close: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := NewPatternScorer().Score(tt.series)
			if ok {
				t.Errorf("short series should never be retained")
			}
			if score.BearScore != 0 || score.BounceScore != 0 || score.VolScore != 0 {
				t.Errorf("scores should be zero, got %+v", score)
			}
		})
	}
}
