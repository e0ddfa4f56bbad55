package detection

import (
	"math"
	"sort"

	"github.com/fazecat/triggerdesk/Internal/strategy/candles"
)

// pivotReach is how many bars on each side a pivot needs.
const pivotReach = 2

// DetectLevels finds support/resistance pivots and keeps each pivot price
// only when it is farther than the mean bar range from every level already
// kept. Levels come back in scan order.
//
// sizeMean is NaN for an empty series.
func DetectLevels(s candles.Series) (sizeMean float64, levels []float64) {
	n := s.Len()
	if n == 0 {
		return math.NaN(), []float64{}
	}

	total := 0.0
	for _, b := range s {
		total += b.High - b.Low
	}
	sizeMean = total / float64(n)

	levels = []float64{}
	for i := pivotReach; i < n-pivotReach; i++ {
		var price float64
		switch {
		case isSupport(s, i):
			price = s[i].Low
		case isResistance(s, i):
			price = s[i].High
		default:
			continue
		}
		if farFromAll(price, levels, sizeMean) {
			levels = append(levels, price)
		}
	}
	return sizeMean, levels
}

// SortedLevels is DetectLevels with the levels sorted ascending.
func SortedLevels(s candles.Series) (float64, []float64) {
	sizeMean, levels := DetectLevels(s)
	sort.Float64s(levels)
	return sizeMean, levels
}

func isSupport(s candles.Series, i int) bool {
	return s[i].Low <= s[i-1].Low &&
		s[i].Low <= s[i+1].Low &&
		s[i+2].Low > s[i+1].Low &&
		s[i-2].Low < s[i-1].Low
}

func isResistance(s candles.Series, i int) bool {
	return s[i].High >= s[i-1].High &&
		s[i].High >= s[i+1].High &&
		s[i+2].High < s[i+1].High &&
		s[i-2].High > s[i-1].High
}

func farFromAll(price float64, levels []float64, tolerance float64) bool {
	for _, l := range levels {
		if math.Abs(price-l) <= tolerance {
			return false
		}
	}
	return true
}

// NearestLevelAbove returns the smallest level strictly above price.
// levels must be sorted ascending.
func NearestLevelAbove(price float64, levels []float64) (float64, bool) {
	i := sort.Search(len(levels), func(i int) bool { return levels[i] > price })
	if i == len(levels) {
		return 0, false
	}
	return levels[i], true
}

// NearestLevelBelow returns the largest level strictly below price.
// levels must be sorted ascending.
func NearestLevelBelow(price float64, levels []float64) (float64, bool) {
	i := sort.Search(len(levels), func(i int) bool { return levels[i] >= price })
	if i == 0 {
		return 0, false
	}
	return levels[i-1], true
}

// OptSize is the distance from price up to the next level, 0 when price is at
// or above the top level or there are no levels.
func OptSize(price float64, levels []float64) float64 {
	level, ok := NearestLevelAbove(price, levels)
	if !ok {
		return 0
	}
	return level - price
}
