package candles

import "github.com/fazecat/triggerdesk/Internal/types"

// IsRed reports a bearish bar. A doji (open == close) is red when its upper
// wick is longer than its lower wick.
func IsRed(b types.Bar) bool {
	if b.Open != b.Close {
		return b.Open > b.Close
	}
	return b.High-b.Close > b.Close-b.Low
}

func IsGreen(b types.Bar) bool { return !IsRed(b) }

// Color is "red" or "green".
func Color(b types.Bar) string {
	if IsRed(b) {
		return "red"
	}
	return "green"
}

// BearContinuationScore counts how many of high, low, open and close did not
// rise from prev to cur.
func BearContinuationScore(prev, cur types.Bar) int {
	score := 0
	if cur.High <= prev.High {
		score++
	}
	if cur.Low <= prev.Low {
		score++
	}
	if cur.Open <= prev.Open {
		score++
	}
	if cur.Close <= prev.Close {
		score++
	}
	return score
}

// BullContinuationScore counts how many of high, low, open and close did not
// fall from prev to cur.
func BullContinuationScore(prev, cur types.Bar) int {
	score := 0
	if cur.High >= prev.High {
		score++
	}
	if cur.Low >= prev.Low {
		score++
	}
	if cur.Open >= prev.Open {
		score++
	}
	if cur.Close >= prev.Close {
		score++
	}
	return score
}

func CleanBear(prev, cur types.Bar) bool { return BearContinuationScore(prev, cur) == 4 }

// LooseBear accepts three of four conditions.
func LooseBear(prev, cur types.Bar) bool { return BearContinuationScore(prev, cur) > 2 }

func CleanBull(prev, cur types.Bar) bool { return BullContinuationScore(prev, cur) == 4 }
