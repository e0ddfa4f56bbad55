package candles

import "github.com/fazecat/triggerdesk/Internal/types"

// Series is an ordered oldest-to-newest run of bars.
type Series []types.Bar

func (s Series) Len() int { return len(s) }

func (s Series) At(i int) types.Bar { return s[i] }

// FromEnd returns the k-th bar counting back from the newest (k=1 is the
// latest bar). ok is false when k is out of range.
func (s Series) FromEnd(k int) (types.Bar, bool) {
	if k < 1 || k > len(s) {
		return types.Bar{}, false
	}
	return s[len(s)-k], true
}

// Tail returns the newest n bars, or the whole series when it is shorter.
func (s Series) Tail(n int) Series {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// MeanVolume is 0 for an empty series.
func (s Series) MeanVolume() float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range s {
		sum += b.Volume
	}
	return sum / float64(len(s))
}

// ReverseIter walks a series from the newest bar backwards, pairing each bar
// with its older neighbour. It is exhausted once the next bar would fall
// inside the reserved head of the series.
type ReverseIter struct {
	s    Series
	keep int
	pos  int
}

// Reverse returns an iterator that never yields bars at index < keep.
// keep is clamped to at least 1 so Previous is always defined.
func (s Series) Reverse(keep int) *ReverseIter {
	if keep < 1 {
		keep = 1
	}
	return &ReverseIter{s: s, keep: keep, pos: len(s)}
}

func (it *ReverseIter) Next() bool {
	if it.pos-1 < it.keep {
		it.pos = it.keep - 1
		return false
	}
	it.pos--
	return true
}

// Current is the bar under the cursor.
func (it *ReverseIter) Current() types.Bar { return it.s[it.pos] }

// Previous is the bar one step older than Current.
func (it *ReverseIter) Previous() types.Bar { return it.s[it.pos-1] }

// Offset is the negative distance of Current from the end (-1 is newest).
func (it *ReverseIter) Offset() int { return it.pos - len(it.s) }
