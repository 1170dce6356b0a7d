package sched

import "math/rand"

// fuzzedIvlRange returns the inclusive [min, max] day range an
// interval may land in after fuzzing. The window narrows as intervals
// grow: 25% under a week, 15% under a month, 5% beyond, never less
// than a day.
func fuzzedIvlRange(ivl int) (int, int) {
	var fuzz int
	switch {
	case ivl < 2:
		return 1, 1
	case ivl == 2:
		return 2, 3
	case ivl < 7:
		fuzz = int(float64(ivl) * 0.25)
	case ivl < 30:
		fuzz = max(2, int(float64(ivl)*0.15))
	default:
		fuzz = max(4, int(float64(ivl)*0.05))
	}
	fuzz = max(fuzz, 1)
	return ivl - fuzz, ivl + fuzz
}

// fuzzedIvl picks a value uniformly within the fuzz range of ivl.
func fuzzedIvl(r *rand.Rand, ivl int) int {
	lo, hi := fuzzedIvlRange(ivl)
	return lo + r.Intn(hi-lo+1)
}
