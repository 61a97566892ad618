// Package selection holds the pure track-selection algorithms shared by the
// session modes: shuffling, uniform draws and cyclic index math.
package selection

import (
	"math/rand/v2"

	"github.com/dkeye/Voicebox/internal/domain"
)

// Shuffle permutes items in place (Fisher-Yates) and returns the same slice.
func Shuffle[T any](r *rand.Rand, items []T) []T {
	for i := len(items) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
	return items
}

// Draw picks one element uniformly at random. ok is false for an empty pool.
func Draw[T any](r *rand.Rand, pool []T) (v T, ok bool) {
	if len(pool) == 0 {
		return v, false
	}
	return pool[r.IntN(len(pool))], true
}

// Advance moves a cyclic cursor over n items forward by one. wrapped reports
// that the cursor went back to 0.
func Advance(cursor, n int) (next int, wrapped bool) {
	if n <= 0 {
		return 0, false
	}
	next = (cursor + 1) % n
	if next < 0 {
		next += n
	}
	return next, next == 0
}

// Other returns a uniformly random index in [0,n) different from current.
// With fewer than two items current is returned unchanged.
func Other(r *rand.Rand, current, n int) int {
	if n <= 1 {
		return current
	}
	if current < 0 || current >= n {
		return r.IntN(n)
	}
	next := r.IntN(n - 1)
	if next >= current {
		next++
	}
	return next
}

// Next computes the index the jukebox plays after current completes.
// -1 means stop.
func Next(r *rand.Rand, p domain.JukeboxPolicy, current, n int) int {
	if n <= 0 || current < 0 {
		return -1
	}
	switch p {
	case domain.PolicyRepeat:
		return current
	case domain.PolicySequential:
		return (current + 1) % n
	case domain.PolicyShuffle:
		return Other(r, current, n)
	default:
		return -1
	}
}
