package playlist

import (
	"sort"

	"github.com/AdrienPensart/critical/internal/errs"
)

// InterleaveEvenly merges the given sequences into one, maximizing the
// spacing between elements of the same sequence. The longest sequence paces
// the output; every other sequence keeps an error counter seeded with
// ⌊L0/N⌋ that is decremented by its own length each step and earns back L0
// whenever it goes negative, which is when that sequence emits.
func InterleaveEvenly[T any](groups [][]T) ([]T, error) {
	sorted := append([][]T(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	total := 0
	for _, g := range sorted {
		total += len(g)
	}
	if total == 0 {
		return nil, nil
	}
	if len(sorted) == 1 {
		return append([]T(nil), sorted[0]...), nil
	}

	primary := sorted[0]
	secondaries := sorted[1:]
	counters := make([]int, len(secondaries))
	for i := range counters {
		counters[i] = len(primary) / len(sorted)
	}

	next := make([]int, len(sorted))
	out := make([]T, 0, total)
	for toYield := total; toYield > 0; {
		if next[0] < len(primary) {
			out = append(out, primary[next[0]])
			next[0]++
		}
		toYield--
		for i := range counters {
			counters[i] -= len(secondaries[i])
			if counters[i] < 0 {
				if next[i+1] < len(secondaries[i]) {
					out = append(out, secondaries[i][next[i+1]])
					next[i+1]++
				}
				toYield--
				counters[i] += len(primary)
			}
		}
	}
	if len(out) != total {
		return nil, errs.ErrInterleave
	}
	return out, nil
}
