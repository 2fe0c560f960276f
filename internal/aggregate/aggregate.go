// Package aggregate provides pure, generic aggregation functions over record
// lists. A selector extracts one value from a record; no function mutates its input.
package aggregate

import (
	"cmp"
	"slices"
)

// Number is any value SumBy and AverageBy can add up.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Weighter is implemented by records that carry a natural weight.
// PercentageByWeight uses it when no weight selector is given.
type Weighter interface {
	Weight() float64
}

// Count is one entry of a CountBy result.
type Count[K comparable] struct {
	Value K
	Count int
}

// SumBy returns the sum of the selected values. Empty input sums to zero.
func SumBy[T any, N Number](items []T, selector func(T) N) N {
	var total N
	for _, item := range items {
		total += selector(item)
	}
	return total
}

// CountUniqueBy returns the number of distinct selected values.
func CountUniqueBy[T any, K comparable](items []T, selector func(T) K) int {
	seen := make(map[K]struct{}, len(items))
	for _, item := range items {
		seen[selector(item)] = struct{}{}
	}
	return len(seen)
}

// CountBy counts occurrences per selected value, ordered by descending count.
// Ties keep the order in which values were first encountered.
func CountBy[T any, K comparable](items []T, selector func(T) K) []Count[K] {
	index := make(map[K]int)
	counts := make([]Count[K], 0)

	for _, item := range items {
		value := selector(item)
		i, ok := index[value]
		if !ok {
			index[value] = len(counts)
			counts = append(counts, Count[K]{Value: value, Count: 1})
			continue
		}
		counts[i].Count++
	}

	slices.SortStableFunc(counts, func(a, b Count[K]) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return counts
}

// AverageBy returns the arithmetic mean of the selected values, or 0 for empty input.
func AverageBy[T any, N Number](items []T, selector func(T) N) float64 {
	if len(items) == 0 {
		return 0
	}
	var total float64
	for _, item := range items {
		total += float64(selector(item))
	}
	return total / float64(len(items))
}

// PercentageByWeight returns, for each distinct selected value, its share of
// the total weight in percent. A nil weight uses Weighter when T implements it
// and 1 otherwise. Empty input, or a zero total weight, yields an empty map.
func PercentageByWeight[T any, K comparable](items []T, selector func(T) K, weight func(T) float64) map[K]float64 {
	if weight == nil {
		weight = defaultWeight[T]
	}

	sums := make(map[K]float64)
	var total float64
	for _, item := range items {
		w := weight(item)
		sums[selector(item)] += w
		total += w
	}

	percentages := make(map[K]float64, len(sums))
	if total == 0 {
		return percentages
	}
	for value, sum := range sums {
		percentages[value] = 100 * sum / total
	}
	return percentages
}

func defaultWeight[T any](item T) float64 {
	if w, ok := any(item).(Weighter); ok {
		return w.Weight()
	}
	return 1
}

// SortedBy returns a stably sorted copy of items ordered by the selected key.
func SortedBy[T any, K cmp.Ordered](items []T, selector func(T) K, ascending bool) []T {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b T) int {
		if ascending {
			return cmp.Compare(selector(a), selector(b))
		}
		return cmp.Compare(selector(b), selector(a))
	})
	return sorted
}

// TopN returns the first n items, fewer if the list is shorter, none for n <= 0.
func TopN[T any](items []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	if n > len(items) {
		n = len(items)
	}
	return slices.Clone(items[:n])
}

// Filter returns the items for which keep reports true.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// MinBy and MaxBy return the smallest and largest selected value, and false
// for empty input.
func MinBy[T any, K cmp.Ordered](items []T, selector func(T) K) (K, bool) {
	var best K
	for i, item := range items {
		v := selector(item)
		if i == 0 || v < best {
			best = v
		}
	}
	return best, len(items) > 0
}

func MaxBy[T any, K cmp.Ordered](items []T, selector func(T) K) (K, bool) {
	var best K
	for i, item := range items {
		v := selector(item)
		if i == 0 || v > best {
			best = v
		}
	}
	return best, len(items) > 0
}
