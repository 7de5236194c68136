// Package resolve implements the Presidio-compatible conflict resolution
// algorithm that reduces a set of possibly overlapping labelled intervals to
// a disjoint, deterministically ordered set.
package resolve

import (
	"sort"

	"github.com/Tributary-ai-services/maskproxy/pkg/span"
)

// Resolve reduces entities — possibly overlapping, possibly from more than
// one category — to a pairwise disjoint list sorted by start offset.
//
// Algorithm:
//  1. Group entities by category.
//  2. Within a category, merge intervals that overlap or touch (end_i ==
//     start_j) into a single interval whose score is the max of the merged
//     set.
//  3. Across categories, for each overlapping pair of merged intervals,
//     retain the one with the higher score, breaking ties by longer
//     interval, then earlier start, then lexicographically smaller category.
//  4. Return the survivors sorted by start.
func Resolve(entities []span.Entity) []span.Entity {
	if len(entities) == 0 {
		return nil
	}

	merged := mergeWithinCategory(entities)
	survivors := resolveAcrossCategories(merged)

	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].Start < survivors[j].Start
	})
	return survivors
}

// mergeWithinCategory groups entities by category and merges overlapping or
// touching intervals within each group.
func mergeWithinCategory(entities []span.Entity) []span.Entity {
	byCategory := make(map[string][]span.Entity)
	for _, e := range entities {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	var merged []span.Entity
	for category, group := range byCategory {
		sort.Slice(group, func(i, j int) bool {
			if group[i].Start != group[j].Start {
				return group[i].Start < group[j].Start
			}
			return group[i].End < group[j].End
		})

		current := group[0]
		for _, next := range group[1:] {
			if next.Start <= current.End {
				// Overlapping or touching (next.Start == current.End):
				// merge-eligible.
				if next.End > current.End {
					current.End = next.End
				}
				if next.Score > current.Score {
					current.Score = next.Score
				}
				continue
			}
			merged = append(merged, current)
			current = next
		}
		merged = append(merged, current)
		_ = category
	}
	return merged
}

// resolveAcrossCategories retains, for every pair of overlapping intervals
// from distinct categories, the higher-scored one (tie-broken by length,
// then start, then category name).
func resolveAcrossCategories(intervals []span.Entity) []span.Entity {
	dropped := make([]bool, len(intervals))

	for i := 0; i < len(intervals); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(intervals); j++ {
			if dropped[j] {
				continue
			}
			if !overlaps(intervals[i], intervals[j]) {
				continue
			}
			if preferred(intervals[i], intervals[j]) {
				dropped[j] = true
			} else {
				dropped[i] = true
				break
			}
		}
	}

	survivors := make([]span.Entity, 0, len(intervals))
	for i, e := range intervals {
		if !dropped[i] {
			survivors = append(survivors, e)
		}
	}
	return survivors
}

// overlaps reports whether two half-open intervals overlap. Intervals that
// only touch at a point (a.End == b.Start) do not overlap.
func overlaps(a, b span.Entity) bool {
	return a.Start < b.End && b.Start < a.End
}

// preferred reports whether a should be kept over b when they overlap.
func preferred(a, b span.Entity) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Len() != b.Len() {
		return a.Len() > b.Len()
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.Category < b.Category
}
