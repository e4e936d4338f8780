package timeline

import (
	"slices"
	"sort"
	"strings"
)

// IntervalSet is a set of time ranges, stored as the minimal ascending
// sequence of disjoint intervals. Inserting a range merges it with any
// overlapping or adjacent ranges; erasing a range splits stored ranges at
// the boundaries as needed.
//
// The zero value is an empty set ready for use. IntervalSet is not safe for
// concurrent use; the loader guards its sets with its own lock.
type IntervalSet struct {
	ivals []Interval
}

// NewIntervalSet builds a set from the given intervals, merging as it goes.
func NewIntervalSet(ivals ...Interval) IntervalSet {
	var s IntervalSet
	for _, iv := range ivals {
		s.Insert(iv)
	}
	return s
}

// Insert adds a range to the set, merging it with any stored ranges it
// overlaps or touches. Empty ranges are ignored.
func (s *IntervalSet) Insert(iv Interval) {
	if iv.Empty() {
		return
	}

	// All stored intervals in [lo, hi) overlap or touch iv.
	lo := sort.Search(len(s.ivals), func(k int) bool { return s.ivals[k].End >= iv.Begin })
	hi := sort.Search(len(s.ivals), func(k int) bool { return s.ivals[k].Begin > iv.End })

	merged := iv
	if lo < hi {
		merged.Begin = min(merged.Begin, s.ivals[lo].Begin)
		merged.End = max(merged.End, s.ivals[hi-1].End)
	}
	s.ivals = slices.Replace(s.ivals, lo, hi, merged)
}

// Erase removes a range from the set (set difference), splitting stored
// intervals at the range boundaries.
func (s *IntervalSet) Erase(iv Interval) {
	if iv.Empty() {
		return
	}

	// All stored intervals in [lo, hi) intersect iv.
	lo := s.OverlapBegin(iv.Begin)
	hi := s.OverlapEnd(iv.End)
	if lo >= hi {
		return
	}

	var keep []Interval
	if left := (Interval{Begin: s.ivals[lo].Begin, End: iv.Begin}); !left.Empty() {
		keep = append(keep, left)
	}
	if right := (Interval{Begin: iv.End, End: s.ivals[hi-1].End}); !right.Empty() {
		keep = append(keep, right)
	}
	s.ivals = slices.Replace(s.ivals, lo, hi, keep...)
}

// EraseSet removes every range covered by other from this set.
func (s *IntervalSet) EraseSet(other IntervalSet) {
	for _, iv := range other.ivals {
		s.Erase(iv)
	}
}

// OverlapBegin returns the index of the first stored interval whose end
// exceeds t, i.e. the first interval that could overlap [t, Forever).
func (s *IntervalSet) OverlapBegin(t Seconds) int {
	return sort.Search(len(s.ivals), func(k int) bool { return s.ivals[k].End > t })
}

// OverlapEnd returns the index of the first stored interval whose begin is
// at or past t. The slice [OverlapBegin(x), OverlapEnd(y)) holds exactly the
// stored intervals intersecting [x, y); if it is empty, nothing intersects.
func (s *IntervalSet) OverlapEnd(t Seconds) int {
	return sort.Search(len(s.ivals), func(k int) bool { return s.ivals[k].Begin >= t })
}

// Bounds returns the single interval spanning the whole set, or an empty
// interval if the set is empty.
func (s *IntervalSet) Bounds() Interval {
	if len(s.ivals) == 0 {
		return Interval{}
	}
	return Interval{Begin: s.ivals[0].Begin, End: s.ivals[len(s.ivals)-1].End}
}

// Empty reports whether the set covers no time.
func (s *IntervalSet) Empty() bool {
	return len(s.ivals) == 0
}

// Len returns the number of stored disjoint intervals.
func (s *IntervalSet) Len() int {
	return len(s.ivals)
}

// At returns the stored interval at index i, in ascending order.
func (s *IntervalSet) At(i int) Interval {
	return s.ivals[i]
}

// Intervals returns a copy of the stored intervals in ascending order.
func (s *IntervalSet) Intervals() []Interval {
	return slices.Clone(s.ivals)
}

// Contains reports whether t falls within some stored interval.
func (s *IntervalSet) Contains(t Seconds) bool {
	i := s.OverlapBegin(t)
	return i < len(s.ivals) && s.ivals[i].Contains(t)
}

// Equal reports whether both sets contain the same disjoint intervals in
// the same order.
func (s *IntervalSet) Equal(other IntervalSet) bool {
	return slices.Equal(s.ivals, other.ivals)
}

// Copy returns an independent copy of the set.
func (s *IntervalSet) Copy() IntervalSet {
	return IntervalSet{ivals: slices.Clone(s.ivals)}
}

// String formats the set as "{0~2.5, 4~forever}".
func (s *IntervalSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, iv := range s.ivals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(iv.String())
	}
	b.WriteByte('}')
	return b.String()
}
