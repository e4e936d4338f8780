// Package timeline provides the time algebra used by the frame loader.
//
// Media time is modeled as a totally ordered Seconds value with an infinite
// sentinel (Forever), half-open Intervals over it, and IntervalSet, a minimal
// sequence of disjoint merged intervals. The playback engine expresses which
// ranges of a file it wants as an IntervalSet, and the loader tracks which
// ranges it has as another; everything the loader decides reduces to union,
// difference and overlap queries on these types.
package timeline

import (
	"math"
	"strconv"
)

// Seconds is a timestamp within a media file, measured from its start.
//
// Seconds is totally ordered and supports Forever as an open upper bound,
// so [t, Forever) means "everything at or after t".
type Seconds float64

// Forever is the infinite sentinel, usable as an open upper bound.
var Forever = Seconds(math.Inf(1))

// String formats the timestamp compactly ("2.5", "0.04", "forever").
func (s Seconds) String() string {
	if s == Forever {
		return "forever"
	}
	return strconv.FormatFloat(float64(s), 'g', -1, 64)
}

// Interval is a half-open time range [Begin, End).
//
// A live interval always satisfies Begin <= End; Empty reports ranges that
// cover no time at all.
type Interval struct {
	Begin Seconds
	End   Seconds
}

// Empty reports whether the interval covers no time.
func (iv Interval) Empty() bool {
	return iv.End <= iv.Begin
}

// Contains reports whether t falls within [Begin, End).
func (iv Interval) Contains(t Seconds) bool {
	return t >= iv.Begin && t < iv.End
}

// Overlaps reports whether the two intervals share any time. Empty
// intervals overlap nothing.
func (iv Interval) Overlaps(other Interval) bool {
	return !iv.Empty() && !other.Empty() &&
		iv.Begin < other.End && other.Begin < iv.End
}

// Intersect returns the overlap of the two intervals, which is empty if
// they do not overlap.
func (iv Interval) Intersect(other Interval) Interval {
	out := Interval{Begin: max(iv.Begin, other.Begin), End: min(iv.End, other.End)}
	if out.Empty() {
		return Interval{}
	}
	return out
}

// String formats the interval as "begin~end".
func (iv Interval) String() string {
	return iv.Begin.String() + "~" + iv.End.String()
}
