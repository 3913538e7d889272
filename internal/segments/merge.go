// Package segments normalizes recording interval lists and validates user-edited cuts.
package segments

import (
	"math"
	"sort"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
)

// Result is the outcome of Merge.
type Result struct {
	// Raw is the normalized raw segment list.
	Raw []models.Segment `json:"raw"`
	// Segments is the effective list: the normalized overlay when one was given, Raw otherwise.
	Segments []models.Segment `json:"segments"`
	// Modified reports whether Segments came from the overlay.
	Modified bool `json:"modified"`
}

// Duration is the total length covered by the effective segments.
func (r Result) Duration() int64 {
	return Duration(r.Segments)
}

// Duration sums the lengths of a normalized list.
func Duration(segs []models.Segment) int64 {
	var total int64
	for _, s := range segs {
		total += s.Len()
	}
	return total
}

// Normalize sorts segs and merges touching or overlapping intervals.
// Zero-length intervals are dropped. A segment whose end precedes its start is rejected.
func Normalize(segs []models.Segment) ([]models.Segment, error) {
	sorted := make([]models.Segment, 0, len(segs))
	for _, s := range segs {
		if s.End() < s.Start() {
			return nil, apperr.Validation("segment [%d, %d) has negative length", s.Start(), s.End())
		}
		if spanOverflows(s.Start(), s.End()) {
			return nil, apperr.Validation("segment [%d, %d) is too long", s.Start(), s.End())
		}
		if s.Len() == 0 {
			continue
		}
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start() != sorted[j].Start() {
			return sorted[i].Start() < sorted[j].Start()
		}
		return sorted[i].End() < sorted[j].End()
	})

	out := make([]models.Segment, 0, len(sorted))
	for _, s := range sorted {
		if n := len(out); n > 0 && s.Start() <= out[n-1].End() {
			if s.End() > out[n-1].End() {
				out[n-1][1] = s.End()
			}
			continue
		}
		out = append(out, s)
	}
	// Disjoint intervals sum to at most the total span, so Duration cannot overflow.
	if n := len(out); n > 0 && spanOverflows(out[0].Start(), out[n-1].End()) {
		return nil, apperr.Validation("segments span [%d, %d) is too long", out[0].Start(), out[n-1].End())
	}
	return out, nil
}

// spanOverflows reports whether end-start does not fit in an int64. end >= start.
func spanOverflows(start, end int64) bool {
	return start < 0 && end > math.MaxInt64+start
}

// Merge normalizes raw and, when modified is non-nil, checks that every overlay
// interval lies inside the union of the raw intervals. Out-of-range overlays are
// rejected rather than clipped.
func Merge(raw, modified []models.Segment) (Result, error) {
	norm, err := Normalize(raw)
	if err != nil {
		return Result{}, err
	}
	res := Result{Raw: norm, Segments: norm}
	if modified == nil {
		return res, nil
	}

	overlay, err := Normalize(modified)
	if err != nil {
		return Result{}, err
	}
	for _, s := range overlay {
		if !covered(norm, s) {
			return Result{}, apperr.Validation("modified segment [%d, %d) is outside the recorded segments", s.Start(), s.End())
		}
	}
	res.Segments = overlay
	res.Modified = true
	return res, nil
}

// covered reports whether s fits inside a single interval of the normalized list.
// Normalized intervals never touch, so containment in the union means containment in one of them.
func covered(norm []models.Segment, s models.Segment) bool {
	i := sort.Search(len(norm), func(i int) bool { return norm[i].End() >= s.End() })
	return i < len(norm) && norm[i].Start() <= s.Start()
}
