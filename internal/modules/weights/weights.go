// Package weights holds the per-SKU forecast source weights and the local
// search that tunes them from realized outcomes.
package weights

// Source keys for the learned part of the forecast blend. The special-day
// source carries fixed weights inside the forecast engine and is not learned.
const (
	SourceSameWeekday4w = "same_weekday_4w"
	SourceSameWeekday8w = "same_weekday_8w"
	SourceLastWeekAvg   = "last_week_avg"
	SourceSameDayMonth  = "same_day_month"
	SourceYearOverYear  = "year_over_year"
)

// SourceKeys returns the learned source names in canonical order.
func SourceKeys() []string {
	return []string{
		SourceSameWeekday4w,
		SourceSameWeekday8w,
		SourceLastWeekAvg,
		SourceSameDayMonth,
		SourceYearOverYear,
	}
}

// Weights maps source name to blend weight. A valid vector sums to 1.0.
type Weights map[string]float64

// Defaults returns the documented default vector. Recent same-weekday history
// dominates; the calendar-shifted sources carry the tail.
func Defaults() Weights {
	return Weights{
		SourceSameWeekday4w: 0.35,
		SourceSameWeekday8w: 0.25,
		SourceLastWeekAvg:   0.20,
		SourceSameDayMonth:  0.10,
		SourceYearOverYear:  0.10,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}

// Normalize rescales the vector to sum to 1.0. A non-positive sum leaves the
// vector untouched.
func (w Weights) Normalize() {
	sum := w.Sum()
	if sum <= 0 {
		return
	}
	for k, v := range w {
		w[k] = v / sum
	}
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
