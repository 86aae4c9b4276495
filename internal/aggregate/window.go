// Package aggregate buckets resolved events into fixed-width time windows and
// collapses each (entity, window) to its dominant location.
package aggregate

import (
	"time"
)

// DefaultWindowHours is the default aggregation window width.
const DefaultWindowHours = 2

// Floor returns ts floored to a window of the given width in hours, counted
// from the Unix epoch in UTC.
func Floor(ts time.Time, hours int) time.Time {
	if hours < 1 {
		hours = 1
	}
	w := int64(hours) * 3600
	s := ts.Unix()
	r := s % w
	if r < 0 {
		r += w
	}
	return time.Unix(s-r, 0).UTC()
}

// Offset returns the window r steps away from w.
func Offset(w time.Time, hours, r int) time.Time {
	return w.Add(time.Duration(r*hours) * time.Hour)
}
