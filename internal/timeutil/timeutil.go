// Package timeutil converts between the store's epoch-second
// timestamps and time.Time values.
package timeutil

import (
	"math"
	"time"
)

// Format returns t as an RFC3339Nano UTC string, or "" for the
// zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// FromEpoch converts fractional epoch seconds to a UTC time.
// Non-finite input yields the zero time.
func FromEpoch(sec float64) time.Time {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// Epoch converts t to fractional epoch seconds.
func Epoch(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// FormatEpoch formats fractional epoch seconds like Format.
// Zero seconds format as the Unix epoch, not "".
func FormatEpoch(sec float64) string {
	t := FromEpoch(sec)
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
