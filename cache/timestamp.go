package cache

import (
	"math"
	"time"
)

// Timestamp is an instant persisted as epoch seconds, possibly fractional.
type Timestamp float64

// NewTimestamp converts t into a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(float64(t.UnixNano()) / float64(time.Second))
}

// Time converts the timestamp back into a time.Time.
func (ts Timestamp) Time() time.Time {
	sec, frac := math.Modf(float64(ts))
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second))))
}
