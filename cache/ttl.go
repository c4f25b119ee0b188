package cache

import "time"

// TTL is an expiration policy, evaluated when an entry is written.
//
// The zero TTL is the default policy: the entry expires at the store's
// cutoff hour on the calendar day following the write.
type TTL struct {
	kind ttlKind
	at   time.Time
	d    time.Duration
}

type ttlKind int

const (
	ttlDefault ttlKind = iota
	ttlNever
	ttlAt
	ttlAfter
)

// Default expires the entry at the next cutoff.
var Default = TTL{}

// Never returns a policy for entries that never expire.
func Never() TTL { return TTL{kind: ttlNever} }

// At returns a policy expiring the entry at t.
func At(t time.Time) TTL { return TTL{kind: ttlAt, at: t} }

// After returns a policy expiring the entry d after it is written.
func After(d time.Duration) TTL { return TTL{kind: ttlAfter, d: d} }

// Keep returns the policy that reproduces an existing expiration: At(*expires), or Never if nil.
func Keep(expires *time.Time) TTL {
	if expires == nil {
		return Never()
	}
	return At(*expires)
}

// expiresAt computes the expiration of an entry written at now.
// A nil result means the entry never expires.
func (t TTL) expiresAt(now time.Time, cutoff Cutoff) *time.Time {
	var at time.Time
	switch t.kind {
	case ttlNever:
		return nil
	case ttlAt:
		at = t.at
	case ttlAfter:
		at = now.Add(t.d)
	default:
		at = cutoff.Next(now)
	}
	return &at
}

func (t TTL) String() string {
	switch t.kind {
	case ttlNever:
		return "never"
	case ttlAt:
		return "at " + t.at.Format(time.RFC3339)
	case ttlAfter:
		return "after " + t.d.String()
	default:
		return "default"
	}
}

// Cutoff is the time of day at which entries written with the Default policy expire.
type Cutoff struct {
	Hour     int
	Location *time.Location
}

// Next returns the cutoff instant on the calendar day following now, in the cutoff location.
func (c Cutoff) Next(now time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+1, c.Hour, 0, 0, 0, loc)
}

// DefaultCutoff is 02:00 New York time: end of day aggregates of US exchanges
// are published after the close and settled by then.
func DefaultCutoff() Cutoff {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.Local
	}
	return Cutoff{Hour: 2, Location: loc}
}
