package quotes

import (
	"time"

	"github.com/etnz/quotes/date"
	"github.com/shopspring/decimal"
)

// decimalOf parses a decimal literal, panicking on error.
func decimalOf(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// day returns the epoch timestamp of midnight of d in the exchange time zone.
func day(d string) int64 { return date.MustParse(d).Start(Exchange).Unix() }

// flat returns a point where every price equals p.
func flat(ts int64, p string, volume int64) Point {
	v := decimalOf(p)
	return Point{Timestamp: ts, Open: v, High: v, Low: v, Close: v, Volume: volume}
}

// at returns ts shifted by d.
func at(ts int64, d time.Duration) int64 { return ts + int64(d/time.Second) }
