package quotes

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"
)

// Bar holds the prices and volume of a single trading period.
type Bar struct {
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Bars is the persisted form of a series: bars indexed by their epoch timestamp in seconds.
type Bars map[int64]Bar

// Series returns the bars as a chronologically ordered Series.
func (b Bars) Series() Series {
	s := make(Series, 0, len(b))
	for _, ts := range slices.Sorted(maps.Keys(b)) {
		s = append(s, b[ts].At(ts))
	}
	return s
}

// Validate rejects bars with negative prices or volume, which would corrupt adjusted series.
func (b Bars) Validate() error {
	for ts, bar := range b {
		if bar.Open.IsNegative() || bar.High.IsNegative() || bar.Low.IsNegative() || bar.Close.IsNegative() {
			return fmt.Errorf("%w: negative price at %d", ErrMalformed, ts)
		}
		if bar.Volume < 0 {
			return fmt.Errorf("%w: negative volume at %d", ErrMalformed, ts)
		}
	}
	return nil
}

// At returns the point of b at timestamp ts.
func (b Bar) At(ts int64) Point {
	return Point{Timestamp: ts, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
}

// Point is a Bar placed in time.
type Point struct {
	Timestamp int64 // epoch seconds
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
}

// Bar drops the timestamp.
func (p Point) Bar() Bar {
	return Bar{Open: p.Open, High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume}
}

// scale multiplies every price by ratio, rounding to the cent.
func (p Point) scale(ratio decimal.Decimal) Point {
	p.Open = p.Open.Mul(ratio).Round(2)
	p.High = p.High.Mul(ratio).Round(2)
	p.Low = p.Low.Mul(ratio).Round(2)
	p.Close = p.Close.Mul(ratio).Round(2)
	return p
}

// Series is a sequence of points, in ascending timestamp order.
type Series []Point

// Bars indexes the series by timestamp. Later points win on duplicate timestamps.
func (s Series) Bars() Bars {
	b := make(Bars, len(s))
	for _, p := range s {
		b[p.Timestamp] = p.Bar()
	}
	return b
}

// Last returns the most recent point.
func (s Series) Last() (Point, error) {
	if len(s) == 0 {
		return Point{}, ErrNoData
	}
	return s[len(s)-1], nil
}

// sortSeries orders s by ascending timestamp.
func sortSeries(s Series) {
	slices.SortStableFunc(s, func(a, b Point) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
}

// ErrNoData is returned when a series has no point to answer a query.
var ErrNoData = errors.New("no data")
