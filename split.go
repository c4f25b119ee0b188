package quotes

import (
	"fmt"

	"github.com/etnz/quotes/date"
	"github.com/shopspring/decimal"
)

// Split is a stock split effective on Date.
//
// A 7-for-1 split is encoded as From=1, To=7: prices before Date are
// multiplied by From/To.
type Split struct {
	Date date.Date       `json:"date"`
	From decimal.Decimal `json:"split_from"`
	To   decimal.Decimal `json:"split_to"`
}

// NewSplit returns a split of 'from' shares into 'to' shares, effective on d.
func NewSplit(d date.Date, from, to int64) Split {
	return Split{Date: d, From: decimal.NewFromInt(from), To: decimal.NewFromInt(to)}
}

// Ratio returns the factor applied to prices before the split.
func (s Split) Ratio() decimal.Decimal { return s.From.Div(s.To) }

// Validate checks that the split is usable.
func (s Split) Validate() error {
	if s.Date.IsZero() {
		return fmt.Errorf("%w: split without a date", ErrMalformed)
	}
	if !s.From.IsPositive() || !s.To.IsPositive() {
		return fmt.Errorf("%w: split %s:%s on %s must have positive factors", ErrMalformed, s.From, s.To, s.Date)
	}
	return nil
}

func (s Split) String() string { return fmt.Sprintf("%s %s-for-%s", s.Date, s.To, s.From) }

// Splits is the split history of a security.
type Splits []Split

// Validate checks every split.
func (s Splits) Validate() error {
	for _, split := range s {
		if err := split.Validate(); err != nil {
			return err
		}
	}
	return nil
}
