package quotes

import (
	"slices"
	"time"
)

// Exchange is the time zone of US exchanges. Split dates are interpreted in it.
var Exchange = exchangeLocation()

func exchangeLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Adjust returns series with prices rewritten for splits.
//
// For each split, every point strictly before the first instant of the
// split date (in loc) has its prices multiplied by the split ratio and
// rounded to the cent. Splits are applied in chronological order, rounding
// after each one, so a point preceding several splits compounds their
// ratios. Volumes are left as reported. The input is not modified and the
// result is sorted by ascending timestamp.
func Adjust(series Series, splits []Split, loc *time.Location) (Series, error) {
	if loc == nil {
		loc = Exchange
	}
	for _, s := range splits {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	ordered := slices.Clone(splits)
	slices.SortStableFunc(ordered, func(a, b Split) int { return a.Date.Compare(b.Date) })

	adjusted := slices.Clone(series)
	for _, s := range ordered {
		ratio := s.Ratio()
		before := s.Date.Start(loc).Unix()
		for i, p := range adjusted {
			if p.Timestamp < before {
				adjusted[i] = p.scale(ratio)
			}
		}
	}
	sortSeries(adjusted)
	return adjusted, nil
}
