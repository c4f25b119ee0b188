package quotes

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Directory maps ticker symbols to company names.
type Directory map[string]string

// Listing is a single Directory entry.
type Listing struct {
	Symbol string
	Name   string
}

// Validate rejects empty symbols.
func (d Directory) Validate() error {
	if _, ok := d[""]; ok {
		return fmt.Errorf("%w: empty ticker symbol in directory", ErrMalformed)
	}
	return nil
}

// Listings returns all entries sorted by symbol.
func (d Directory) Listings() []Listing {
	return d.Search("")
}

// Search returns the entries whose symbol starts with term, or whose name
// contains it, ignoring case. Exact symbol matches come first, then
// entries are sorted by symbol.
func (d Directory) Search(term string) []Listing {
	term = strings.ToUpper(strings.TrimSpace(term))
	var found []Listing
	for symbol, name := range d {
		if strings.HasPrefix(symbol, term) || strings.Contains(strings.ToUpper(name), term) {
			found = append(found, Listing{Symbol: symbol, Name: name})
		}
	}
	slices.SortFunc(found, func(a, b Listing) int {
		if ea, eb := a.Symbol == term, b.Symbol == term; ea != eb {
			if ea {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	return found
}
