package cmd

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/etnz/quotes/docs"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Completion describes the command line for shell completion.
func Completion() *complete.Command {
	symbols := complete.PredictFunc(predictSymbols)
	keys := complete.PredictFunc(predictKeys)
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config":                predict.Files("*.yaml"),
			"cache-dir":             predict.Dirs("*"),
			"polygon-api-key":       predict.Something,
			"alpha-vantage-api-key": predict.Something,
			"eodhd-api-key":         predict.Something,
			"offline":               predict.Nothing,
			"raw":                   predict.Nothing,
			"v":                     predict.Nothing,
		},
		Sub: map[string]*complete.Command{
			"tickers": {},
			"topic":   {Flags: map[string]complete.Predictor{"l": predict.Nothing}, Args: predict.Set(docs.List())},
			"history": {
				Flags: map[string]complete.Predictor{"unadjusted": predict.Nothing, "n": predict.Something},
				Args:  symbols,
			},
			"intraday": {Args: symbols},
			"close":    {Args: symbols},
			"splits":   {Args: symbols},
			"watchlist": {Sub: map[string]*complete.Command{
				"add":     {},
				"remove":  {Args: symbols},
				"refresh": {},
			}},
			"cache": {Sub: map[string]*complete.Command{
				"ls":         {},
				"invalidate": {Flags: map[string]complete.Predictor{"f": predict.Nothing}, Args: keys},
				"prune":      {},
			}},
		},
	}
}

// predictSymbols suggests the symbols of the watchlist, from the cache only.
func predictSymbols(prefix string) []string {
	*offline = true
	svc, err := OpenService()
	if err != nil {
		return nil
	}
	w, err := svc.Watchlist(context.Background())
	if err != nil {
		return nil
	}
	prefix = strings.ToUpper(prefix)
	var symbols []string
	for _, s := range slices.Sorted(maps.Keys(w)) {
		if strings.HasPrefix(s, prefix) {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// predictKeys suggests the keys in the cache.
func predictKeys(prefix string) []string {
	store, err := storeFromConfig()
	if err != nil {
		return nil
	}
	keys, err := store.Keys()
	if err != nil {
		return nil
	}
	return slices.DeleteFunc(keys, func(k string) bool { return !strings.HasPrefix(k, prefix) })
}

