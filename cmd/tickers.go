package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/quotes"
	"github.com/etnz/quotes/renderer"
	"github.com/google/subcommands"
)

// tickersCmd implements the "tickers" command.
type tickersCmd struct{}

func (*tickersCmd) Name() string     { return "tickers" }
func (*tickersCmd) Synopsis() string { return "list or search the stocks traded on the NYSE and the NASDAQ" }
func (*tickersCmd) Usage() string {
	return `quotes tickers [<search term>]

  Lists every ticker, or the ones whose symbol starts with the search term
  or whose name contains it. The listing is fetched from polygon.io once,
  which can take a few minutes on a free plan, and then kept in the cache.
`
}

func (c *tickersCmd) SetFlags(f *flag.FlagSet) {}

func (c *tickersCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, err := OpenService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	term := strings.Join(f.Args(), " ")
	var listings []quotes.Listing
	if term == "" {
		d, err := svc.ListTickers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing tickers: %v\n", err)
			return subcommands.ExitFailure
		}
		listings = d.Listings()
	} else {
		listings, err = svc.SearchTickers(ctx, term)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error searching tickers: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	printMarkdown(renderer.RenderTickers(&renderer.Tickers{Term: term, Listings: listings}))
	return subcommands.ExitSuccess
}
