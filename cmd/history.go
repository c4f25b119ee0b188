package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/quotes"
	"github.com/etnz/quotes/renderer"
	"github.com/google/subcommands"
)

// symbolArg returns the single symbol argument of a command.
func symbolArg(f *flag.FlagSet) (string, bool) {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required.")
		return "", false
	}
	symbol, err := quotes.NormalizeSymbol(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return "", false
	}
	return symbol, true
}

// tail keeps the last n points of s, or all of them if n <= 0.
func tail(s quotes.Series, n int) quotes.Series {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// historyCmd implements the "history" command.
type historyCmd struct {
	unadjusted bool
	last       int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the daily history of a stock, adjusted for splits" }
func (*historyCmd) Usage() string {
	return `quotes history [-unadjusted] [-n <days>] <symbol>

  Displays the daily open, high, low, close and volume of a stock. Prices
  before each split are divided by the split ratio so that the whole
  history is comparable with today's price.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.unadjusted, "unadjusted", false, "Display the prices as traded, without split adjustment")
	f.IntVar(&c.last, "n", 30, "Number of days to display, 0 for the whole history")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, ok := symbolArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	svc, err := OpenService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	title, series := "Adjusted history", quotes.Series(nil)
	if c.unadjusted {
		title = "History"
		series, err = svc.History(ctx, symbol)
	} else {
		series, err = svc.AdjustedHistory(ctx, symbol)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving the history of %s: %v\n", symbol, err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderSeries(&renderer.Series{Title: title, Symbol: symbol, Points: tail(series, c.last)}))
	return subcommands.ExitSuccess
}

// intradayCmd implements the "intraday" command.
type intradayCmd struct{}

func (*intradayCmd) Name() string     { return "intraday" }
func (*intradayCmd) Synopsis() string { return "display the 15 minutes bars of a stock over the last days" }
func (*intradayCmd) Usage() string {
	return `quotes intraday <symbol>

  Displays the 15 minutes bars of the last days. They are also merged into
  the daily history of the stock.
`
}

func (c *intradayCmd) SetFlags(f *flag.FlagSet) {}

func (c *intradayCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, ok := symbolArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	svc, err := OpenService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	series, err := svc.Intraday(ctx, symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving intraday bars of %s: %v\n", symbol, err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderSeries(&renderer.Series{Title: "Intraday", Symbol: symbol, Intraday: true, Points: series}))
	return subcommands.ExitSuccess
}

// closeCmd implements the "close" command.
type closeCmd struct{}

func (*closeCmd) Name() string     { return "close" }
func (*closeCmd) Synopsis() string { return "print the last close of a stock" }
func (*closeCmd) Usage() string {
	return `quotes close <symbol>

  Prints the close of the most recent intraday bar.
`
}

func (c *closeCmd) SetFlags(f *flag.FlagSet) {}

func (c *closeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, ok := symbolArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	svc, err := OpenService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	price, err := svc.LastClose(ctx, symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving the last close of %s: %v\n", symbol, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "%s %s\n", symbol, renderer.Price(price))
	return subcommands.ExitSuccess
}

// splitsCmd implements the "splits" command.
type splitsCmd struct{}

func (*splitsCmd) Name() string     { return "splits" }
func (*splitsCmd) Synopsis() string { return "display the split history of a stock" }
func (*splitsCmd) Usage() string {
	return `quotes splits <symbol>
`
}

func (c *splitsCmd) SetFlags(f *flag.FlagSet) {}

func (c *splitsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, ok := symbolArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	svc, err := OpenService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	splits, err := svc.Splits(ctx, symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving the splits of %s: %v\n", symbol, err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderSplits(&renderer.Splits{Symbol: symbol, Splits: splits}))
	return subcommands.ExitSuccess
}
