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

// watchlistCmd is the top-level command for the watchlist.
type watchlistCmd struct{}

func (*watchlistCmd) Name() string     { return "watchlist" }
func (*watchlistCmd) Synopsis() string { return "display and manage the watchlist" }
func (*watchlistCmd) Usage() string {
	return `quotes watchlist [add|remove|refresh] [<symbol>...]

  Without subcommand, displays the tracked stocks with their last known close.
`
}
func (c *watchlistCmd) SetFlags(f *flag.FlagSet) {}

func (c *watchlistCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		svc, err := OpenService()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		w, err := svc.Watchlist(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading the watchlist: %v\n", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.RenderWatchlist(renderer.NewWatchlist(w)))
		return subcommands.ExitSuccess
	}
	commander := subcommands.NewCommander(f, "watchlist")
	commander.Register(&watchlistAddCmd{}, "")
	commander.Register(&watchlistRemoveCmd{}, "")
	commander.Register(&watchlistRefreshCmd{}, "")
	return commander.Execute(ctx, args...)
}

// watchlistAddCmd implements the "watchlist add" command.
type watchlistAddCmd struct{}

func (*watchlistAddCmd) Name() string     { return "add" }
func (*watchlistAddCmd) Synopsis() string { return "start tracking stocks" }
func (*watchlistAddCmd) Usage() string {
	return `quotes watchlist add <symbol>...
`
}
func (c *watchlistAddCmd) SetFlags(f *flag.FlagSet) {}

func (c *watchlistAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return editWatchlist(ctx, f, (*quotes.Service).AddToWatchlist)
}

// watchlistRemoveCmd implements the "watchlist remove" command.
type watchlistRemoveCmd struct{}

func (*watchlistRemoveCmd) Name() string     { return "remove" }
func (*watchlistRemoveCmd) Synopsis() string { return "stop tracking stocks" }
func (*watchlistRemoveCmd) Usage() string {
	return `quotes watchlist remove <symbol>...
`
}
func (c *watchlistRemoveCmd) SetFlags(f *flag.FlagSet) {}

func (c *watchlistRemoveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return editWatchlist(ctx, f, (*quotes.Service).RemoveFromWatchlist)
}

// editWatchlist applies edit to every symbol argument, then displays the watchlist.
func editWatchlist(ctx context.Context, f *flag.FlagSet, edit func(*quotes.Service, context.Context, string) error) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one symbol is required.")
		return subcommands.ExitUsageError
	}
	svc, err := OpenService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	status := subcommands.ExitSuccess
	for _, symbol := range f.Args() {
		if err := edit(svc, ctx, symbol); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = subcommands.ExitFailure
		}
	}
	w, err := svc.Watchlist(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading the watchlist: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderWatchlist(renderer.NewWatchlist(w)))
	return status
}

// watchlistRefreshCmd implements the "watchlist refresh" command.
type watchlistRefreshCmd struct{}

func (*watchlistRefreshCmd) Name() string     { return "refresh" }
func (*watchlistRefreshCmd) Synopsis() string { return "update the last close of every tracked stock" }
func (*watchlistRefreshCmd) Usage() string {
	return `quotes watchlist refresh

  Retrieves the intraday bars of every tracked stock and records their last
  close. Stocks that cannot be refreshed keep their previous close.
`
}
func (c *watchlistRefreshCmd) SetFlags(f *flag.FlagSet) {}

func (c *watchlistRefreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, err := OpenService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	w, err := svc.RefreshWatchlist(ctx)
	if w == nil {
		fmt.Fprintf(os.Stderr, "Error refreshing the watchlist: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderWatchlist(renderer.NewWatchlist(w)))
	if err != nil {
		for _, e := range unjoin(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", e)
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// unjoin lists the errors joined by errors.Join.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

