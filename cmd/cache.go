package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/quotes/cache"
	"github.com/etnz/quotes/renderer"
	"github.com/google/subcommands"
)

// cacheCmd is the top-level command for cache housekeeping.
type cacheCmd struct{}

func (*cacheCmd) Name() string     { return "cache" }
func (*cacheCmd) Synopsis() string { return "inspect and clean the cache" }
func (*cacheCmd) Usage() string {
	return `quotes cache <ls|invalidate|prune> <options>
`
}
func (c *cacheCmd) SetFlags(f *flag.FlagSet) {}

func (c *cacheCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	commander := subcommands.NewCommander(f, "cache")
	commander.Register(&cacheLsCmd{}, "")
	commander.Register(&cacheInvalidateCmd{}, "")
	commander.Register(&cachePruneCmd{}, "")
	return commander.Execute(ctx, args...)
}

// storeFromConfig opens the configured cache.
func storeFromConfig(opts ...cache.Option) (*cache.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openStore(cfg, opts...)
}

// cacheLsCmd implements the "cache ls" command.
type cacheLsCmd struct{}

func (*cacheLsCmd) Name() string     { return "ls" }
func (*cacheLsCmd) Synopsis() string { return "list the cache entries and their expiration" }
func (*cacheLsCmd) Usage() string {
	return `quotes cache ls
`
}
func (c *cacheLsCmd) SetFlags(f *flag.FlagSet) {}

func (c *cacheLsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, err := storeFromConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	report, err := renderer.NewCache(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing the cache: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderCache(report))
	return subcommands.ExitSuccess
}

// cacheInvalidateCmd implements the "cache invalidate" command.
type cacheInvalidateCmd struct {
	force bool
}

func (*cacheInvalidateCmd) Name() string     { return "invalidate" }
func (*cacheInvalidateCmd) Synopsis() string { return "remove cache entries so that they are fetched again" }
func (*cacheInvalidateCmd) Usage() string {
	return `quotes cache invalidate [-f] <key>...

  Keys are listed by 'quotes cache ls', e.g. "tickers" or "splits.AAPL".
`
}
func (c *cacheInvalidateCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "f", false, "Ignore keys that are not in the cache")
}

func (c *cacheInvalidateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one key is required.")
		return subcommands.ExitUsageError
	}
	var opts []cache.Option
	if c.force {
		opts = append(opts, cache.WithLenientInvalidate())
	}
	svc, err := OpenService(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	status := subcommands.ExitSuccess
	for _, key := range f.Args() {
		if err := svc.Invalidate(key); err != nil {
			fmt.Fprintf(os.Stderr, "Error invalidating %q: %v\n", key, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(stdout, "%s invalidated\n", key)
	}
	return status
}

// cachePruneCmd implements the "cache prune" command.
type cachePruneCmd struct{}

func (*cachePruneCmd) Name() string     { return "prune" }
func (*cachePruneCmd) Synopsis() string { return "remove the expired cache entries" }
func (*cachePruneCmd) Usage() string {
	return `quotes cache prune
`
}
func (c *cachePruneCmd) SetFlags(f *flag.FlagSet) {}

func (c *cachePruneCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, err := storeFromConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	n, err := store.Prune()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning the cache: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "%d expired entries removed\n", n)
	return subcommands.ExitSuccess
}
