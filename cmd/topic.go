package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/quotes/docs"
	"github.com/google/subcommands"
)

// docCmd prints the embedded guides about the cache, the configuration,
// split adjustment and the watchlist.
type docCmd struct {
	list bool
}

func (*docCmd) Name() string     { return "topic" }
func (*docCmd) Synopsis() string { return "read the guides on the cache, providers, splits and watchlist" }
func (*docCmd) Usage() string {
	return fmt.Sprintf(`quotes topic [-l] [<topic>...]

Without a topic, prints the overview of quotes. Otherwise prints the guides
in order; "*" expands to all of them.

Topics: %s

Examples:
  quotes topic splits      how prices before a split are adjusted
  quotes topic cache       cache keys, expiry and the offline mode

`, strings.Join(docs.List(), ", "))
}

func (c *docCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "l", false, "list the topic names, one per line")
}

func (c *docCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.list {
		for _, t := range docs.List() {
			fmt.Fprintln(stdout, t)
		}
		return subcommands.ExitSuccess
	}
	topics := f.Args()
	if len(topics) == 0 {
		topics = []string{docs.Index}
	}
	doc, err := docs.Topics(topics...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(doc)
	return subcommands.ExitSuccess
}
