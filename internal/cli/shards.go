package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
	"github.com/calvinalkan/beacon-reader/pkg/shardcache"
)

// ShardsCmd returns the shards command.
func ShardsCmd(a *app) *Command {
	flags := flag.NewFlagSet("shards", flag.ContinueOnError)
	resolve := flags.Bool("resolve", false, "Decode every shard first so all ranges are known")

	return &Command{
		Flags: flags,
		Usage: "shards <run> [category] [flags]",
		Short: "Show the shard table of a run",
		Long: "List every shard file with the global index range it covers.\n" +
			"Ranges of shards not decoded yet are shown as '?' unless --resolve is given.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) > 2 {
				return fmt.Errorf("%w: shards <run> [category]", ErrTooManyArgs)
			}

			categories := beacon.Categories

			if len(args) == 2 {
				c, err := beacon.ParseCategory(args[1])
				if err != nil {
					return err
				}

				categories = []beacon.Category{c}
			}

			run, err := a.openRun(args)
			if err != nil {
				return err
			}

			io.Printf("%-8s %-16s %8s %8s  %s\n", "category", "shard", "first", "last", "state")

			for _, c := range categories {
				if *resolve {
					_, _ = run.Len(c)
				}

				shards, _ := run.Shards(c)
				for _, s := range shards {
					printShard(io, c, s)

					if s.Skipped {
						io.Warn(fmt.Sprintf("%s/%s skipped", c, s.Name),
							"provisional (.tmp) or unreadable shard; its records are not counted")
					}
				}
			}

			return nil
		},
	}
}

func printShard(io *IO, c beacon.Category, s shardcache.ShardInfo) {
	first, last := "?", "?"
	if s.Resolved {
		first, last = fmt.Sprint(s.First), fmt.Sprint(s.Last)
	}

	state := "-"

	switch {
	case s.Skipped:
		state = "skipped"
	case s.Resident:
		state = "resident"
	}

	io.Printf("%-8s %-16s %8s %8s  %s\n", c, s.Name, first, last, state)
}
