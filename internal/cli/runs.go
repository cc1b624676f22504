package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
)

// RunsCmd returns the runs command.
func RunsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("runs", flag.ContinueOnError),
		Usage: "runs",
		Short: "List the runs in the data directory",
		Long:  "List the run numbers of every run<N> directory in the data directory, ascending.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: runs takes no arguments", ErrTooManyArgs)
			}

			runs, err := beacon.ListRuns(a.fsys, a.cfg.DataDirAbs)
			if err != nil {
				return err
			}

			for _, id := range runs {
				io.Println(id)
			}

			return nil
		},
	}
}

// InfoCmd returns the info command.
func InfoCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("info", flag.ContinueOnError),
		Usage: "info <run>",
		Short: "Show record counts and cache settings of a run",
		Long: "Show the record count, shard count and residency limit of every category.\n" +
			"Counting decodes each shard once; shards are evicted again as limits require.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execInfo(a, io, args)
		},
	}
}

func execInfo(a *app, io *IO, args []string) error {
	run, err := a.openRun(args)
	if err != nil {
		return err
	}

	io.Printf("run       %d\n", run.ID)
	io.Printf("dir       %s\n", run.Dir)
	io.Printf("eviction  %s\n", a.cfg.Policy())
	io.Println()
	io.Printf("%-8s %8s %7s %6s\n", "category", "records", "shards", "limit")

	for _, c := range beacon.Categories {
		n, _ := run.Len(c)
		shards, _ := run.Shards(c)
		stats, _ := run.Stats(c)

		limit := "-"
		if l := cacheLimit(run, c); l > 0 {
			limit = fmt.Sprint(l)
		}

		io.Printf("%-8s %8d %7d %6s\n", c, n, len(shards), limit)

		if stats.OpenFailures > 0 {
			io.Warn(fmt.Sprintf("%s: %d shard(s) could not be opened", c, stats.OpenFailures),
				"run 'beacon shards "+fmt.Sprint(run.ID)+" "+string(c)+"' to list them")
		}
	}

	return nil
}

func cacheLimit(run *beacon.Run, c beacon.Category) int {
	switch c {
	case beacon.CategoryHeader:
		return run.Headers.ResidencyLimit()
	case beacon.CategoryStatus:
		return run.Statuses.ResidencyLimit()
	case beacon.CategoryEvent:
		return run.Events.ResidencyLimit()
	default:
		return 0
	}
}

// SizesCmd returns the sizes command.
func SizesCmd() *Command {
	flags := flag.NewFlagSet("sizes", flag.ContinueOnError)
	human := flags.BoolP("human", "H", false, "Print sizes with IEC units")

	return &Command{
		Flags: flags,
		Usage: "sizes [flags]",
		Short: "Print the in-memory size of each record type",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			if *human {
				io.Println(beacon.StructSizesHuman())
			} else {
				io.Println(beacon.StructSizes())
			}

			return nil
		},
	}
}
