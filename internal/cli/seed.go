package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
)

// SeedCmd returns the seed command.
func SeedCmd(a *app) *Command {
	def := beacon.DefaultSeedOptions()

	flags := flag.NewFlagSet("seed", flag.ContinueOnError)
	entries := flags.IntP("entries", "n", def.Entries, "Number of headers and events")
	perFile := flags.Int("per-file", def.EntriesPerFile, "Headers and events per shard")
	statuses := flags.Int("statuses", def.Statuses, "Number of statuses")
	statusPerFile := flags.Int("status-per-file", def.StatusPerFile, "Statuses per shard")
	seed := flags.Uint64("seed", def.Seed, "Random seed")
	plain := flags.Bool("plain", false, "Write uncompressed shards")

	return &Command{
		Flags: flags,
		Usage: "seed <run> [flags]",
		Short: "Write a synthetic run into the data directory",
		Long: "Generate a deterministic synthetic run with sine-wave events.\n" +
			"Existing shards of the same name are replaced atomically.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) == 0 {
				return ErrRunRequired
			}

			if len(args) > 1 {
				return fmt.Errorf("%w: seed <run>", ErrTooManyArgs)
			}

			id, err := parseRun(args[0])
			if err != nil {
				return err
			}

			opts := beacon.SeedOptions{
				Entries:        *entries,
				EntriesPerFile: *perFile,
				Statuses:       *statuses,
				StatusPerFile:  *statusPerFile,
				Gzip:           !*plain,
				Seed:           *seed,
			}

			err = beacon.SeedRun(a.fsys, a.cfg.DataDirAbs, id, opts)
			if err != nil {
				return err
			}

			a.log.WithField("run", id).Debug("seeded run")

			io.Printf("seeded %s: %d entries, %d statuses\n", beacon.RunDir(a.cfg.DataDirAbs, id), opts.Entries, opts.Statuses)

			return nil
		},
	}
}
