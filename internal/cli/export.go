package cli

import (
	"context"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/internal/export"
	"github.com/calvinalkan/beacon-reader/pkg/beacon"
)

// ExportCmd returns the export command.
func ExportCmd(a *app) *Command {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	waveforms := flags.Bool("waveforms", false, "Also export event waveforms as BLOBs")
	categories := flags.StringSlice("category", nil, "Export only these categories (repeatable)")

	return &Command{
		Flags: flags,
		Usage: "export <run> <out.db> [flags]",
		Short: "Copy a run into a SQLite database",
		Long: "Write one table per category (header, status, event) with an entry column\n" +
			"and one column per field. Array fields are stored as JSON text.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: export <run> <out.db>", ErrArgsRequired)
			}

			var selected []beacon.Category

			for _, name := range *categories {
				c, err := beacon.ParseCategory(name)
				if err != nil {
					return err
				}

				selected = append(selected, c)
			}

			run, err := a.openRun(args)
			if err != nil {
				return err
			}

			out := args[1]
			if !filepath.IsAbs(out) {
				out = filepath.Join(a.cfg.EffectiveCwd, out)
			}

			summary, err := export.Run(ctx, run, out, export.Options{
				Categories: selected,
				Waveforms:  *waveforms,
				Logger:     a.log,
			})
			if err != nil {
				return err
			}

			for _, c := range beacon.Categories {
				if n, ok := summary.Rows[c]; ok {
					io.Printf("%s\t%d rows\n", c, n)
				}
			}

			if *waveforms {
				io.Printf("waveform\t%d rows\n", summary.Waveforms)
			}

			return nil
		},
	}
}
