package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
)

// ScanCmd returns the scan command.
func ScanCmd(a *app) *Command {
	flags := flag.NewFlagSet("scan", flag.ContinueOnError)
	offset := flags.Int("offset", 0, "First entry to print")
	limit := flags.IntP("limit", "n", 0, "Maximum number of entries (0 = all)")

	return &Command{
		Flags: flags,
		Usage: "scan <run> <attr[:attr...]> [flags]",
		Short: "Print attributes of consecutive entries",
		Long: "Print the named attributes of every entry as tab-separated columns.\n" +
			"A bare name is looked up in status, then header, then event fields;\n" +
			"use category.name to pick one, e.g. header.readout_time:trigger_thresholds.\n" +
			"Entries are zipped by index across categories, so the scan stops at the\n" +
			"shortest category involved.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: scan <run> <attr[:attr...]>", ErrArgsRequired)
			}

			run, err := a.openRun(args)
			if err != nil {
				return err
			}

			attrs := beacon.SplitAttrs(args[1])
			for _, attr := range attrs {
				_, err = beacon.LookupField(attr)
				if err != nil {
					return err
				}
			}

			io.Println("entry\t" + strings.Join(attrs, "\t"))

			var ctxErr error

			err = run.Scan(attrs, *offset, *limit, func(entry int, values []any) bool {
				if ctxErr = ctx.Err(); ctxErr != nil {
					return false
				}

				io.Printf("%d\t%s\n", entry, formatValues(values))

				return true
			})
			if err != nil {
				return err
			}

			return ctxErr
		},
	}
}
