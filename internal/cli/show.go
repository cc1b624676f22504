package cli

import (
	"context"
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
)

// ShowCmd returns the show command.
func ShowCmd(a *app) *Command {
	flags := flag.NewFlagSet("show", flag.ContinueOnError)
	samples := flags.Bool("samples", false, "Print event waveform samples")

	return &Command{
		Flags: flags,
		Usage: "show <run> <category> <index>",
		Short: "Show one header, status or event",
		Long: "Print every field of record <index> of <category> (header, status or event).\n" +
			"Negative indexes and indexes past the end are errors.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("%w: show <run> <category> <index>", ErrArgsRequired)
			}

			c, err := beacon.ParseCategory(args[1])
			if err != nil {
				return err
			}

			i, err := parseIndex(args[2])
			if err != nil {
				return err
			}

			run, err := a.openRun(args)
			if err != nil {
				return err
			}

			rec, err := run.Record(c, i)
			if err != nil {
				return fmt.Errorf("%s %d: %w", c, i, err)
			}

			printRecord(io, c, rec, *samples)

			return nil
		},
		NegativeArgs: true,
	}
}

// EntryCmd returns the entry command.
func EntryCmd(a *app) *Command {
	flags := flag.NewFlagSet("entry", flag.ContinueOnError)
	samples := flags.Bool("samples", false, "Print event waveform samples")

	return &Command{
		Flags: flags,
		Usage: "entry <run> <index>",
		Short: "Show the header and event of one trigger",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: entry <run> <index>", ErrArgsRequired)
			}

			i, err := parseIndex(args[1])
			if err != nil {
				return err
			}

			run, err := a.openRun(args)
			if err != nil {
				return err
			}

			entry, err := run.Entry(i)
			if err != nil {
				return err
			}

			printEntry(io, entry, *samples)

			return nil
		},
		NegativeArgs: true,
	}
}

// EventCmd returns the event command.
func EventCmd(a *app) *Command {
	flags := flag.NewFlagSet("event", flag.ContinueOnError)
	samples := flags.Bool("samples", false, "Print event waveform samples")

	return &Command{
		Flags: flags,
		Usage: "event <run> <event-number>",
		Short: "Find a trigger by event number",
		Long:  "Scan the headers for <event-number> and show the matching header and event.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: event <run> <event-number>", ErrArgsRequired)
			}

			number, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %q", ErrInvalidIndex, args[1])
			}

			run, err := a.openRun(args)
			if err != nil {
				return err
			}

			entry, err := run.FindEvent(number)
			if err != nil {
				return err
			}

			printEntry(io, entry, *samples)

			return nil
		},
	}
}
