package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	// The FlagSet name is not used - command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "beacon" in help.
	// Includes the command name and arguments/flags.
	// Examples: "show <run> <category> <index>", "scan <run> <attrs> [flags]"
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// NegativeArgs passes positionals like "-1" through to Exec instead
	// of parsing them as shorthand flags. Only for commands whose flags
	// take no value.
	NegativeArgs bool

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-34s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "beacon <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: beacon", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command. Returns exit code.
// Handles error printing internally for consistent output ordering.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	if c.NegativeArgs {
		args = shieldNegative(args)
	}

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	rest := c.Flags.Args()
	if c.NegativeArgs {
		rest = unshieldNegative(rest)
	}

	err = c.Exec(ctx, o, rest)
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}

// negativeMark hides a leading '-' from the flag parser.
const negativeMark = "\x00"

func shieldNegative(args []string) []string {
	out := make([]string, len(args))

	for i, a := range args {
		if isNegativeNumber(a) {
			a = negativeMark + a
		}

		out[i] = a
	}

	return out
}

func unshieldNegative(args []string) []string {
	out := make([]string, len(args))

	for i, a := range args {
		out[i] = strings.TrimPrefix(a, negativeMark)
	}

	return out
}

func isNegativeNumber(s string) bool {
	if len(s) < 2 || s[0] != '-' {
		return false
	}

	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
