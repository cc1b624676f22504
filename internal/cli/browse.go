package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
	"github.com/calvinalkan/beacon-reader/pkg/shardcache"
)

// scanPage is the number of rows printed before "scan" asks to continue.
const scanPage = 25

// BrowseCmd returns the browse command.
func BrowseCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("browse", flag.ContinueOnError),
		Usage: "browse <run>",
		Short: "Explore a run interactively",
		Long: "Open a run and read commands from the terminal (or stdin when it is not a\n" +
			"terminal). Type 'help' in the prompt for the command list.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("%w: browse <run>", ErrTooManyArgs)
			}

			run, err := a.openRun(args)
			if err != nil {
				return err
			}

			b := &browser{app: a, run: run, io: o}

			return b.loop(ctx)
		},
	}
}

// browser is the interactive command loop over one run.
type browser struct {
	app *app
	run *beacon.Run
	io  *IO

	// readLine returns the next input line; io.EOF ends the session.
	readLine func(prompt string) (string, error)
}

var errQuit = errors.New("quit")

func (b *browser) loop(ctx context.Context) error {
	if f, ok := b.io.In().(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		state := liner.NewLiner()
		defer state.Close()

		state.SetCtrlCAborts(true)
		state.SetCompleter(b.completer)
		b.loadHistory(state)

		defer b.saveHistory(state)

		b.readLine = func(prompt string) (string, error) {
			line, err := state.Prompt(prompt)
			if errors.Is(err, liner.ErrPromptAborted) {
				return "", io.EOF
			}

			if err == nil && strings.TrimSpace(line) != "" {
				state.AppendHistory(line)
			}

			return line, err
		}
	} else {
		in := b.io.In()
		if in == nil {
			in = strings.NewReader("")
		}

		scanner := bufio.NewScanner(in)
		b.readLine = func(string) (string, error) {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return "", err
				}

				return "", io.EOF
			}

			return scanner.Text(), nil
		}
	}

	b.io.Printf("%s: %d entries, %d statuses. Type 'help' for commands.\n",
		b.run, b.run.Headers.Len(), b.run.Statuses.Len())

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := b.readLine("beacon> ")
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		err = b.exec(strings.ToLower(fields[0]), fields[1:])
		if errors.Is(err, errQuit) {
			return nil
		}

		if err != nil {
			b.io.Println("error:", err)
		}
	}
}

func (b *browser) exec(cmd string, args []string) error {
	switch cmd {
	case "exit", "quit", "q":
		return errQuit
	case "help", "?":
		b.printHelp()

		return nil
	case "len", "count":
		return b.cmdLen(args)
	case "show":
		return b.cmdShow(args)
	case "entry":
		return b.cmdEntry(args)
	case "event":
		return b.cmdEvent(args)
	case "scan":
		return b.cmdScan(args)
	case "shards":
		return b.cmdShards(args)
	case "stats":
		return b.cmdStats()
	case "limit":
		return b.cmdLimit(args)
	case "fields":
		return b.cmdFields(args)
	default:
		return fmt.Errorf("%w: %s (type 'help' for commands)", ErrUnknownCommand, cmd)
	}
}

var browseCommands = []string{
	"len", "show", "entry", "event", "scan", "shards",
	"stats", "limit", "fields", "help", "exit", "quit", "q",
}

func (b *browser) completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range browseCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (b *browser) printHelp() {
	b.io.Println("Commands:")
	b.io.Println("  len [category]                   Record count (all categories if omitted)")
	b.io.Println("  show <category> <index>          Print one record")
	b.io.Println("  entry <index>                    Print header and event of one trigger")
	b.io.Println("  event <event-number>             Find a trigger by event number")
	b.io.Println("  scan <attr[:attr...]> [offset]   Print attributes, 25 entries per page")
	b.io.Println("  shards [category]                Show the shard table")
	b.io.Println("  stats                            Show cache counters")
	b.io.Println("  limit <category> <n>             Change a residency limit (0 = unlimited)")
	b.io.Println("  fields [category]                List attribute names")
	b.io.Println("  help                             Show this help")
	b.io.Println("  exit / quit / q                  Exit")
}

func (b *browser) cmdLen(args []string) error {
	categories := beacon.Categories

	if len(args) > 0 {
		c, err := beacon.ParseCategory(args[0])
		if err != nil {
			return err
		}

		categories = []beacon.Category{c}
	}

	for _, c := range categories {
		n, _ := b.run.Len(c)
		b.io.Printf("%s\t%d\n", c, n)
	}

	return nil
}

func (b *browser) cmdShow(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: show <category> <index>", ErrArgsRequired)
	}

	c, err := beacon.ParseCategory(args[0])
	if err != nil {
		return err
	}

	i, err := parseIndex(args[1])
	if err != nil {
		return err
	}

	rec, err := b.run.Record(c, i)
	if err != nil {
		return err
	}

	printRecord(b.io, c, rec, false)

	return nil
}

func (b *browser) cmdEntry(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: entry <index>", ErrArgsRequired)
	}

	i, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	entry, err := b.run.Entry(i)
	if err != nil {
		return err
	}

	printEntry(b.io, entry, false)

	return nil
}

func (b *browser) cmdEvent(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: event <event-number>", ErrArgsRequired)
	}

	number, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidIndex, args[0])
	}

	entry, err := b.run.FindEvent(number)
	if err != nil {
		return err
	}

	printEntry(b.io, entry, false)

	return nil
}

// cmdScan prints pages of scanPage entries, asking before each further
// page. Anything but "q" continues.
func (b *browser) cmdScan(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: scan <attr[:attr...]> [offset]", ErrArgsRequired)
	}

	attrs := beacon.SplitAttrs(args[0])

	offset := 0
	if len(args) == 2 {
		var err error

		offset, err = parseIndex(args[1])
		if err != nil {
			return err
		}
	}

	b.io.Println("entry\t" + strings.Join(attrs, "\t"))

	for {
		printed := 0

		err := b.run.Scan(attrs, offset, scanPage, func(entry int, values []any) bool {
			b.io.Printf("%d\t%s\n", entry, formatValues(values))
			printed++

			return true
		})
		if err != nil {
			return err
		}

		if printed < scanPage {
			return nil
		}

		offset += printed

		answer, err := b.readLine("-- more (q to quit) -- ")
		if errors.Is(err, io.EOF) || strings.TrimSpace(strings.ToLower(answer)) == "q" {
			return nil
		}

		if err != nil {
			return err
		}
	}
}

func (b *browser) cmdShards(args []string) error {
	categories := beacon.Categories

	if len(args) > 0 {
		c, err := beacon.ParseCategory(args[0])
		if err != nil {
			return err
		}

		categories = []beacon.Category{c}
	}

	for _, c := range categories {
		shards, _ := b.run.Shards(c)
		for _, s := range shards {
			printShard(b.io, c, s)
		}
	}

	return nil
}

func (b *browser) cmdStats() error {
	b.io.Printf("%-8s %6s %6s %9s %8s %6s %8s\n", "category", "loads", "hits", "evictions", "failures", "tails", "records")

	for _, c := range beacon.Categories {
		s, _ := b.run.Stats(c)
		b.io.Printf("%-8s %6d %6d %9d %8d %6d %8d\n",
			c, s.Loads, s.Hits, s.Evictions, s.OpenFailures, s.MalformedTails, s.Records)
	}

	return nil
}

func (b *browser) cmdLimit(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: limit <category> <n>", ErrArgsRequired)
	}

	c, err := beacon.ParseCategory(args[0])
	if err != nil {
		return err
	}

	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: %q", shardcache.ErrInvalidLimit, args[1])
	}

	switch c {
	case beacon.CategoryHeader:
		err = b.run.Headers.SetResidencyLimit(n)
	case beacon.CategoryStatus:
		err = b.run.Statuses.SetResidencyLimit(n)
	case beacon.CategoryEvent:
		err = b.run.Events.SetResidencyLimit(n)
	}

	if err != nil {
		return err
	}

	b.io.Printf("%s limit = %d\n", c, n)

	return nil
}

func (b *browser) cmdFields(args []string) error {
	categories := beacon.Categories

	if len(args) > 0 {
		c, err := beacon.ParseCategory(args[0])
		if err != nil {
			return err
		}

		categories = []beacon.Category{c}
	}

	for _, c := range categories {
		fields, _ := beacon.Fields(c)
		for _, f := range fields {
			b.io.Println(f.QualifiedName())
		}
	}

	return nil
}

func (b *browser) historyPath() string {
	home := b.app.env["HOME"]
	if home == "" {
		return ""
	}

	return filepath.Join(home, ".beacon_history")
}

func (b *browser) loadHistory(state *liner.State) {
	path := b.historyPath()
	if path == "" {
		return
	}

	f, err := b.app.fsys.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = state.ReadHistory(f)
}

func (b *browser) saveHistory(state *liner.State) {
	path := b.historyPath()
	if path == "" {
		return
	}

	var buf bytes.Buffer

	_, err := state.WriteHistory(&buf)
	if err != nil {
		return
	}

	err = b.app.fsys.WriteFileAtomic(path, &buf)
	if err != nil {
		b.app.log.WithError(err).Debug("save history")
	}
}
