package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
)

// parseRun accepts "7" or "run7".
func parseRun(arg string) (int, error) {
	digits := strings.TrimPrefix(arg, "run")

	id, err := strconv.Atoi(digits)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRun, arg)
	}

	return id, nil
}

func parseIndex(arg string) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, arg)
	}

	return i, nil
}

// openRun opens the run named by args[0] with the configured limits.
func (a *app) openRun(args []string) (*beacon.Run, error) {
	if len(args) == 0 {
		return nil, ErrRunRequired
	}

	id, err := parseRun(args[0])
	if err != nil {
		return nil, err
	}

	limits := a.cfg.RunLimits()

	return beacon.OpenRun(id, a.cfg.DataDirAbs, beacon.RunOptions{
		Limits:  &limits,
		FS:      a.fsys,
		Policy:  a.cfg.Policy(),
		Logger:  a.log,
		Metrics: a.metrics,
	})
}

// printRecord prints one field per line. Event waveforms are summarized
// unless samples is set.
func printRecord(o *IO, c beacon.Category, rec any, samples bool) {
	fields, _ := beacon.Fields(c)

	for _, f := range fields {
		if ev, ok := rec.(*beacon.Event); ok && f.Name == "data" && !samples {
			o.Printf("%-25s  %d channels x %d samples\n", f.Name, beacon.MaxBoards*beacon.NumChan, len(ev.Channel(0, 0)))

			continue
		}

		o.Printf("%-25s  %v\n", f.Name, f.Value(rec))
	}
}

func printEntry(o *IO, entry beacon.Entry, samples bool) {
	o.Printf("entry %d\n", entry.Index)
	o.Println()
	o.Println("# header")
	printRecord(o, beacon.CategoryHeader, &entry.Header, false)
	o.Println()
	o.Println("# event")
	printRecord(o, beacon.CategoryEvent, &entry.Event, samples)
}

func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}

	return strings.Join(parts, "\t")
}
