package beacon

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/calvinalkan/beacon-reader/pkg/fs"
)

// EnvDataDir names the environment variable holding the data directory.
const EnvDataDir = "BEACON_DATA_DIR"

// ResolveDataDir picks the data directory: explicit if set, else
// $BEACON_DATA_DIR from env, else cwd.
func ResolveDataDir(explicit string, env map[string]string, cwd string) string {
	if explicit != "" {
		return explicit
	}

	if dir := env[EnvDataDir]; dir != "" {
		return dir
	}

	return cwd
}

// ListRuns returns the run numbers of the "run<N>" directories under base,
// ascending. Returns [ErrNoRuns] if there are none.
func ListRuns(fsys fs.FS, base string) ([]int, error) {
	entries, err := fsys.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var runs []int

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id, ok := parseRunDir(entry.Name())
		if ok {
			runs = append(runs, id)
		}
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRuns, base)
	}

	slices.Sort(runs)

	return runs, nil
}

func parseRunDir(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "run")
	if !ok || digits == "" {
		return 0, false
	}

	id, err := strconv.Atoi(digits)
	if err != nil || id < 0 {
		return 0, false
	}

	return id, true
}
