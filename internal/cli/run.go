package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/internal/config"
	"github.com/calvinalkan/beacon-reader/pkg/fs"
	"github.com/calvinalkan/beacon-reader/pkg/shardcache"
)

// app is the state shared by all commands. It is filled in after the
// global flags and config are resolved, before any command runs.
type app struct {
	cfg     config.Config
	fsys    fs.FS
	log     *logrus.Logger
	metrics *shardcache.Metrics
	env     map[string]string
}

func commands(a *app) []*Command {
	return []*Command{
		RunsCmd(a),
		InfoCmd(a),
		SizesCmd(),
		ShowCmd(a),
		EntryCmd(a),
		EventCmd(a),
		ScanCmd(a),
		ShardsCmd(a),
		ManifestCmd(a),
		ExportCmd(a),
		SeedCmd(a),
		BrowseCmd(a),
		PrintConfigCmd(a),
	}
}

type globalFlags struct {
	set         *flag.FlagSet
	workDir     string
	configPath  string
	dataDir     string
	logLevel    string
	metricsFile string
	help        bool
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{set: flag.NewFlagSet("beacon", flag.ContinueOnError)}

	g.set.SetInterspersed(false)
	g.set.SetOutput(&strings.Builder{})
	g.set.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	g.set.StringVarP(&g.configPath, "config", "c", "", "Use specified config `file`")
	g.set.StringVarP(&g.dataDir, "data-dir", "d", "", "Directory holding the run<N> directories")
	g.set.StringVar(&g.logLevel, "log-level", "", "Log `level`: error, warn, info, debug, trace")
	g.set.StringVar(&g.metricsFile, "metrics-file", "", "Write cache metrics to `file` on exit (Prometheus text format)")
	g.set.BoolVarP(&g.help, "help", "h", false, "Show help")

	return g
}

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. A signal on it cancels the running command.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	a := &app{env: env}
	cmds := commands(a)
	globals := newGlobalFlags()

	if len(args) < 2 {
		printUsage(out, globals, cmds)

		return 0
	}

	err := globals.set.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globals, cmds)

		return 1
	}

	if globals.help {
		printUsage(out, globals, cmds)

		return 0
	}

	if globals.set.Changed("data-dir") && globals.dataDir == "" {
		fprintln(errOut, "error:", ErrEmptyDataDir)
		fprintln(errOut)
		printUsage(errOut, globals, cmds)

		return 1
	}

	rest := globals.set.Args()
	if len(rest) == 0 {
		fprintln(errOut, "error:", ErrNoCommand)
		fprintln(errOut)
		printUsage(errOut, globals, cmds)

		return 1
	}

	var cmd *Command

	for _, c := range cmds {
		if c.Name() == rest[0] {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, rest[0]))
		fprintln(errOut)
		printUsage(errOut, globals, cmds)

		return 1
	}

	workDir := globals.workDir
	if workDir != "" && !filepath.IsAbs(workDir) {
		workDir, err = filepath.Abs(workDir)
		if err != nil {
			fprintln(errOut, "error:", err)

			return 1
		}
	}

	cfg, err := config.LoadConfig(config.LoadConfigInput{
		WorkDirOverride:  workDir,
		ConfigPath:       globals.configPath,
		DataDirOverride:  globals.dataDir,
		LogLevelOverride: globals.logLevel,
		Env:              env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a.cfg = cfg
	a.fsys = fs.NewReal()
	a.log = newLogger(errOut, cfg.Level())

	if globals.metricsFile != "" {
		a.metrics = shardcache.NewMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	code := cmd.Run(ctx, NewIO(stdin, out, errOut), rest[1:])

	if a.metrics != nil {
		path := globals.metricsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.EffectiveCwd, path)
		}

		err = a.metrics.WriteTextfile(path)
		if err != nil {
			fprintln(errOut, "error: write metrics:", err)

			return 1
		}
	}

	return code
}

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	return log
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *globalFlags, cmds []*Command) {
	fprintln(w, `beacon - random access to BEACON run data

Usage: beacon [global flags] <command> [args]

Global flags:`)

	var buf strings.Builder
	globals.set.SetOutput(&buf)
	globals.set.PrintDefaults()
	globals.set.SetOutput(&strings.Builder{})

	_, _ = io.WriteString(w, buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range cmds {
		fprintln(w, c.HelpLine())
	}

	fprintln(w)
	fprintln(w, "The data directory is taken from --data-dir, the config file, $BEACON_DATA_DIR")
	fprintln(w, "or the working directory, in that order.")
}
