package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/beacon-reader/internal/cli"
)

func Test_Invalid_Global_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--invalid-flag", "runs")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")

	// Should show valid global options
	cli.AssertContains(t, stderr, "Global flags:")
	cli.AssertContains(t, stderr, "--cwd")
	cli.AssertContains(t, stderr, "--config")
	cli.AssertContains(t, stderr, "--data-dir")
	cli.AssertContains(t, stderr, "--metrics-file")
}

func Test_Empty_Data_Dir_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--data-dir=", "runs")

	cli.AssertContains(t, stderr, "data-dir cannot be empty")
	cli.AssertContains(t, stderr, "Global flags:")
}

func Test_Bare_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	// Call Run directly without test helper (which adds --cwd)
	var stdout, stderr bytes.Buffer

	exitCode := cli.Run(nil, &stdout, &stderr, []string{"beacon"}, nil, nil)

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stderr.String(), ""; got != want {
		t.Errorf("stderr=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stdout.String(), "beacon - random access to BEACON run data")
	cli.AssertContains(t, stdout.String(), "show <run> <category> <index>")
	cli.AssertContains(t, stdout.String(), "$BEACON_DATA_DIR")
}

func Test_Main_Help_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		args []string
	}{
		{name: "long flag", args: []string{"--help"}},
		{name: "short flag", args: []string{"-h"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			stdout, stderr, exitCode := c.Run(tt.args...)

			if got, want := exitCode, 0; got != want {
				t.Errorf("exitCode=%d, want=%d", got, want)
			}

			if got, want := stderr, ""; got != want {
				t.Errorf("stderr=%q, want=%q", got, want)
			}

			cli.AssertContains(t, stdout, "Commands:")
			cli.AssertContains(t, stdout, "scan <run> <attr[:attr...]>")
			cli.AssertContains(t, stdout, "browse <run>")
		})
	}
}

func Test_No_Command_With_Flags_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--log-level", "debug")

	cli.AssertContains(t, stderr, "no command provided")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Unknown_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("frobnicate")

	cli.AssertContains(t, stderr, "unknown command: frobnicate")
}

func Test_Invalid_Command_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("scan", "--invalid-flag")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	// Should show command usage on stdout
	cli.AssertContains(t, stdout, "Usage: beacon scan <run> <attr[:attr...]> [flags]")
	cli.AssertContains(t, stdout, "Flags:")

	cli.AssertContains(t, stderr, "error:")
	cli.AssertContains(t, stderr, "--invalid-flag")
}

func Test_Command_Help_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("shards", "--help")

	cli.AssertContains(t, stdout, "Usage: beacon shards <run> [category] [flags]")
	cli.AssertContains(t, stdout, "--resolve")
}

func Test_Invalid_Log_Level_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--log-level", "chatty", "runs")

	cli.AssertContains(t, stderr, "invalid log level")
}

func Test_Metrics_File_Is_Written_When_Flag_Is_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Seed(1)

	c.MustRun("--metrics-file", "metrics.prom", "show", "1", "header", "7")

	content, err := os.ReadFile(filepath.Join(c.Dir, "metrics.prom"))
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}

	cli.AssertContains(t, string(content), `beacon_shardcache_loads_total{cache="header"} 2`)
	cli.AssertContains(t, string(content), `beacon_shardcache_resident_shards{cache="header"} 2`)
}

func Test_Debug_Logging_Goes_To_Stderr_When_Enabled(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Seed(1)

	_, stderr, exitCode := c.Run("--log-level", "debug", "show", "1", "status", "0")

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d (stderr=%s)", got, want, stderr)
	}

	cli.AssertContains(t, stderr, "level=debug")
	cli.AssertContains(t, stderr, "cache=status")
}
