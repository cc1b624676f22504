package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
)

// ManifestCmd returns the manifest command.
func ManifestCmd(a *app) *Command {
	flags := flag.NewFlagSet("manifest", flag.ContinueOnError)
	output := flags.StringP("output", "o", "", "Write canonical JSON to `file` instead of stdout")
	digestOnly := flags.Bool("digest", false, "Print only the sha256 digest")

	return &Command{
		Flags: flags,
		Usage: "manifest <run> [flags]",
		Short: "Print the shard layout of a run with its digest",
		Long: "Index every category and print which shard covers which index range.\n" +
			"The digest is the sha256 of the RFC 8785 canonical JSON, so two runs with\n" +
			"the same digest have identical shard layouts.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("%w: manifest <run>", ErrTooManyArgs)
			}

			run, err := a.openRun(args)
			if err != nil {
				return err
			}

			m, err := beacon.BuildManifest(run)
			if err != nil {
				return err
			}

			digest, err := m.Digest()
			if err != nil {
				return err
			}

			switch {
			case *digestOnly:
				io.Println("sha256:" + digest)
			case *output != "":
				canonical, err := m.Canonical()
				if err != nil {
					return err
				}

				path := *output
				if !filepath.IsAbs(path) {
					path = filepath.Join(a.cfg.EffectiveCwd, path)
				}

				err = a.fsys.WriteFileAtomic(path, bytes.NewReader(canonical))
				if err != nil {
					return fmt.Errorf("write manifest: %w", err)
				}

				io.Println("sha256:" + digest)
			default:
				pretty, err := json.MarshalIndent(m, "", "  ")
				if err != nil {
					return err
				}

				io.Println(string(pretty))
				io.Println("sha256:" + digest)
			}

			return nil
		},
	}
}
