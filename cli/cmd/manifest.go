package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/render"
	"github.com/justapithecus/pixport/cli/tui"
	"github.com/justapithecus/pixport/lode"
)

// ManifestCommand returns the manifest command. It reads the manifest
// an export run stored and never contacts the host.
func ManifestCommand() *cli.Command {
	return &cli.Command{
		Name:      "manifest",
		Usage:     "Show the stored outputs of an export run",
		ArgsUsage: "<run-id>",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			TUIFlag,
			&cli.StringFlag{
				Name:  "storage-backend",
				Usage: "Storage backend: fs or s3",
			},
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Storage root (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "storage-region",
				Usage: "AWS region for the s3 backend",
			},
			&cli.StringFlag{
				Name:  "storage-endpoint",
				Usage: "Endpoint override for S3-compatible providers",
			},
			&cli.BoolFlag{
				Name:  "storage-path-style",
				Usage: "Use path-style S3 addressing",
			},
		),
		Action: manifestAction,
	}
}

func manifestAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return exit(&usageError{err: err})
	}
	runID := c.Args().First()
	if runID == "" {
		return exit(invalid("a run id is required"))
	}
	cfg, err := resolveConfig(c)
	if err != nil {
		return exit(err)
	}
	if cfg.Storage.Backend == "" {
		return exit(invalid("--storage-backend is required"))
	}
	sink, err := buildSink(c.Context, cfg.Storage)
	if err != nil {
		return exit(err)
	}
	defer func() { _ = sink.Close() }()

	entries, err := sink.ReadManifest(c.Context, runID)
	if errors.Is(err, lode.ErrNoManifest) {
		return cli.Exit(err.Error()+": "+runID, exitHostError)
	}
	if err != nil {
		return exit(err)
	}
	if c.Bool("tui") {
		return exit(r.RenderTUI(tui.ViewManifest, entries))
	}
	return exit(r.Render(entries))
}
