// Package main provides the pixport CLI entrypoint.
//
// Usage:
//
//	pixport <command> [options]
//
// Exit codes of host-facing commands:
//   - 0: success
//   - 1: host or script error
//   - 2: transport error
//   - 3: validation error (bad flags, config or targets)
//   - 4: encoding failure (any export output failed)
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/cmd"
	"github.com/justapithecus/pixport/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// exitFunc is replaced in tests.
var exitFunc = os.Exit

func newApp() *cli.App {
	return &cli.App{
		Name:           "pixport",
		Usage:          "Talk to a running image editor and export channel-packed layers",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.EvalCommand(),
			cmd.InfoCommand(),
			cmd.DocumentsCommand(),
			cmd.PixmapCommand(),
			cmd.ShapeCommand(),
			cmd.ExportCommand(),
			cmd.SubscribeCommand(),
			cmd.ReplayCommand(),
			cmd.ManifestCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit and prints the message.
func exitErrHandler(_ *cli.Context, err error) {
	handleExit(os.Stderr, err)
}

func handleExit(stderr io.Writer, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() is "exit status N"; don't print those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(stderr, msg)
		}
		exitFunc(code)
		return
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	exitFunc(1)
}
