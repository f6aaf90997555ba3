package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/render"
	"github.com/justapithecus/pixport/scripts"
	"github.com/justapithecus/pixport/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version   string `json:"version"`
	Recording string `json:"recording_version"`
	Scripts   string `json:"scripts_checksum"`
	Commit    string `json:"commit"`
}

// VersionCommand returns the version command. It must not contact the host.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		return r.Render(VersionResponse{
			Version:   types.Version,
			Recording: types.RecordingVersion,
			Scripts:   scripts.Checksum(),
			Commit:    commit,
		})
	}
}
