package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/render"
	"github.com/justapithecus/pixport/ipc"
	"github.com/justapithecus/pixport/protocol"
)

// summaryLimit caps the text shown per replayed message.
const summaryLimit = 80

// ReplayCommand returns the replay command. It reads a recording made
// with --record and never contacts the host.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Print the messages of a session recording",
		ArgsUsage: "<recording>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Only show one direction: in or out",
			},
		),
		Action: replayAction,
	}
}

// ReplayRow is one decoded recorded payload.
type ReplayRow struct {
	Seq     int64  `json:"seq"`
	Time    string `json:"time"`
	Dir     string `json:"dir"`
	ID      uint32 `json:"id"`
	Type    string `json:"type"`
	Bytes   int    `json:"bytes"`
	Summary string `json:"summary"`
}

func replayAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return exit(&usageError{err: err})
	}
	path := c.Args().First()
	if path == "" {
		return exit(invalid("a recording path is required"))
	}
	dir := ipc.Direction(c.String("dir"))
	if dir != "" && dir != ipc.DirectionIn && dir != ipc.DirectionOut {
		return exit(invalid("invalid --dir %q (must be in or out)", dir))
	}

	f, err := os.Open(path)
	if err != nil {
		return exit(invalid("open recording: %w", err))
	}
	defer func() { _ = f.Close() }()

	rows, err := readRecording(f, dir)
	if err != nil {
		return exit(err)
	}
	return exit(r.Render(rows))
}

// readRecording decodes every record, keeping only dir when set.
func readRecording(src io.Reader, dir ipc.Direction) ([]ReplayRow, error) {
	rr := ipc.NewRecordReader(src)
	rows := []ReplayRow{}
	for {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if dir != "" && rec.Direction != dir {
			continue
		}
		rows = append(rows, replayRow(rec))
	}
}

func replayRow(rec *ipc.Record) ReplayRow {
	row := ReplayRow{Seq: rec.Seq, Time: rec.Ts, Dir: string(rec.Direction), Bytes: len(rec.Payload)}
	msg, _, err := protocol.Decode(rec.Payload)
	if err != nil {
		row.Type = "invalid"
		row.Summary = err.Error()
		return row
	}
	row.ID = msg.MessageID()
	switch m := msg.(type) {
	case *protocol.ScriptResult:
		row.Type = protocol.TypeScriptResult.String()
		row.Summary = truncate(m.Text)
	case *protocol.HostEvent:
		row.Type = "event"
		row.Summary = m.Name + ": " + truncate(m.Text)
	case *protocol.PixelBuffer:
		row.Type = protocol.TypePixelBuffer.String()
		row.Summary = fmt.Sprintf("%d pixel bytes", len(m.Data))
	case *protocol.ColorProfile:
		row.Type = protocol.TypeColorProfile.String()
		row.Summary = fmt.Sprintf("%d profile bytes", len(m.Data))
	case *protocol.ErrorMessage:
		row.Type = protocol.TypeError.String()
		row.Summary = truncate(m.Text)
	case *protocol.KeepAlive:
		row.Type = protocol.TypeKeepAlive.String()
	}
	return row
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= summaryLimit {
		return s
	}
	return s[:summaryLimit-3] + "..."
}
