package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/config"
	"github.com/justapithecus/pixport/cli/render"
	"github.com/justapithecus/pixport/cli/tui"
	"github.com/justapithecus/pixport/cli/views"
	"github.com/justapithecus/pixport/host"
)

// EvalCommand returns the eval command.
func EvalCommand() *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Usage:     "Evaluate a script in the host application",
		ArgsUsage: "<script>",
		Flags: append(HostFlags(),
			&cli.StringFlag{
				Name:  "file",
				Usage: "Read the script from a file instead of the argument",
			},
			&cli.StringFlag{
				Name:  "params",
				Usage: "JSON value bound to the script's params global",
			},
		),
		Action: evalAction,
	}
}

// EvalResponse is the output of eval.
type EvalResponse struct {
	Value any `json:"value" yaml:"value"`
}

func evalAction(c *cli.Context) error {
	script := c.Args().First()
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return exit(invalid("read script: %w", err))
		}
		script = string(data)
	}
	if script == "" {
		return exit(invalid("a script argument or --file is required"))
	}
	var params any
	if raw := c.String("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return exit(invalid("invalid --params JSON: %w", err))
		}
	}

	return withSession(c, sessionLabels{}, func(ctx context.Context, _ *config.Config, s *session, r *render.Renderer) error {
		v, err := s.host.EvalScript(ctx, script, params)
		if err != nil {
			return err
		}
		return r.Render(EvalResponse{Value: v})
	})
}

// InfoCommand returns the info command.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Describe a document and its layers",
		Flags: append(HostFlags(),
			documentFlag,
			TUIFlag,
			&cli.BoolFlag{
				Name:  "expand-smart-objects",
				Usage: "Describe the layers inside smart objects",
			},
			&cli.BoolFlag{
				Name:  "selected",
				Usage: "Only describe selected layers",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Print the host's full reply",
			},
		),
		Action: infoAction,
	}
}

func infoAction(c *cli.Context) error {
	flags := host.DefaultDocumentInfoFlags()
	flags.ExpandSmartObjects = c.Bool("expand-smart-objects")
	flags.SelectedLayers = c.Bool("selected")

	return withSession(c, sessionLabels{}, func(ctx context.Context, _ *config.Config, s *session, r *render.Renderer) error {
		doc, err := s.host.GetDocumentInfo(ctx, c.Int("document"), &flags)
		if err != nil {
			return err
		}
		if c.Bool("raw") {
			return r.Render(doc.Raw)
		}
		resp := views.NewInfoResponse(doc)
		if c.Bool("tui") {
			return r.RenderTUI(tui.ViewInfo, resp)
		}
		if r.Format() == render.FormatTable {
			return r.Render(resp.Layers)
		}
		return r.Render(resp)
	})
}

// DocumentsCommand returns the documents command.
func DocumentsCommand() *cli.Command {
	return &cli.Command{
		Name:   "documents",
		Usage:  "List open documents",
		Flags:  HostFlags(),
		Action: documentsAction,
	}
}

// DocumentRow describes one open document.
type DocumentRow struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

func documentsAction(c *cli.Context) error {
	return withSession(c, sessionLabels{}, func(ctx context.Context, _ *config.Config, s *session, r *render.Renderer) error {
		ids, err := s.host.GetOpenDocumentIDs(ctx)
		if err != nil {
			return err
		}
		rows := make([]DocumentRow, 0, len(ids))
		for _, id := range ids {
			path, err := s.host.GetDocumentPath(ctx, id)
			if err != nil {
				return err
			}
			rows = append(rows, DocumentRow{ID: id, Path: path})
		}
		return r.Render(rows)
	})
}
