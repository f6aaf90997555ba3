package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/pixport/adapter"
	"github.com/justapithecus/pixport/adapter/redis"
	"github.com/justapithecus/pixport/adapter/webhook"
	"github.com/justapithecus/pixport/cli/config"
	"github.com/justapithecus/pixport/cli/render"
	"github.com/justapithecus/pixport/encoder"
	"github.com/justapithecus/pixport/export"
	"github.com/justapithecus/pixport/lode"
	"github.com/justapithecus/pixport/types"
)

// ExportCommand returns the export command.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:   "export",
		Usage:  "Composite layers into channel-packed images and encode them",
		Flags:  append(HostFlags(), exportFlags()...),
		Action: exportAction,
	}
}

// ExportRow is the outcome of one target.
type ExportRow struct {
	Path     string `json:"path" yaml:"path"`
	Format   string `json:"format" yaml:"format"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Bytes    int    `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ExportResponse is the output of export.
type ExportResponse struct {
	RunID      string      `json:"run_id" yaml:"run_id"`
	DocumentID int         `json:"document_id" yaml:"document_id"`
	Failures   int         `json:"failures" yaml:"failures"`
	DurationMs int64       `json:"duration_ms" yaml:"duration_ms"`
	Outputs    []ExportRow `json:"outputs" yaml:"outputs"`
}

func exportAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return exit(&usageError{err: err})
	}
	cfg, err := resolveConfig(c)
	if err != nil {
		return exit(err)
	}
	targets, err := loadTargets(c.String("targets"))
	if err != nil {
		return exit(err)
	}
	backend, err := encoder.New(cfg.Encoder.Backend, strings.Fields(cfg.Encoder.Executable), encoder.Options{TGARLE: cfg.Encoder.TGARLE})
	if err != nil {
		return exit(&usageError{err: err})
	}

	labels := sessionLabels{encoder: backend.Name(), storage: cfg.Storage.Backend}
	if labels.storage == "" {
		labels.storage = "file"
	}
	return runSession(c, cfg, r, labels, func(ctx context.Context, cfg *config.Config, s *session, r *render.Renderer) error {
		opts := []export.Option{
			export.WithLogger(s.logger),
			export.WithCollector(s.collector),
			export.WithSessionID(s.host.Meta().SessionID),
		}
		if cfg.Encoder.Parallel > 0 {
			opts = append(opts, export.WithParallel(cfg.Encoder.Parallel))
		}

		sink, err := buildSink(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		if sink != nil {
			defer func() { _ = sink.Close() }()
			opts = append(opts, export.WithSink(sink))
		}
		notifier, err := buildNotifier(cfg.Adapter)
		if err != nil {
			return err
		}
		if notifier != nil {
			defer func() { _ = notifier.Close() }()
			opts = append(opts, export.WithNotifier(notifier))
		}

		doc, err := s.host.GetDocumentInfo(ctx, c.Int("document"), nil)
		if err != nil {
			return err
		}
		res, err := export.New(s.host, backend, opts...).Run(ctx, targets, doc)
		if err != nil {
			return err
		}
		if err := r.Render(exportResponse(res, doc.ID)); err != nil {
			return err
		}
		if res.Failures > 0 {
			return cli.Exit(fmt.Sprintf("%d of %d outputs failed", res.Failures, len(res.Outputs)), exitEncodingFailure)
		}
		return nil
	})
}

func exportResponse(res *export.Result, documentID int) ExportResponse {
	resp := ExportResponse{
		RunID:      res.RunID,
		DocumentID: documentID,
		Failures:   res.Failures,
		DurationMs: res.Duration.Milliseconds(),
		Outputs:    make([]ExportRow, len(res.Outputs)),
	}
	for i, o := range res.Outputs {
		resp.Outputs[i] = ExportRow{
			Path:     o.Target.Path,
			Format:   o.Target.Format,
			Location: o.Location,
			Bytes:    len(o.Encoded),
		}
		if o.Err != nil {
			resp.Outputs[i].Error = o.Err.Error()
		}
	}
	return resp
}

// loadTargets reads a list of export targets. Files ending in .yaml or
// .yml are YAML, anything else JSON.
func loadTargets(path string) ([]types.ExportTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid("read targets: %w", err)
	}
	var targets []types.ExportTarget
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &targets)
	default:
		err = json.Unmarshal(data, &targets)
	}
	if err != nil {
		return nil, invalid("parse targets %s: %w", path, err)
	}
	return targets, nil
}

// buildSink returns nil when no storage backend is configured.
func buildSink(ctx context.Context, sc config.StorageConfig) (*lode.Sink, error) {
	switch sc.Backend {
	case "":
		return nil, nil
	case lode.BackendFS:
		return lode.NewFSSink(sc.Path), nil
	case lode.BackendS3:
		bucket, prefix := lode.ParseS3Path(sc.Path)
		return lode.NewS3Sink(ctx, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       sc.Region,
			Endpoint:     sc.Endpoint,
			UsePathStyle: sc.S3PathStyle,
		})
	default:
		return nil, invalid("unknown storage backend %q (must be fs or s3)", sc.Backend)
	}
}

// buildNotifier returns nil when no adapter is configured.
func buildNotifier(ac config.AdapterConfig) (adapter.Adapter, error) {
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		var retries int
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, invalid("unknown adapter %q (must be webhook or redis)", ac.Type)
	}
}
