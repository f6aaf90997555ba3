// Package export runs channel-compositing exports end to end.
//
// A run validates every target against the document before touching the
// host, fetches each referenced layer exactly once and strictly in order,
// repairs and composes the pixmaps, then encodes the targets in parallel.
// An encoding or storage failure fails only its own output.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/pixport/adapter"
	"github.com/justapithecus/pixport/compositor"
	"github.com/justapithecus/pixport/encoder"
	"github.com/justapithecus/pixport/host"
	"github.com/justapithecus/pixport/lode"
	"github.com/justapithecus/pixport/log"
	"github.com/justapithecus/pixport/metrics"
	"github.com/justapithecus/pixport/types"
)

// DefaultParallel is the number of outputs encoded at once.
const DefaultParallel = 4

// Source fetches layer pixmaps. *host.Host satisfies it.
type Source interface {
	GetPixmap(ctx context.Context, documentID int, layer host.LayerSpec, settings host.PixmapSettings) (*host.PixmapResult, error)
}

// Sink stores encoded outputs. *lode.Sink satisfies it.
type Sink interface {
	PutOutput(ctx context.Context, runID, filename string, data []byte) (string, error)
	WriteManifest(ctx context.Context, runID string, completedAt time.Time, entries []lode.ManifestEntry) error
}

// Pipeline runs exports against one host session.
type Pipeline struct {
	source    Source
	backend   encoder.Backend
	sink      Sink
	notifier  adapter.Adapter
	logger    *log.Logger
	collector *metrics.Collector
	settings  host.PixmapSettings
	parallel  int
	sessionID string
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSink stores outputs in s instead of writing them to their paths.
func WithSink(s Sink) Option { return func(p *Pipeline) { p.sink = s } }

// WithNotifier publishes an ExportCompletedEvent after each run.
func WithNotifier(a adapter.Adapter) Option { return func(p *Pipeline) { p.notifier = a } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithCollector records pipeline metrics.
func WithCollector(c *metrics.Collector) Option { return func(p *Pipeline) { p.collector = c } }

// WithPixmapSettings overrides the settings used for every fetch.
// BoundsOnly is ignored.
func WithPixmapSettings(s host.PixmapSettings) Option {
	return func(p *Pipeline) {
		s.BoundsOnly = false
		p.settings = s
	}
}

// WithParallel bounds concurrent encodes. Values below 1 mean 1.
func WithParallel(n int) Option {
	return func(p *Pipeline) { p.parallel = max(n, 1) }
}

// WithSessionID tags notifications with the host session.
func WithSessionID(id string) Option { return func(p *Pipeline) { p.sessionID = id } }

// New creates a pipeline fetching from source and encoding with backend.
func New(source Source, backend encoder.Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		backend:  backend,
		logger:   log.Nop(),
		parallel: DefaultParallel,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the outcome of a run that got past validation and fetching.
type Result struct {
	RunID    string
	Outputs  []*types.ExportOutput
	Failures int
	Duration time.Duration
	// NotifyErr is set when the completion event could not be published.
	NotifyErr error
	// ManifestErr is set when the run manifest could not be stored.
	ManifestErr error
}

// Err joins the per-output errors, nil when every output succeeded.
func (r *Result) Err() error {
	var errs []error
	for _, o := range r.Outputs {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Run exports targets from doc. A validation or fetch failure fails the
// whole run before anything is encoded; per-output failures are recorded
// on the returned outputs.
func (p *Pipeline) Run(ctx context.Context, targets []types.ExportTarget, doc *types.DocumentInfo) (*Result, error) {
	normalized := make([]types.ExportTarget, len(targets))
	for i, t := range targets {
		normalized[i] = compositor.Normalize(t)
	}
	if err := compositor.Validate(normalized, doc); err != nil {
		return nil, err
	}
	start := p.now()
	runID := uuid.New().String()
	fields := map[string]any{"run_id": runID, "document_id": doc.ID, "targets": len(targets)}
	p.logger.Info("export started", fields)

	sources, err := p.fetch(ctx, doc, compositor.SourceLayers(normalized))
	if err != nil {
		p.logger.Error("export fetch failed", map[string]any{"run_id": runID, "error": err.Error()})
		return nil, err
	}

	outputs := make([]*types.ExportOutput, len(normalized))
	for i, t := range normalized {
		out := &types.ExportOutput{Target: t, Document: doc}
		out.Pixels, out.Err = compositor.Compose(t, sources, doc.Width(), doc.Height())
		if out.Err == nil && t.Normal.Normalize {
			compositor.NormalizeNormals(out.Pixels)
		}
		outputs[i] = out
	}

	p.encodeAll(ctx, runID, outputs, doc)

	res := &Result{RunID: runID, Outputs: outputs, Duration: p.now().Sub(start)}
	for _, o := range outputs {
		if o.Err != nil {
			res.Failures++
		}
	}

	completedAt := p.now()
	if p.sink != nil {
		res.ManifestErr = p.sink.WriteManifest(ctx, runID, completedAt, manifest(runID, doc.ID, outputs))
		if res.ManifestErr != nil {
			p.logger.Warn("manifest write failed", map[string]any{"run_id": runID, "error": res.ManifestErr.Error()})
		}
	}
	if p.notifier != nil {
		res.NotifyErr = p.notifier.Publish(ctx, p.event(res, doc.ID, completedAt))
		if res.NotifyErr != nil {
			p.logger.Warn("export notification failed", map[string]any{"run_id": runID, "error": res.NotifyErr.Error()})
		}
	}

	p.logger.Info("export finished", map[string]any{
		"run_id":      runID,
		"outputs":     len(outputs),
		"failures":    res.Failures,
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res, nil
}

// fetch retrieves and repairs one pixmap per layer id. Requests are issued
// one at a time: the host cannot attribute interleaved pixel responses.
func (p *Pipeline) fetch(ctx context.Context, doc *types.DocumentInfo, ids []int) (map[int]*types.Pixmap, error) {
	sources := make(map[int]*types.Pixmap, len(ids))
	for _, id := range ids {
		res, err := p.source.GetPixmap(ctx, doc.ID, host.LayerID(id), p.settings)
		if err != nil {
			return nil, fmt.Errorf("fetch layer %d: %w", id, err)
		}
		if res.Pixmap == nil {
			return nil, fmt.Errorf("fetch layer %d: %w", id, &host.UnexpectedResponseError{Msg: "no pixel data"})
		}
		pm := res.Pixmap
		if compositor.NeedsRepair(pm, doc.Bounds) {
			pm = compositor.Repair(pm, doc.Bounds)
			p.collector.IncPixmapsRepaired()
			p.logger.Debug("pixmap repaired", map[string]any{"layer_id": id, "width": res.Pixmap.Width, "height": res.Pixmap.Height})
		}
		sources[id] = pm
	}
	return sources, nil
}

func (p *Pipeline) encodeAll(ctx context.Context, runID string, outputs []*types.ExportOutput, doc *types.DocumentInfo) {
	sem := make(chan struct{}, p.parallel)
	var wg sync.WaitGroup
	for _, out := range outputs {
		if out.Err != nil {
			p.collector.IncOutputsFailed()
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			p.encode(ctx, runID, out, doc)
		}()
	}
	wg.Wait()
}

func (p *Pipeline) encode(ctx context.Context, runID string, out *types.ExportOutput, doc *types.DocumentInfo) {
	img := encoder.Image{Pixels: out.Pixels, Width: doc.Width(), Height: doc.Height()}
	defer func() { out.Pixels = nil }()
	fields := map[string]any{"run_id": runID, "path": out.Target.Path, "backend": p.backend.Name()}

	if p.sink == nil {
		out.Err = encoder.ToFile(ctx, p.backend, img, out.Target, out.Target.Path)
		if out.Err == nil {
			out.Location = out.Target.Path
		}
	} else {
		out.Encoded, out.Err = encoder.ToBuffer(ctx, p.backend, img, out.Target)
		if out.Err == nil {
			out.Location, out.Err = p.sink.PutOutput(ctx, runID, filepath.Base(out.Target.Path), out.Encoded)
			if out.Err != nil {
				p.collector.IncSinkWriteFailure()
			} else {
				p.collector.IncSinkWriteSuccess()
			}
		}
	}

	if out.Err != nil {
		p.collector.IncOutputsFailed()
		fields["error"] = out.Err.Error()
		p.logger.Error("output failed", fields)
		return
	}
	p.collector.IncOutputsEncoded()
	fields["location"] = out.Location
	p.logger.Info("output written", fields)
}

func manifest(runID string, documentID int, outputs []*types.ExportOutput) []lode.ManifestEntry {
	entries := make([]lode.ManifestEntry, len(outputs))
	for i, o := range outputs {
		entries[i] = lode.ManifestEntry{
			RunID:      runID,
			DocumentID: documentID,
			Path:       o.Target.Path,
			Format:     o.Target.Format,
			Key:        o.Location,
			Bytes:      int64(len(o.Encoded)),
		}
		if o.Err != nil {
			entries[i].Key = ""
			entries[i].Error = o.Err.Error()
		}
	}
	return entries
}

func (p *Pipeline) event(res *Result, documentID int, at time.Time) *adapter.ExportCompletedEvent {
	results := make([]adapter.OutputResult, len(res.Outputs))
	for i, o := range res.Outputs {
		results[i] = adapter.OutputResult{
			Path:     o.Target.Path,
			Format:   o.Target.Format,
			Location: o.Location,
			Bytes:    int64(len(o.Encoded)),
		}
		if o.Err != nil {
			results[i].Error = o.Err.Error()
		}
	}
	return &adapter.ExportCompletedEvent{
		EventType:  adapter.EventTypeExportCompleted,
		RunID:      res.RunID,
		SessionID:  p.sessionID,
		DocumentID: documentID,
		Outcome:    adapter.Outcome(len(res.Outputs), res.Failures),
		Outputs:    results,
		Failures:   res.Failures,
		Timestamp:  at.UTC().Format(time.RFC3339),
		DurationMs: res.Duration.Milliseconds(),
	}
}
