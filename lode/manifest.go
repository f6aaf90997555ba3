package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"
)

// DatasetID is the lode dataset holding run manifests.
const DatasetID = "pixport"

// ErrNoManifest is returned when no manifest exists for a run.
var ErrNoManifest = errors.New("no manifest found")

// ManifestEntry records one output of an export run.
type ManifestEntry struct {
	RunID      string `json:"run_id"`
	DocumentID int    `json:"document_id"`
	Path       string `json:"path"`
	Format     string `json:"format"`
	// Key is the store key, empty when the output failed.
	Key   string `json:"key,omitempty"`
	Bytes int64  `json:"bytes"`
	Error string `json:"error,omitempty"`
}

// DeriveDay returns the UTC partition day for t.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (s *Sink) getDataset() (lode.Dataset, error) {
	s.datasetOnce.Do(func() {
		s.dataset, s.datasetErr = lode.NewDataset(
			lode.DatasetID(DatasetID),
			s.factory,
			lode.WithHiveLayout("day", "run_id"),
			lode.WithCodec(lode.NewJSONLCodec()),
		)
		s.datasetErr = wrap("init", DatasetID, s.datasetErr)
	})
	return s.dataset, s.datasetErr
}

// WriteManifest commits one snapshot holding every entry of a run.
func (s *Sink) WriteManifest(ctx context.Context, runID string, completedAt time.Time, entries []ManifestEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ds, err := s.getDataset()
	if err != nil {
		return err
	}

	day := DeriveDay(completedAt)
	records := make([]any, 0, len(entries))
	for _, e := range entries {
		records = append(records, map[string]any{
			"day":          day,
			"run_id":       runID,
			"document_id":  e.DocumentID,
			"path":         e.Path,
			"format":       e.Format,
			"key":          e.Key,
			"bytes":        e.Bytes,
			"error":        e.Error,
			"completed_at": completedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	if _, err := ds.Write(ctx, records, lode.Metadata{}); err != nil {
		return wrap("manifest", runID, err)
	}
	return nil
}

// ReadManifest returns the most recent manifest committed for runID.
func (s *Sink) ReadManifest(ctx context.Context, runID string) ([]ManifestEntry, error) {
	ds, err := s.getDataset()
	if err != nil {
		return nil, err
	}
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, wrap("read", DatasetID+"/snapshots", err)
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotHasRun(snap, runID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, wrap("read", fmt.Sprintf("%s/snapshot/%s", DatasetID, snap.ID), err)
		}
		var entries []ManifestEntry
		for _, item := range data {
			rec, ok := item.(map[string]any)
			if !ok || str(rec["run_id"]) != runID {
				continue
			}
			entries = append(entries, ManifestEntry{
				RunID:      runID,
				DocumentID: int(num(rec["document_id"])),
				Path:       str(rec["path"]),
				Format:     str(rec["format"]),
				Key:        str(rec["key"]),
				Bytes:      num(rec["bytes"]),
				Error:      str(rec["error"]),
			})
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}
	return nil, ErrNoManifest
}

// snapshotHasRun matches an exact run_id=<id> path segment so that
// run-1 does not match run-10.
func snapshotHasRun(snap *lode.DatasetSnapshot, runID string) bool {
	if snap == nil || snap.Manifest == nil {
		return false
	}
	segment := "run_id=" + runID
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if part == segment {
				return true
			}
		}
	}
	return false
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
