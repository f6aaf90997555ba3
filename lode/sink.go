// Package lode stores encoded export outputs through a lode Store.
//
// Outputs land at exports/<run_id>/<basename> on the filesystem or S3
// backend. Each run also commits a manifest snapshot to a JSONL dataset
// partitioned by day and run id, so past runs can be listed and read back.
package lode

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// Backends.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// ExportsPrefix is the key prefix for encoded outputs.
const ExportsPrefix = "exports"

// OutputKey returns the store key for an output of runID.
// Only the base name of filename is used.
func OutputKey(runID, filename string) string {
	return path.Join(ExportsPrefix, runID, path.Base(strings.ReplaceAll(filename, "\\", "/")))
}

// Sink writes encoded outputs and run manifests to a lode store.
// Safe for concurrent use.
type Sink struct {
	backend string
	factory lode.StoreFactory

	storeOnce sync.Once
	store     lode.Store
	storeErr  error

	datasetOnce sync.Once
	dataset     lode.Dataset
	datasetErr  error
}

// NewSink creates a sink over a store factory. The store is created
// lazily on first use; use lode.NewMemoryFactory() in tests.
func NewSink(backend string, factory lode.StoreFactory) *Sink {
	return &Sink{backend: backend, factory: factory}
}

// NewFSSink creates a sink rooted at a local directory.
func NewFSSink(root string) *Sink {
	return NewSink(BackendFS, lode.NewFSFactory(root))
}

// Backend names the storage backend, for metrics labels.
func (s *Sink) Backend() string { return s.backend }

func (s *Sink) getStore() (lode.Store, error) {
	s.storeOnce.Do(func() {
		s.store, s.storeErr = s.factory()
		s.storeErr = wrap("init", "", s.storeErr)
	})
	return s.store, s.storeErr
}

// PutOutput stores one encoded output and returns its key.
func (s *Sink) PutOutput(ctx context.Context, runID, filename string, data []byte) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("put output: empty run id")
	}
	store, err := s.getStore()
	if err != nil {
		return "", err
	}
	key := OutputKey(runID, filename)
	if err := store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", wrap("put", key, err)
	}
	return key, nil
}

// Close releases sink resources. Stores need no explicit close.
func (s *Sink) Close() error {
	return nil
}
