// Package views holds the payloads commands render. The same values feed
// json, yaml and table output and the --tui views, so no view has data
// the others lack.
package views

import (
	"github.com/justapithecus/pixport/lode"
	"github.com/justapithecus/pixport/types"
)

// LayerRow is one line of a document's layer listing.
type LayerRow struct {
	ID      int    `json:"id"`
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Visible bool   `json:"visible"`
	Depth   int    `json:"depth"`
}

// InfoResponse is the output of info.
type InfoResponse struct {
	ID     int        `json:"id" yaml:"id"`
	File   string     `json:"file" yaml:"file"`
	Width  int        `json:"width" yaml:"width"`
	Height int        `json:"height" yaml:"height"`
	Layers []LayerRow `json:"layers" yaml:"layers"`
}

// NewInfoResponse summarizes doc with its layer tree flattened
// depth-first.
func NewInfoResponse(doc *types.DocumentInfo) InfoResponse {
	return InfoResponse{
		ID:     doc.ID,
		File:   doc.File,
		Width:  doc.Width(),
		Height: doc.Height(),
		Layers: FlattenLayers(doc.Layers, 0, nil),
	}
}

// FlattenLayers lists a layer tree depth-first.
func FlattenLayers(layers []types.Layer, depth int, out []LayerRow) []LayerRow {
	for _, l := range layers {
		out = append(out, LayerRow{ID: l.ID, Index: l.Index, Name: l.Name, Type: l.Type, Visible: l.Visible, Depth: depth})
		out = FlattenLayers(l.Layers, depth+1, out)
	}
	return out
}

// EventRow is one received host event.
type EventRow struct {
	Time  string `json:"time" yaml:"time"`
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// ManifestTotals counts the outcomes recorded in a run manifest.
type ManifestTotals struct {
	Outputs int
	Stored  int
	Failed  int
	Bytes   int64
}

// Totals counts entries.
func Totals(entries []lode.ManifestEntry) ManifestTotals {
	var t ManifestTotals
	for _, e := range entries {
		t.Outputs++
		if e.Error != "" {
			t.Failed++
			continue
		}
		t.Stored++
		t.Bytes += e.Bytes
	}
	return t
}
