// Package compositor implements the pixel algorithms of channel-composited
// export: target validation and normalization, padding repair of fetched
// pixmaps, per-channel composition and normal-map renormalization.
//
// All functions are pure. Buffers are document-sized row-major ARGB with
// no row padding unless stated otherwise.
package compositor

import (
	"fmt"

	"github.com/justapithecus/pixport/types"
)

var supportedFormats = map[string]bool{
	types.FormatTGA:  true,
	types.FormatPNG:  true,
	types.FormatJPG:  true,
	types.FormatTIFF: true,
	types.FormatBMP:  true,
	types.FormatGIF:  true,
}

// SupportedFormat reports whether format (after alias folding) can be encoded.
func SupportedFormat(format string) bool {
	return supportedFormats[types.NormalizedFormat(format)]
}

// ValidScale reports whether scale is one of types.Scales. Zero means the
// default and is valid.
func ValidScale(scale float64) bool {
	if scale == 0 {
		return true
	}
	for _, s := range types.Scales {
		if s == scale {
			return true
		}
	}
	return false
}

// Validate checks targets against the document. Targets are checked as
// Normalize leaves them, so a locked target only references its red and
// alpha layers. Every distinct referenced layer must exist and be a
// visible, non-empty group. The first problem found is returned as a
// *ValidationError.
func Validate(targets []types.ExportTarget, doc *types.DocumentInfo) error {
	if len(targets) == 0 {
		return &ValidationError{Kind: ValidationEmptyTargets, Target: -1, LayerID: -1, Msg: "no export targets"}
	}
	if doc == nil || doc.Bounds.Empty() {
		return &ValidationError{Kind: ValidationNoDocument, Target: -1, LayerID: -1, Msg: "document has no area"}
	}

	normalized := make([]types.ExportTarget, len(targets))
	for i := range targets {
		normalized[i] = Normalize(targets[i])
	}

	for i := range targets {
		t := &targets[i]
		if len(normalized[i].LayerIDs()) == 0 {
			return &ValidationError{Kind: ValidationNoChannels, Target: i, LayerID: -1, Msg: "no channel is assigned a layer"}
		}
		if !ValidScale(t.Scale) {
			return &ValidationError{
				Kind: ValidationBadScale, Target: i, LayerID: -1,
				Msg: fmt.Sprintf("scale %g is not one of %v", t.Scale, types.Scales),
			}
		}
		if t.Format != "" && !SupportedFormat(t.Format) {
			return &ValidationError{
				Kind: ValidationBadFormat, Target: i, LayerID: -1,
				Msg: fmt.Sprintf("unsupported format %q", t.Format),
			}
		}
	}

	for _, id := range SourceLayers(normalized) {
		layer := doc.FindLayer(id)
		switch {
		case layer == nil:
			return &ValidationError{Kind: ValidationMissingLayer, Target: -1, LayerID: id, Msg: "layer not found in document"}
		case !layer.IsGroup():
			return &ValidationError{
				Kind: ValidationNotGroup, Target: -1, LayerID: id,
				Msg: fmt.Sprintf("layer %q is a %s, not a group", layer.Name, layer.Type),
			}
		case !layer.Visible:
			return &ValidationError{
				Kind: ValidationHiddenGroup, Target: -1, LayerID: id,
				Msg: fmt.Sprintf("group %q is hidden", layer.Name),
			}
		case len(layer.Layers) == 0:
			return &ValidationError{
				Kind: ValidationEmptyGroup, Target: -1, LayerID: id,
				Msg: fmt.Sprintf("group %q is empty", layer.Name),
			}
		}
	}
	return nil
}

// SourceLayers returns the distinct layer ids referenced by targets in
// order of first reference.
func SourceLayers(targets []types.ExportTarget) []int {
	var ids []int
	seen := make(map[int]struct{})
	for i := range targets {
		for _, id := range targets[i].LayerIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Normalize applies defaults and channel locking. A locked target reads
// G and B from R; an unlocked target whose R, G and B already agree
// becomes locked.
func Normalize(t types.ExportTarget) types.ExportTarget {
	if t.Format == "" {
		t.Format = types.DefaultFormat
	}
	t.Format = types.NormalizedFormat(t.Format)
	if t.Scale == 0 {
		t.Scale = 1
	}
	r := t.Channels[types.ChannelRed]
	if t.ChannelsLocked {
		t.Channels[types.ChannelGreen] = r
		t.Channels[types.ChannelBlue] = r
	} else if t.Channels[types.ChannelGreen] == r && t.Channels[types.ChannelBlue] == r {
		t.ChannelsLocked = true
	}
	return t
}
