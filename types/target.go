package types

import "strings"

// Channel indexes into ExportTarget.Channels.
const (
	ChannelRed   = 0
	ChannelGreen = 1
	ChannelBlue  = 2
	ChannelAlpha = 3
)

// NoLayer marks an unassigned channel.
const NoLayer = -1

// Output formats understood by the encoders.
const (
	FormatTGA  = "tga"
	FormatPNG  = "png"
	FormatJPG  = "jpg"
	FormatTIFF = "tif"
	FormatBMP  = "bmp"
	FormatGIF  = "gif"
)

// DefaultFormat is applied when a target names none.
const DefaultFormat = FormatTGA

// Scales lists the permitted output scale factors.
var Scales = []float64{2, 1, 0.5, 0.25, 0.125}

// Filters are the post-composition image filters.
type Filters struct {
	Blur    bool `json:"blur,omitempty" yaml:"blur,omitempty"`
	Sharpen bool `json:"sharpen,omitempty" yaml:"sharpen,omitempty"`
	Invert  bool `json:"invert,omitempty" yaml:"invert,omitempty"`
}

// NormalOptions configure normal-map handling.
type NormalOptions struct {
	Normalize bool `json:"normalize,omitempty" yaml:"normalize,omitempty"`
	FlipX     bool `json:"flipX,omitempty" yaml:"flipX,omitempty"`
	FlipY     bool `json:"flipY,omitempty" yaml:"flipY,omitempty"`
	FlipZ     bool `json:"flipZ,omitempty" yaml:"flipZ,omitempty"`
}

// ExportTarget describes one output image and which layer feeds each of
// its R, G, B and A channels. Targets are JSON-serializable so they can be
// persisted as document metadata.
type ExportTarget struct {
	Path           string        `json:"path" yaml:"path"`
	Format         string        `json:"format,omitempty" yaml:"format,omitempty"`
	Channels       [4]int        `json:"channels" yaml:"channels"`
	ChannelsLocked bool          `json:"channelsLocked,omitempty" yaml:"channelsLocked,omitempty"`
	Scale          float64       `json:"scale,omitempty" yaml:"scale,omitempty"`
	Filters        Filters       `json:"filters,omitempty" yaml:"filters,omitempty"`
	Normal         NormalOptions `json:"normal,omitempty" yaml:"normal,omitempty"`
}

// HasAlpha reports whether the alpha channel is assigned.
func (t *ExportTarget) HasAlpha() bool {
	return t.Channels[ChannelAlpha] >= 0
}

// LayerIDs returns the distinct layer ids referenced by the target in
// channel order.
func (t *ExportTarget) LayerIDs() []int {
	var ids []int
	seen := make(map[int]struct{}, 4)
	for _, id := range t.Channels {
		if id < 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// NormalizedFormat returns the lowercased format with aliases folded.
func NormalizedFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	switch f {
	case "jpeg":
		return FormatJPG
	case "tiff":
		return FormatTIFF
	}
	return f
}

// ExportOutput is one per-target result of an export run. Pixels is the
// composited document-sized ARGB buffer; Err is set when composing,
// encoding or storing the output failed.
type ExportOutput struct {
	Target   ExportTarget  `json:"target"`
	Document *DocumentInfo `json:"-"`
	Pixels   []byte        `json:"-"`
	// Encoded holds the encoded image when the run produced in-memory output.
	Encoded []byte `json:"-"`
	// Location is where the encoded image ended up (file path or store key).
	Location string `json:"location,omitempty"`
	Err      error  `json:"-"`
}
