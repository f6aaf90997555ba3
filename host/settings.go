package host

import "github.com/justapithecus/pixport/types"

// Pixmap request defaults.
const (
	DefaultPixmapScale  = 1.0
	DefaultMaxDimension = 10000
)

// PixmapSettings enumerates every option of a pixel acquisition call.
// The zero value requests a full-resolution pixmap with the defaults
// below applied.
type PixmapSettings struct {
	// Scale applies to both axes. Zero means DefaultPixmapScale.
	Scale float64
	// MaxDimension caps the longer output side. Zero means DefaultMaxDimension.
	MaxDimension int
	// BoundsOnly skips the pixel data; only bounds are returned.
	BoundsOnly bool
	// ClipToDocumentBounds crops the pixmap to the canvas.
	ClipToDocumentBounds bool
	// IncludeAncestorMasks applies masks of enclosing groups.
	IncludeAncestorMasks bool
	// ConvertToWorkingRGBProfile converts pixels to the working RGB space.
	ConvertToWorkingRGBProfile bool
	// UseICCProfile names a profile to convert to. Empty keeps the document's.
	UseICCProfile string
	// GetICCProfileData requests the ICC profile as an extra response part.
	GetICCProfileData bool
	AllowDither            bool
	UseColorSettingsDither bool
	UseSmartScaling        bool
	// InterpolationType is a host interpolation id; empty uses the host default.
	InterpolationType string
	// CompID or CompIndex select a layer comp. At most one should be set.
	CompID    *int
	CompIndex *int
	// InputRect and OutputRect request a sub-rectangle and its placement.
	InputRect  *types.Bounds
	OutputRect *types.Bounds
}

func (s PixmapSettings) withDefaults() PixmapSettings {
	if s.Scale == 0 {
		s.Scale = DefaultPixmapScale
	}
	if s.MaxDimension == 0 {
		s.MaxDimension = DefaultMaxDimension
	}
	return s
}

// expect returns the parts a request with these settings produces.
func (s PixmapSettings) expect() Expect {
	return Expect{Result: true, Pixels: !s.BoundsOnly, Profile: s.GetICCProfileData}
}

type pixmapParams struct {
	DocumentID                 int           `json:"documentId"`
	LayerSpec                  any           `json:"layerSpec"`
	ScaleX                     float64       `json:"scaleX"`
	ScaleY                     float64       `json:"scaleY"`
	MaxDimension               int           `json:"maxDimension"`
	BoundsOnly                 bool          `json:"boundsOnly"`
	ClipToDocumentBounds       bool          `json:"clipToDocumentBounds"`
	IncludeAncestorMasks       bool          `json:"includeAncestorMasks"`
	ConvertToWorkingRGBProfile bool          `json:"convertToWorkingRGBProfile"`
	UseICCProfile              string        `json:"useICCProfile,omitempty"`
	GetICCProfileData          bool          `json:"getICCProfileData"`
	AllowDither                bool          `json:"allowDither"`
	UseColorSettingsDither     bool          `json:"useColorSettingsDither"`
	UseSmartScaling            bool          `json:"useSmartScaling"`
	InterpolationType          string        `json:"interpolationType,omitempty"`
	CompID                     *int          `json:"compId,omitempty"`
	CompIndex                  *int          `json:"compIndex,omitempty"`
	InputRect                  *types.Bounds `json:"inputRect,omitempty"`
	OutputRect                 *types.Bounds `json:"outputRect,omitempty"`
}

func (s PixmapSettings) params(documentID int, layer LayerSpec) pixmapParams {
	return pixmapParams{
		DocumentID:                 documentID,
		LayerSpec:                  layer.params(),
		ScaleX:                     s.Scale,
		ScaleY:                     s.Scale,
		MaxDimension:               s.MaxDimension,
		BoundsOnly:                 s.BoundsOnly,
		ClipToDocumentBounds:       s.ClipToDocumentBounds,
		IncludeAncestorMasks:       s.IncludeAncestorMasks,
		ConvertToWorkingRGBProfile: s.ConvertToWorkingRGBProfile,
		UseICCProfile:              s.UseICCProfile,
		GetICCProfileData:          s.GetICCProfileData,
		AllowDither:                s.AllowDither,
		UseColorSettingsDither:     s.UseColorSettingsDither,
		UseSmartScaling:            s.UseSmartScaling,
		InterpolationType:          s.InterpolationType,
		CompID:                     s.CompID,
		CompIndex:                  s.CompIndex,
		InputRect:                  s.InputRect,
		OutputRect:                 s.OutputRect,
	}
}

// LayerRange selects layers by index, with an explicit list of indexes
// to treat as hidden.
type LayerRange struct {
	FirstLayerIndex int   `json:"firstLayerIndex"`
	LastLayerIndex  int   `json:"lastLayerIndex"`
	Hidden          []int `json:"hidden"`
}

// LayerSpec selects the layers a pixmap is rendered from: a single layer
// id or an index range.
type LayerSpec struct {
	id    int
	rng   *LayerRange
	isRng bool
}

// LayerID selects a single layer (or group) by id.
func LayerID(id int) LayerSpec {
	return LayerSpec{id: id}
}

// LayerIndexRange selects layers first..last by index.
func LayerIndexRange(r LayerRange) LayerSpec {
	if r.Hidden == nil {
		r.Hidden = []int{}
	}
	return LayerSpec{rng: &r, isRng: true}
}

// ID returns the layer id and true for single-layer specs.
func (l LayerSpec) ID() (int, bool) {
	return l.id, !l.isRng
}

func (l LayerSpec) params() any {
	if l.isRng {
		return l.rng
	}
	return map[string]int{"layerId": l.id}
}

// DocumentInfoFlags enumerates the options of a document description
// request. Use DefaultDocumentInfoFlags for the documented defaults.
type DocumentInfoFlags struct {
	CompInfo             bool `json:"compInfo"`
	ImageInfo            bool `json:"imageInfo"`
	LayerInfo            bool `json:"layerInfo"`
	ExpandSmartObjects   bool `json:"expandSmartObjects"`
	GetTextStyles        bool `json:"getTextStyles"`
	GetFullTextStyles    bool `json:"getFullTextStyles"`
	SelectedLayers       bool `json:"selectedLayers"`
	GetCompLayerSettings bool `json:"getCompLayerSettings"`
	GetDefaultLayerFX    bool `json:"getDefaultLayerFX"`
	GetPathData          bool `json:"getPathData"`
}

// DefaultDocumentInfoFlags returns the defaults: comp, image and layer
// info, text styles and comp layer settings.
func DefaultDocumentInfoFlags() DocumentInfoFlags {
	return DocumentInfoFlags{
		CompInfo:             true,
		ImageInfo:            true,
		LayerInfo:            true,
		GetTextStyles:        true,
		GetCompLayerSettings: true,
	}
}
