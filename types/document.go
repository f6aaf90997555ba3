package types

// LayerTypeGroup is the host's type name for a layer group.
const LayerTypeGroup = "layerSection"

// Layer is one node of a document layer tree as reported by the host.
type Layer struct {
	ID      int     `json:"id"`
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Visible bool    `json:"visible"`
	Bounds  Bounds  `json:"bounds"`
	Layers  []Layer `json:"layers,omitempty"`
}

// IsGroup reports whether the layer is a group.
func (l *Layer) IsGroup() bool {
	return l.Type == LayerTypeGroup
}

// DocumentInfo is the subset of the host's document description that the
// export pipeline consumes. Unknown fields are preserved in Raw.
type DocumentInfo struct {
	ID     int     `json:"id"`
	File   string  `json:"file,omitempty"`
	Bounds Bounds  `json:"bounds"`
	Layers []Layer `json:"layers,omitempty"`
	// Raw is the undecoded document description.
	Raw map[string]any `json:"-"`
}

// Width is the document width in pixels.
func (d *DocumentInfo) Width() int { return d.Bounds.Width() }

// Height is the document height in pixels.
func (d *DocumentInfo) Height() int { return d.Bounds.Height() }

// FindLayer searches the layer tree depth-first for id.
// Returns nil when the id is not present.
func (d *DocumentInfo) FindLayer(id int) *Layer {
	return findLayer(d.Layers, id)
}

func findLayer(layers []Layer, id int) *Layer {
	for i := range layers {
		if layers[i].ID == id {
			return &layers[i]
		}
		if found := findLayer(layers[i].Layers, id); found != nil {
			return found
		}
	}
	return nil
}
