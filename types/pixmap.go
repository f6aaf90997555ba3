package types

import "fmt"

// Bounds is a rectangle in document pixel coordinates.
// Right and Bottom are exclusive.
type Bounds struct {
	Top    int `json:"top" msgpack:"top"`
	Left   int `json:"left" msgpack:"left"`
	Bottom int `json:"bottom" msgpack:"bottom"`
	Right  int `json:"right" msgpack:"right"`
}

// Width returns the horizontal extent.
func (b Bounds) Width() int { return b.Right - b.Left }

// Height returns the vertical extent.
func (b Bounds) Height() int { return b.Bottom - b.Top }

// Empty reports whether the rectangle has no area.
func (b Bounds) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// BytesPerPixel is the size of one ARGB pixel.
const BytesPerPixel = 4

// Pixmap is a raw pixel buffer returned by a pixel acquisition call.
//
// Pixels are row-major ARGB, top to bottom, with RowBytes bytes per row
// (RowBytes >= Width*4). A Pixmap must be treated as immutable once
// constructed: the same value may feed several export targets.
type Pixmap struct {
	Pixels         []byte
	Bounds         Bounds
	Width          int
	Height         int
	RowBytes       int
	Format         uint8
	ColorMode      uint8
	ChannelCount   uint8
	BitsPerChannel uint8
	// ICCProfile is set when the request asked for profile data.
	ICCProfile []byte
}

// Validate checks that the buffer is large enough for the declared geometry.
func (p *Pixmap) Validate() error {
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("negative pixmap dimensions %dx%d", p.Width, p.Height)
	}
	if p.RowBytes < p.Width*BytesPerPixel {
		return fmt.Errorf("row bytes %d smaller than width %d * %d", p.RowBytes, p.Width, BytesPerPixel)
	}
	if need := p.RowBytes * p.Height; len(p.Pixels) < need {
		return fmt.Errorf("pixel buffer has %d bytes, need %d", len(p.Pixels), need)
	}
	return nil
}

// Packed reports whether rows are stored without trailing padding.
func (p *Pixmap) Packed() bool {
	return p.RowBytes == p.Width*BytesPerPixel
}

// Opaque reports whether every pixel has alpha 255.
func (p *Pixmap) Opaque() bool {
	for y := 0; y < p.Height; y++ {
		row := p.Pixels[y*p.RowBytes : y*p.RowBytes+p.Width*BytesPerPixel]
		for x := 0; x < len(row); x += BytesPerPixel {
			if row[x] != 0xFF {
				return false
			}
		}
	}
	return true
}
