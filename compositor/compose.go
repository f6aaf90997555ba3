package compositor

import (
	"fmt"
	"math"

	"github.com/justapithecus/pixport/types"
)

// argbOffset maps a target channel (R, G, B, A) to its byte within an
// ARGB pixel.
var argbOffset = [4]int{
	types.ChannelRed:   1,
	types.ChannelGreen: 2,
	types.ChannelBlue:  3,
	types.ChannelAlpha: 0,
}

// sourceOffset is the byte read from a source pixmap. Per-channel exports
// arrive as grayscale stored in red.
const sourceOffset = 1

// Compose builds a target's w*h ARGB buffer from document-sized sources
// keyed by layer id.
//
// A locked target without alpha is a copy of its single source. Otherwise
// each channel takes the red byte of its source; unassigned colour
// channels are 0 and an unassigned alpha channel is 255.
func Compose(t types.ExportTarget, sources map[int]*types.Pixmap, w, h int) ([]byte, error) {
	size := w * h * types.BytesPerPixel

	var src [4][]byte
	for ch, id := range t.Channels {
		if id < 0 {
			continue
		}
		p, ok := sources[id]
		if !ok {
			return nil, fmt.Errorf("no pixmap for layer %d", id)
		}
		if p.Width != w || p.Height != h || !p.Packed() {
			return nil, fmt.Errorf("pixmap for layer %d is %dx%d (row bytes %d), want packed %dx%d",
				id, p.Width, p.Height, p.RowBytes, w, h)
		}
		src[ch] = p.Pixels[:size]
	}

	if t.ChannelsLocked && !t.HasAlpha() {
		out := make([]byte, size)
		copy(out, src[types.ChannelRed])
		return out, nil
	}

	out := make([]byte, size)
	for ch := range src {
		dst := argbOffset[ch]
		s := src[ch]
		switch {
		case s != nil:
			for i := 0; i < size; i += types.BytesPerPixel {
				out[i+dst] = s[i+sourceOffset]
			}
		case ch == types.ChannelAlpha:
			for i := 0; i < size; i += types.BytesPerPixel {
				out[i+dst] = 0xFF
			}
		}
	}
	return out, nil
}

// Normal-map packing: component = (byte - normalBias) / normalScale.
const (
	normalBias  = 127
	normalScale = 127.5
)

// NormalizeNormals rescales every RGB vector of an ARGB buffer to unit
// length in place. A zero vector becomes the up vector (0, 0, 1). Alpha
// is untouched.
func NormalizeNormals(buf []byte) {
	for i := 0; i+types.BytesPerPixel <= len(buf); i += types.BytesPerPixel {
		x := (float64(buf[i+1]) - normalBias) / normalScale
		y := (float64(buf[i+2]) - normalBias) / normalScale
		z := (float64(buf[i+3]) - normalBias) / normalScale

		mag := math.Sqrt(x*x + y*y + z*z)
		if mag == 0 {
			x, y, z = 0, 0, 1
		} else {
			x, y, z = x/mag, y/mag, z/mag
		}
		buf[i+1] = packNormal(x)
		buf[i+2] = packNormal(y)
		buf[i+3] = packNormal(z)
	}
}

func packNormal(v float64) byte {
	b := math.Trunc(v*normalScale + normalBias)
	switch {
	case b < 0:
		return 0
	case b > 255:
		return 255
	}
	return byte(b)
}
