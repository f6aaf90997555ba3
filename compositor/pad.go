package compositor

import "github.com/justapithecus/pixport/types"

// NeedsRepair reports whether p must be padded before composition: its
// size differs from the document, a pixel is not opaque, or rows carry
// padding.
func NeedsRepair(p *types.Pixmap, doc types.Bounds) bool {
	return p.Width != doc.Width() || p.Height != doc.Height() || !p.Packed() || !p.Opaque()
}

// Repair returns a new document-sized pixmap with p placed at its bounds
// offset. Opaque pixels are copied as is; partially transparent pixels are
// interpolated over the (black) background and become opaque; fully
// transparent pixels stay zero. Pixels outside the document are dropped.
// p is not modified.
func Repair(p *types.Pixmap, doc types.Bounds) *types.Pixmap {
	w, h := doc.Width(), doc.Height()
	stride := w * types.BytesPerPixel
	out := make([]byte, stride*h)

	ox := p.Bounds.Left - doc.Left
	oy := p.Bounds.Top - doc.Top

	// Horizontal span of p that lands inside the document.
	x0, x1 := 0, p.Width
	if ox < 0 {
		x0 = -ox
	}
	if ox+x1 > w {
		x1 = w - ox
	}

	for y := 0; y < p.Height && x0 < x1; y++ {
		dy := oy + y
		if dy < 0 || dy >= h {
			continue
		}
		src := p.Pixels[y*p.RowBytes+x0*types.BytesPerPixel : y*p.RowBytes+x1*types.BytesPerPixel]
		dst := out[dy*stride+(ox+x0)*types.BytesPerPixel : dy*stride+(ox+x1)*types.BytesPerPixel]

		if rowOpaque(src) {
			copy(dst, src)
			continue
		}
		for i := 0; i < len(src); i += types.BytesPerPixel {
			a := src[i]
			switch a {
			case 0:
			case 0xFF:
				copy(dst[i:i+types.BytesPerPixel], src[i:i+types.BytesPerPixel])
			default:
				t := float64(a) / 255
				for k := 1; k < types.BytesPerPixel; k++ {
					dst[i+k] = lerp(dst[i+k], src[i+k], t)
				}
				dst[i] = 0xFF
			}
		}
	}

	return &types.Pixmap{
		Pixels:         out,
		Bounds:         doc,
		Width:          w,
		Height:         h,
		RowBytes:       stride,
		Format:         p.Format,
		ColorMode:      p.ColorMode,
		ChannelCount:   p.ChannelCount,
		BitsPerChannel: p.BitsPerChannel,
		ICCProfile:     p.ICCProfile,
	}
}

func rowOpaque(row []byte) bool {
	for i := 0; i < len(row); i += types.BytesPerPixel {
		if row[i] != 0xFF {
			return false
		}
	}
	return true
}

// lerp returns (1-t)*a + t*b rounded to the nearest byte.
func lerp(a, b byte, t float64) byte {
	return byte((1-t)*float64(a) + t*float64(b) + 0.5)
}
