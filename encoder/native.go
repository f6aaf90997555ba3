package encoder

import (
	"context"
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"

	"github.com/justapithecus/pixport/types"
)

// JPEGQuality is used by the native backend for jpg output.
const JPEGQuality = 95

// Native encodes in process. It applies the same operations as External,
// in the same order, so either backend can serve an export.
type Native struct {
	Options Options
}

// Name implements Backend.
func (n *Native) Name() string { return BackendNative }

// Encode implements Backend.
func (n *Native) Encode(ctx context.Context, img Image, t types.ExportTarget, w io.Writer) error {
	if err := img.Validate(); err != nil {
		return &EncodingError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &EncodingError{Err: err}
	}

	out := Process(img, t)

	format := types.NormalizedFormat(t.Format)
	if format == "" {
		format = types.DefaultFormat
	}

	var err error
	switch format {
	case types.FormatTGA:
		err = EncodeTGA(w, out, t.HasAlpha(), n.Options.TGARLE)
	case types.FormatPNG:
		err = imaging.Encode(w, out, imaging.PNG)
	case types.FormatJPG:
		err = imaging.Encode(w, out, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
	case types.FormatTIFF:
		err = imaging.Encode(w, out, imaging.TIFF)
	case types.FormatBMP:
		err = imaging.Encode(w, out, imaging.BMP)
	case types.FormatGIF:
		err = imaging.Encode(w, out, imaging.GIF)
	default:
		err = imaging.ErrUnsupportedFormat
	}
	if err != nil {
		return &EncodingError{Err: err}
	}
	return nil
}

// Process converts img to NRGBA and applies the target's scale, filters
// and normal flips.
func Process(img Image, t types.ExportTarget) *image.NRGBA {
	out := ToNRGBA(img)

	if t.Scale != 0 && t.Scale != 1 {
		w := int(math.Round(float64(img.Width) * t.Scale))
		h := int(math.Round(float64(img.Height) * t.Scale))
		out = imaging.Resize(out, max(w, 1), max(h, 1), imaging.Lanczos)
	}
	if t.Filters.Blur {
		out = imaging.Blur(out, 1)
	}
	if t.Filters.Sharpen {
		out = imaging.Sharpen(out, 1)
	}
	if t.Filters.Invert {
		out = imaging.Invert(out)
	}
	negateChannels(out, t.Normal.FlipX, t.Normal.FlipY, t.Normal.FlipZ)

	if !t.HasAlpha() {
		for i := 3; i < len(out.Pix); i += 4 {
			out.Pix[i] = 0xFF
		}
	}
	return out
}

// ToNRGBA reorders packed ARGB into an NRGBA image.
func ToNRGBA(img Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	src := img.Pixels
	dst := out.Pix
	for i := 0; i+3 < len(src); i += 4 {
		dst[i] = src[i+1]
		dst[i+1] = src[i+2]
		dst[i+2] = src[i+3]
		dst[i+3] = src[i]
	}
	return out
}

func negateChannels(img *image.NRGBA, r, g, b bool) {
	if !r && !g && !b {
		return
	}
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			if r {
				row[x] = 255 - row[x]
			}
			if g {
				row[x+1] = 255 - row[x+1]
			}
			if b {
				row[x+2] = 255 - row[x+2]
			}
		}
	}
}
