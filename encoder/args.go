package encoder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/justapithecus/pixport/types"
)

// Args builds the converter argument vector for one output written to
// stdout. Raw pixels carry no header, so geometry and depth are declared
// up front; the ARGB input is read as RGBA and its channels rotated back.
func Args(img Image, t types.ExportTarget, opts Options) []string {
	args := []string{
		"-size", fmt.Sprintf("%dx%d", img.Width, img.Height),
		"-depth", "8",
		"rgba:-",
		"-channel", "RGBA", "-separate",
		"-swap", "0,1", "-swap", "1,2", "-swap", "2,3",
		"-combine",
	}

	alpha := t.HasAlpha()
	if alpha {
		args = append(args, "-type", "TrueColorAlpha")
	} else {
		args = append(args, "-alpha", "off", "-type", "TrueColor")
	}

	if t.Scale != 0 && t.Scale != 1 {
		args = append(args, "-resize", strconv.FormatFloat(t.Scale*100, 'f', -1, 64)+"%")
	}

	if t.Filters.Blur {
		args = append(args, "-blur", "0x1")
	}
	if t.Filters.Sharpen {
		args = append(args, "-sharpen", "0x1")
	}
	if t.Filters.Invert {
		args = append(args, "-channel", "RGB", "-negate", "+channel")
	}

	for _, flip := range []struct {
		on      bool
		channel string
	}{
		{t.Normal.FlipX, "R"},
		{t.Normal.FlipY, "G"},
		{t.Normal.FlipZ, "B"},
	} {
		if flip.on {
			args = append(args, "-channel", flip.channel, "-negate", "+channel")
		}
	}

	format := types.NormalizedFormat(t.Format)
	if format == "" {
		format = types.DefaultFormat
	}
	out := format
	switch format {
	case types.FormatTGA:
		if opts.TGARLE {
			args = append(args, "-compress", "RLE")
		}
	case types.FormatPNG:
		if alpha {
			out = "PNG32"
		} else {
			out = "PNG24"
		}
	}
	return append(args, strings.ToUpper(out)+":-")
}
