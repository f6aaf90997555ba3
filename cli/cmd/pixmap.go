package cmd

import (
	"context"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/config"
	"github.com/justapithecus/pixport/cli/render"
	"github.com/justapithecus/pixport/encoder"
	"github.com/justapithecus/pixport/host"
	"github.com/justapithecus/pixport/types"
)

// PixmapCommand returns the pixmap command.
func PixmapCommand() *cli.Command {
	return &cli.Command{
		Name:  "pixmap",
		Usage: "Fetch the pixels of a layer or layer range",
		Flags: append(HostFlags(),
			documentFlag,
			&cli.IntFlag{
				Name:    "layer",
				Aliases: []string{"l"},
				Usage:   "Layer id",
				Value:   types.NoLayer,
			},
			&cli.IntFlag{
				Name:  "first",
				Usage: "First layer index of a range (with --last)",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "last",
				Usage: "Last layer index of a range (with --first)",
				Value: -1,
			},
			&cli.Float64Flag{
				Name:  "scale",
				Usage: "Scale applied to both axes",
			},
			&cli.IntFlag{
				Name:  "max-dimension",
				Usage: "Cap on the longer output side",
			},
			&cli.BoolFlag{
				Name:  "bounds-only",
				Usage: "Only report bounds",
			},
			&cli.BoolFlag{
				Name:  "clip",
				Usage: "Clip to the document bounds",
			},
			&cli.BoolFlag{
				Name:  "icc",
				Usage: "Request the ICC profile",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write the pixmap as an image (format from extension)",
			},
		),
		Action: pixmapAction,
	}
}

// PixmapResponse summarizes a fetched pixmap.
type PixmapResponse struct {
	Bounds   types.Bounds `json:"bounds" yaml:"bounds"`
	Width    int          `json:"width" yaml:"width"`
	Height   int          `json:"height" yaml:"height"`
	RowBytes int          `json:"row_bytes" yaml:"row_bytes"`
	Bytes    int          `json:"bytes" yaml:"bytes"`
	ICCBytes int          `json:"icc_bytes,omitempty" yaml:"icc_bytes,omitempty"`
	Out      string       `json:"out,omitempty" yaml:"out,omitempty"`
}

// layerSpec builds the layer selection from --layer or --first/--last.
func layerSpec(c *cli.Context) (host.LayerSpec, error) {
	id := c.Int("layer")
	first, last := c.Int("first"), c.Int("last")
	hasRange := first >= 0 || last >= 0
	switch {
	case id >= 0 && hasRange:
		return host.LayerSpec{}, invalid("--layer and --first/--last are exclusive")
	case id >= 0:
		return host.LayerID(id), nil
	case first >= 0 && last >= first:
		return host.LayerIndexRange(host.LayerRange{FirstLayerIndex: first, LastLayerIndex: last}), nil
	case hasRange:
		return host.LayerSpec{}, invalid("invalid layer range %d..%d", first, last)
	default:
		return host.LayerSpec{}, invalid("--layer or --first/--last is required")
	}
}

func pixmapAction(c *cli.Context) error {
	spec, err := layerSpec(c)
	if err != nil {
		return exit(err)
	}
	out := c.String("out")
	if out != "" && c.Bool("bounds-only") {
		return exit(invalid("--out cannot be combined with --bounds-only"))
	}
	settings := host.PixmapSettings{
		Scale:                c.Float64("scale"),
		MaxDimension:         c.Int("max-dimension"),
		BoundsOnly:           c.Bool("bounds-only"),
		ClipToDocumentBounds: c.Bool("clip"),
		GetICCProfileData:    c.Bool("icc"),
	}

	return withSession(c, sessionLabels{encoder: encoder.BackendNative}, func(ctx context.Context, _ *config.Config, s *session, r *render.Renderer) error {
		res, err := s.host.GetPixmap(ctx, c.Int("document"), spec, settings)
		if err != nil {
			return err
		}
		resp := PixmapResponse{Bounds: res.Bounds, ICCBytes: len(res.ICCProfile)}
		if pm := res.Pixmap; pm != nil {
			resp.Width, resp.Height, resp.RowBytes, resp.Bytes = pm.Width, pm.Height, pm.RowBytes, len(pm.Pixels)
			if out != "" {
				if err := writePixmap(ctx, pm, out); err != nil {
					return err
				}
				resp.Out = out
			}
		}
		return r.Render(resp)
	})
}

// writePixmap encodes pm with the native encoder, keeping alpha.
func writePixmap(ctx context.Context, pm *types.Pixmap, path string) error {
	t := types.ExportTarget{
		Path:     path,
		Format:   types.NormalizedFormat(filepath.Ext(path)),
		Channels: [4]int{0, 0, 0, 0},
	}
	if t.Format == "" {
		t.Format = types.FormatPNG
	}
	img := encoder.Image{Pixels: packRows(pm), Width: pm.Width, Height: pm.Height}
	return encoder.ToFile(ctx, &encoder.Native{}, img, t, path)
}

// packRows drops row padding.
func packRows(pm *types.Pixmap) []byte {
	if pm.Packed() {
		return pm.Pixels
	}
	stride := pm.Width * types.BytesPerPixel
	out := make([]byte, 0, stride*pm.Height)
	for y := 0; y < pm.Height; y++ {
		out = append(out, pm.Pixels[y*pm.RowBytes:y*pm.RowBytes+stride]...)
	}
	return out
}

// ShapeCommand returns the shape command.
func ShapeCommand() *cli.Command {
	return &cli.Command{
		Name:  "shape",
		Usage: "Fetch a layer's vector outline and mask",
		Flags: append(HostFlags(),
			documentFlag,
			&cli.IntFlag{
				Name:     "layer",
				Aliases:  []string{"l"},
				Usage:    "Layer id",
				Required: true,
			},
		),
		Action: shapeAction,
	}
}

// ShapeResponse summarizes a layer shape.
type ShapeResponse struct {
	Path       any `json:"path" yaml:"path"`
	MaskWidth  int `json:"mask_width" yaml:"mask_width"`
	MaskHeight int `json:"mask_height" yaml:"mask_height"`
}

func shapeAction(c *cli.Context) error {
	return withSession(c, sessionLabels{}, func(ctx context.Context, _ *config.Config, s *session, r *render.Renderer) error {
		shape, err := s.host.GetLayerShape(ctx, c.Int("document"), c.Int("layer"))
		if err != nil {
			return err
		}
		resp := ShapeResponse{Path: shape.Path}
		if shape.Mask != nil {
			resp.MaskWidth, resp.MaskHeight = shape.Mask.Width, shape.Mask.Height
		}
		return r.Render(resp)
	})
}
