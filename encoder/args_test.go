package encoder

import (
	"strings"
	"testing"

	"github.com/justapithecus/pixport/types"
)

func TestArgs(t *testing.T) {
	img := Image{Width: 64, Height: 32}
	prefix := "-size 64x32 -depth 8 rgba:- -channel RGBA -separate -swap 0,1 -swap 1,2 -swap 2,3 -combine"

	tests := []struct {
		name   string
		target types.ExportTarget
		opts   Options
		want   string
	}{
		{
			name:   "tga with alpha",
			target: types.ExportTarget{Format: "tga", Channels: [4]int{1, 2, 3, 4}},
			want:   prefix + " -type TrueColorAlpha TGA:-",
		},
		{
			name:   "tga rle without alpha",
			target: types.ExportTarget{Format: "tga", Channels: [4]int{1, 2, 3, types.NoLayer}},
			opts:   Options{TGARLE: true},
			want:   prefix + " -alpha off -type TrueColor -compress RLE TGA:-",
		},
		{
			name:   "png alpha",
			target: types.ExportTarget{Format: "png", Channels: [4]int{1, 1, 1, 2}},
			want:   prefix + " -type TrueColorAlpha PNG32:-",
		},
		{
			name:   "png opaque",
			target: types.ExportTarget{Format: "PNG", Channels: [4]int{1, 1, 1, types.NoLayer}},
			want:   prefix + " -alpha off -type TrueColor PNG24:-",
		},
		{
			name:   "eighth scale",
			target: types.ExportTarget{Format: "jpg", Scale: 0.125, Channels: [4]int{1, 1, 1, types.NoLayer}},
			want:   prefix + " -alpha off -type TrueColor -resize 12.5% JPG:-",
		},
		{
			name:   "double scale",
			target: types.ExportTarget{Format: "bmp", Scale: 2, Channels: [4]int{1, 1, 1, types.NoLayer}},
			want:   prefix + " -alpha off -type TrueColor -resize 200% BMP:-",
		},
		{
			name: "filters in order",
			target: types.ExportTarget{
				Format:   "tga",
				Channels: [4]int{1, 1, 1, types.NoLayer},
				Filters:  types.Filters{Blur: true, Sharpen: true, Invert: true},
			},
			want: prefix + " -alpha off -type TrueColor -blur 0x1 -sharpen 0x1 -channel RGB -negate +channel TGA:-",
		},
		{
			name: "normal flips",
			target: types.ExportTarget{
				Format:   "tga",
				Channels: [4]int{1, 2, 3, types.NoLayer},
				Normal:   types.NormalOptions{FlipX: true, FlipZ: true},
			},
			want: prefix + " -alpha off -type TrueColor -channel R -negate +channel -channel B -negate +channel TGA:-",
		},
		{
			name:   "default format",
			target: types.ExportTarget{Channels: [4]int{1, 1, 1, types.NoLayer}},
			want:   prefix + " -alpha off -type TrueColor TGA:-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(Args(img, tt.target, tt.opts), " ")
			if got != tt.want {
				t.Errorf("Args() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}
