package encoder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"
)

const (
	tgaHeaderSize   = 18
	tgaTypeTrue     = 2
	tgaTypeTrueRLE  = 10
	tgaTopLeft      = 0x20
	tgaMaxDimension = 0xFFFF
	tgaMaxPacket    = 128
)

// EncodeTGA writes img as a true-color TGA with a top-left origin.
// Pixels are stored BGR(A); alpha selects 32 over 24 bits per pixel and
// rle selects run-length packets, which never span rows.
func EncodeTGA(w io.Writer, img *image.NRGBA, alpha, rle bool) error {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	if width <= 0 || height <= 0 || width > tgaMaxDimension || height > tgaMaxDimension {
		return fmt.Errorf("tga: unsupported size %dx%d", width, height)
	}

	bpp := 3
	desc := byte(tgaTopLeft)
	if alpha {
		bpp = 4
		desc |= 8
	}
	kind := byte(tgaTypeTrue)
	if rle {
		kind = tgaTypeTrueRLE
	}

	var hdr [tgaHeaderSize]byte
	hdr[2] = kind
	binary.LittleEndian.PutUint16(hdr[12:], uint16(width))
	binary.LittleEndian.PutUint16(hdr[14:], uint16(height))
	hdr[16] = byte(bpp * 8)
	hdr[17] = desc

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	row := make([]byte, width*bpp)
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			p := src[x*4 : x*4+4]
			d := row[x*bpp:]
			d[0], d[1], d[2] = p[2], p[1], p[0]
			if alpha {
				d[3] = p[3]
			}
		}
		var err error
		if rle {
			err = writeRLERow(bw, row, bpp)
		} else {
			_, err = bw.Write(row)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeRLERow emits run packets for repeated pixels and raw packets for
// everything else. Runs of two are folded into raw packets.
func writeRLERow(w *bufio.Writer, row []byte, bpp int) error {
	n := len(row) / bpp
	px := func(i int) []byte { return row[i*bpp : i*bpp+bpp] }
	same := func(a, b int) bool {
		pa, pb := px(a), px(b)
		for k := range pa {
			if pa[k] != pb[k] {
				return false
			}
		}
		return true
	}

	for i := 0; i < n; {
		run := 1
		for i+run < n && run < tgaMaxPacket && same(i, i+run) {
			run++
		}
		if run > 2 {
			if err := w.WriteByte(0x80 | byte(run-1)); err != nil {
				return err
			}
			if _, err := w.Write(px(i)); err != nil {
				return err
			}
			i += run
			continue
		}

		start := i
		for i < n && i-start < tgaMaxPacket {
			if i+2 < n && same(i, i+1) && same(i, i+2) {
				break
			}
			i++
		}
		if err := w.WriteByte(byte(i - start - 1)); err != nil {
			return err
		}
		if _, err := w.Write(row[start*bpp : i*bpp]); err != nil {
			return err
		}
	}
	return nil
}
