package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/justapithecus/pixport/types"
)

// PixmapHeaderSize is the size of the PixelBuffer body header:
//
//	u8 format | u32 width | u32 height | u32 rowBytes |
//	u8 colorMode | u8 channelCount | u8 bitsPerChannel
const PixmapHeaderSize = 16

// ParsePixmap decodes a PixelBuffer body. The pixel slice aliases data.
// Bounds are not part of the body and are left zero.
func ParsePixmap(data []byte) (*types.Pixmap, error) {
	if len(data) < PixmapHeaderSize {
		return nil, &ProtocolError{
			Kind: ProtocolErrorDecode,
			Msg:  fmt.Sprintf("pixel buffer of %d bytes is shorter than its header", len(data)),
		}
	}
	p := &types.Pixmap{
		Format:         data[0],
		Width:          int(binary.BigEndian.Uint32(data[1:5])),
		Height:         int(binary.BigEndian.Uint32(data[5:9])),
		RowBytes:       int(binary.BigEndian.Uint32(data[9:13])),
		ColorMode:      data[13],
		ChannelCount:   data[14],
		BitsPerChannel: data[15],
		Pixels:         data[PixmapHeaderSize:],
	}
	if err := p.Validate(); err != nil {
		return nil, &ProtocolError{Kind: ProtocolErrorDecode, Msg: "invalid pixel buffer", Err: err}
	}
	return p, nil
}

// EncodePixmap is the inverse of ParsePixmap.
func EncodePixmap(p *types.Pixmap) []byte {
	out := make([]byte, PixmapHeaderSize, PixmapHeaderSize+len(p.Pixels))
	out[0] = p.Format
	binary.BigEndian.PutUint32(out[1:5], uint32(p.Width))
	binary.BigEndian.PutUint32(out[5:9], uint32(p.Height))
	binary.BigEndian.PutUint32(out[9:13], uint32(p.RowBytes))
	out[13] = p.ColorMode
	out[14] = p.ChannelCount
	out[15] = p.BitsPerChannel
	return append(out, p.Pixels...)
}
