package window

import (
	"bytes"
	"encoding/binary"
)

const iconSize = 16

var iconColors = map[iconState][3]byte{
	iconRunning: {0x2e, 0xa0, 0x43},
	iconExited:  {0x9e, 0x9e, 0x9e},
	iconFailed:  {0xd3, 0x2f, 0x2f},
}

// iconBytes renders a 16x16 32bpp ICO with a filled dot in the state color.
func iconBytes(state iconState) []byte {
	rgb, ok := iconColors[state]
	if !ok {
		rgb = iconColors[iconFailed]
	}

	const (
		pixelBytes = iconSize * iconSize * 4
		maskBytes  = iconSize * 4 // 1bpp rows padded to 32 bits
		headerSize = 40
		imageSize  = headerSize + pixelBytes + maskBytes
	)

	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	// ICONDIR
	w(uint16(0))
	w(uint16(1))
	w(uint16(1))
	// ICONDIRENTRY
	w(uint8(iconSize))
	w(uint8(iconSize))
	w(uint8(0))
	w(uint8(0))
	w(uint16(1))
	w(uint16(32))
	w(uint32(imageSize))
	w(uint32(22))
	// BITMAPINFOHEADER; height covers color and mask.
	w(uint32(headerSize))
	w(int32(iconSize))
	w(int32(iconSize * 2))
	w(uint16(1))
	w(uint16(32))
	w(uint32(0))
	w(uint32(pixelBytes + maskBytes))
	w(int32(0))
	w(int32(0))
	w(uint32(0))
	w(uint32(0))

	// Rows are stored bottom-up as BGRA.
	const c = (iconSize - 1) / 2.0
	const r2 = (iconSize/2 - 1) * (iconSize/2 - 1)
	for y := iconSize - 1; y >= 0; y-- {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy <= r2 {
				buf.Write([]byte{rgb[2], rgb[1], rgb[0], 0xff})
			} else {
				buf.Write([]byte{0, 0, 0, 0})
			}
		}
	}
	buf.Write(make([]byte, maskBytes))
	return buf.Bytes()
}
