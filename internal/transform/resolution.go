package transform

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

const metersPerInch = 0.0254

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Resolution is the pixel density of an image in dots per inch.
type Resolution struct {
	X, Y float64
}

// readResolution reads the resolution stored in a PNG pHYs chunk or a JPEG
// JFIF APP0 segment. ok is false when the image carries none, including
// formats that never do.
func readResolution(r io.Reader) (res Resolution, ok bool) {
	br := bufio.NewReader(r)
	head, err := br.Peek(8)
	if err != nil {
		return Resolution{}, false
	}

	switch {
	case bytes.Equal(head, pngSignature):
		return pngResolution(br)
	case head[0] == 0xFF && head[1] == 0xD8:
		return jfifResolution(br)
	}
	return Resolution{}, false
}

func pngResolution(br *bufio.Reader) (Resolution, bool) {
	if _, err := br.Discard(len(pngSignature)); err != nil {
		return Resolution{}, false
	}

	var hdr [8]byte
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			return Resolution{}, false
		}
		length := binary.BigEndian.Uint32(hdr[:4])
		typ := string(hdr[4:8])

		switch typ {
		case "pHYs":
			if length != 9 {
				return Resolution{}, false
			}
			var data [9]byte
			if _, err := io.ReadFull(br, data[:]); err != nil {
				return Resolution{}, false
			}
			// Unit 1 is metres; unit 0 only states the pixel aspect ratio.
			if data[8] != 1 {
				return Resolution{}, false
			}
			x := float64(binary.BigEndian.Uint32(data[0:4])) * metersPerInch
			y := float64(binary.BigEndian.Uint32(data[4:8])) * metersPerInch
			if x <= 0 || y <= 0 {
				return Resolution{}, false
			}
			return Resolution{X: x, Y: y}, true
		case "IDAT", "IEND":
			// pHYs must precede the image data.
			return Resolution{}, false
		}

		// Skip chunk data and CRC.
		if _, err := br.Discard(int(length) + 4); err != nil {
			return Resolution{}, false
		}
	}
}

func jfifResolution(br *bufio.Reader) (Resolution, bool) {
	if _, err := br.Discard(2); err != nil {
		return Resolution{}, false
	}

	var marker [4]byte
	for {
		if _, err := io.ReadFull(br, marker[:]); err != nil {
			return Resolution{}, false
		}
		if marker[0] != 0xFF {
			return Resolution{}, false
		}
		// Start of scan: no more header segments.
		if marker[1] == 0xDA {
			return Resolution{}, false
		}
		length := int(binary.BigEndian.Uint16(marker[2:4])) - 2
		if length < 0 {
			return Resolution{}, false
		}

		if marker[1] != 0xE0 || length < 12 {
			if _, err := br.Discard(length); err != nil {
				return Resolution{}, false
			}
			continue
		}

		seg := make([]byte, length)
		if _, err := io.ReadFull(br, seg); err != nil {
			return Resolution{}, false
		}
		if !bytes.HasPrefix(seg, []byte("JFIF\x00")) {
			continue
		}

		units := seg[7]
		x := float64(binary.BigEndian.Uint16(seg[8:10]))
		y := float64(binary.BigEndian.Uint16(seg[10:12]))
		if x <= 0 || y <= 0 {
			return Resolution{}, false
		}
		switch units {
		case 1:
			return Resolution{X: x, Y: y}, true
		case 2: // dots per centimetre
			return Resolution{X: x * 2.54, Y: y * 2.54}, true
		}
		return Resolution{}, false
	}
}
