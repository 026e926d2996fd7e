package teachtiles

import "fmt"

// RGB is one LED
type RGB struct {
	R, G, B uint8
}

var (
	Black   = RGB{}
	White   = RGB{255, 255, 255}
	Red     = RGB{255, 0, 0}
	Green   = RGB{0, 255, 0}
	Blue    = RGB{0, 0, 255}
	Magenta = RGB{255, 0, 255}
)

// Saturation used for every note colour
const noteSaturation = 200

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Uint32 packs the colour as 0xRRGGBB
func (c RGB) Uint32() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// HSV converts with the integer six-region method used by HUB75 drivers
func HSV(h, s, v uint8) RGB {
	region := h / 43
	remainder := (h - region*43) * 6

	vi, si, ri := int(v), int(s), int(remainder)
	p := uint8((vi * (255 - si)) >> 8)
	q := uint8((vi * (255 - ((si * ri) >> 8))) >> 8)
	t := uint8((vi * (255 - ((si * (255 - ri)) >> 8))) >> 8)

	switch region {
	case 0:
		return RGB{v, t, p}
	case 1:
		return RGB{q, v, p}
	case 2:
		return RGB{p, v, t}
	case 3:
		return RGB{p, q, v}
	case 4:
		return RGB{t, p, v}
	default:
		return RGB{v, p, q}
	}
}

// blend8 moves a toward b by amount/256
func blend8(a, b, amount uint8) uint8 {
	partial := (int(a) << 8) | int(b)
	partial += int(b) * int(amount)
	partial -= int(a) * int(amount)
	return uint8(partial >> 8)
}

// Blend mixes overlay into existing, amount 0 keeps existing
func Blend(existing, overlay RGB, amount uint8) RGB {
	return RGB{
		R: blend8(existing.R, overlay.R, amount),
		G: blend8(existing.G, overlay.G, amount),
		B: blend8(existing.B, overlay.B, amount),
	}
}

// Expand565 widens a 5-6-5 sample to 8 bits per channel
func Expand565(c uint16) RGB {
	r5 := uint8((c >> 11) & 0x1F)
	g6 := uint8((c >> 5) & 0x3F)
	b5 := uint8(c & 0x1F)
	return RGB{
		R: (r5 << 3) | (r5 >> 2),
		G: (g6 << 2) | (g6 >> 4),
		B: (b5 << 3) | (b5 >> 2),
	}
}

// Pack565 drops the low bits of each channel
func Pack565(c RGB) uint16 {
	return uint16(c.R&0xF8)<<8 | uint16(c.G&0xFC)<<3 | uint16(c.B>>3)
}
