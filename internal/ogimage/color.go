package ogimage

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseHexColor parses "#rgb" or "#rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// BrandFromHex builds a Brand from hex colour strings.
func BrandFromHex(name, background, accent, foreground string) (Brand, error) {
	bg, err := ParseHexColor(background)
	if err != nil {
		return Brand{}, fmt.Errorf("background: %w", err)
	}
	ac, err := ParseHexColor(accent)
	if err != nil {
		return Brand{}, fmt.Errorf("accent: %w", err)
	}
	fg, err := ParseHexColor(foreground)
	if err != nil {
		return Brand{}, fmt.Errorf("foreground: %w", err)
	}
	return Brand{Name: name, Background: bg, Accent: ac, Foreground: fg}, nil
}
