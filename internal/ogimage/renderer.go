// Package ogimage renders the 1200x630 social preview cards shared by every
// page and blog post.
package ogimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultWidth  = 1200
	DefaultHeight = 630

	padding      = 80
	stripeHeight = 16
	badgeTop     = 88
	badgeSize    = 26
	badgePadX    = 20
	badgePadY    = 12
	titleTop     = 210
	footerSize   = 30
	footerBottom = 70
	lineSpacing  = 1.2
)

// Brand holds the colours and name painted onto every card.
type Brand struct {
	Name       string
	Background color.RGBA
	Accent     color.RGBA
	Foreground color.RGBA
}

// DefaultBrand is a dark slate card with an amber accent.
var DefaultBrand = Brand{
	Name:       "My Small Business",
	Background: color.RGBA{0x0f, 0x17, 0x2a, 0xff},
	Accent:     color.RGBA{0xf5, 0x9e, 0x0b, 0xff},
	Foreground: color.RGBA{0xf8, 0xfa, 0xfc, 0xff},
}

// Renderer draws preview cards. The zero value is not usable; use NewRenderer.
type Renderer struct {
	Width  int
	Height int
	Brand  Brand
	// SiteURL supplies the host shown in the footer.
	SiteURL string
}

// NewRenderer creates a renderer with the default card size.
func NewRenderer(brand Brand, siteURL string) *Renderer {
	return &Renderer{
		Width:   DefaultWidth,
		Height:  DefaultHeight,
		Brand:   brand,
		SiteURL: siteURL,
	}
}

// TitleFontSize steps the title size down as the title grows.
func TitleFontSize(title string) float64 {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	switch {
	case n <= 40:
		return 72
	case n <= 70:
		return 60
	default:
		return 48
	}
}

// BadgeLabel returns the upper-cased category shown in the badge.
func BadgeLabel(category string) string {
	return cases.Upper(language.English).String(strings.TrimSpace(category))
}

var (
	fontsOnce sync.Once
	fontsErr  error
	boldFont  *opentype.Font
	plainFont *opentype.Font
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if boldFont, fontsErr = opentype.Parse(gobold.TTF); fontsErr != nil {
			return
		}
		plainFont, fontsErr = opentype.Parse(goregular.TTF)
	})
	return fontsErr
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Render draws a card for title and category and returns it PNG-encoded.
// Output is byte-identical for identical inputs.
func (r *Renderer) Render(title, category string) ([]byte, error) {
	img, err := r.Draw(title, category)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("ogimage: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Draw paints the card without encoding it.
func (r *Renderer) Draw(title, category string) (*image.RGBA, error) {
	if r.Width <= 2*padding || r.Height <= titleTop+footerBottom {
		return nil, fmt.Errorf("ogimage: canvas %dx%d is too small", r.Width, r.Height)
	}
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("ogimage: load fonts: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.Brand.Background), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, r.Width, stripeHeight), image.NewUniform(r.Brand.Accent), image.Point{}, draw.Src)

	if label := BadgeLabel(category); label != "" {
		if err := r.drawBadge(img, label); err != nil {
			return nil, err
		}
	}
	if err := r.drawTitle(img, strings.TrimSpace(title)); err != nil {
		return nil, err
	}
	if err := r.drawFooter(img); err != nil {
		return nil, err
	}
	return img, nil
}

func (r *Renderer) drawBadge(img *image.RGBA, label string) error {
	face, err := newFace(boldFont, badgeSize)
	if err != nil {
		return err
	}
	defer face.Close()

	textWidth := font.MeasureString(face, label).Ceil()
	maxText := r.Width - 2*padding - 2*badgePadX
	if textWidth > maxText {
		label = truncate(face, label, maxText)
		textWidth = font.MeasureString(face, label).Ceil()
	}

	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()
	box := image.Rect(padding, badgeTop, padding+textWidth+2*badgePadX, badgeTop+textHeight+2*badgePadY)
	draw.Draw(img, box, image.NewUniform(r.Brand.Accent), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(r.Brand.Background),
		Face: face,
		Dot:  fixed.P(box.Min.X+badgePadX, box.Min.Y+badgePadY+metrics.Ascent.Ceil()),
	}
	d.DrawString(label)
	return nil
}

func (r *Renderer) drawTitle(img *image.RGBA, title string) error {
	size := TitleFontSize(title)
	face, err := newFace(boldFont, size)
	if err != nil {
		return err
	}
	defer face.Close()

	maxWidth := r.Width - 2*padding
	lineHeight := int(size * lineSpacing)
	available := r.Height - footerBottom - footerSize*2 - titleTop
	maxLines := available / lineHeight
	if maxLines < 1 {
		maxLines = 1
	}

	lines := Wrap(face, title, maxWidth)
	if len(lines) > maxLines {
		last := lines[maxLines-1] + " " + strings.Join(lines[maxLines:], " ")
		lines = append(lines[:maxLines-1], truncate(face, last, maxWidth))
	}

	d := font.Drawer{Dst: img, Src: image.NewUniform(r.Brand.Foreground), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		d.Dot = fixed.P(padding, titleTop+ascent+i*lineHeight)
		d.DrawString(line)
	}
	return nil
}

func (r *Renderer) drawFooter(img *image.RGBA) error {
	baseline := r.Height - footerBottom

	rule := image.Rect(padding, baseline-footerSize-24, r.Width-padding, baseline-footerSize-22)
	draw.Draw(img, rule, image.NewUniform(dim(r.Brand.Foreground, r.Brand.Background)), image.Point{}, draw.Src)

	if name := strings.TrimSpace(r.Brand.Name); name != "" {
		face, err := newFace(boldFont, footerSize)
		if err != nil {
			return err
		}
		d := font.Drawer{Dst: img, Src: image.NewUniform(r.Brand.Accent), Face: face, Dot: fixed.P(padding, baseline)}
		d.DrawString(truncate(face, name, (r.Width-2*padding)/2))
		face.Close()
	}

	if host := siteHost(r.SiteURL); host != "" {
		face, err := newFace(plainFont, footerSize)
		if err != nil {
			return err
		}
		host = truncate(face, host, (r.Width-2*padding)/2)
		width := font.MeasureString(face, host).Ceil()
		d := font.Drawer{Dst: img, Src: image.NewUniform(r.Brand.Foreground), Face: face, Dot: fixed.P(r.Width-padding-width, baseline)}
		d.DrawString(host)
		face.Close()
	}
	return nil
}

// Wrap breaks text into lines no wider than maxWidth. Words wider than a
// whole line are split between runes.
func Wrap(face font.Face, text string, maxWidth int) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		for font.MeasureString(face, word).Ceil() > maxWidth {
			head, tail := splitAt(face, word, maxWidth)
			lines = append(lines, head)
			word = tail
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// splitAt returns the longest prefix of word that fits, and the rest. At least
// one rune always goes to the prefix.
func splitAt(face font.Face, word string, maxWidth int) (string, string) {
	end := 0
	for i, r := range word {
		next := i + utf8.RuneLen(r)
		if end > 0 && font.MeasureString(face, word[:next]).Ceil() > maxWidth {
			break
		}
		end = next
	}
	return word[:end], word[end:]
}

const ellipsis = "…"

func truncate(face font.Face, s string, maxWidth int) string {
	if font.MeasureString(face, s).Ceil() <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimRight(string(runes), " ") + ellipsis
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}

func siteHost(siteURL string) string {
	if siteURL == "" {
		return ""
	}
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// dim mixes fg into bg at one quarter strength for divider lines.
func dim(fg, bg color.RGBA) color.RGBA {
	mix := func(a, b uint8) uint8 { return uint8((int(a) + 3*int(b)) / 4) }
	return color.RGBA{mix(fg.R, bg.R), mix(fg.G, bg.G), mix(fg.B, bg.B), 0xff}
}
