package a11y

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/raysh454/uiflow/internal/browser"
)

var (
	highlightColor = color.RGBA{R: 168, G: 85, B: 247, A: 255}
	labelColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor   = color.RGBA{R: 17, G: 24, B: 39, A: 255}
)

const highlightThickness = 3

// annotate outlines box on a PNG and writes label above it. origin is the
// clip rectangle the PNG was taken with, nil for full-page captures.
func annotate(pngData []byte, box browser.Box, origin *browser.Box, label string) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	img := toRGBA(src)

	x, y := box.X, box.Y
	if origin != nil {
		x -= origin.X
		y -= origin.Y
	}
	x1, y1 := int(x), int(y)
	x2, y2 := int(x+box.Width), int(y+box.Height)
	for i := 0; i < highlightThickness; i++ {
		drawRectangle(img, x1-i, y1-i, x2+i, y2+i, highlightColor)
	}
	if label != "" {
		ly := y1 - highlightThickness - 4
		if ly < 13 {
			ly = y2 + highlightThickness + 13
		}
		drawLabel(img, label, x1, ly)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

func drawRectangle(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	r := image.Rect(x1, y1, x2, y2).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		if y1 >= r.Min.Y {
			img.Set(x, y1, c)
		}
		if y2-1 < r.Max.Y {
			img.Set(x, y2-1, c)
		}
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		if x1 >= r.Min.X {
			img.Set(x1, y, c)
		}
		if x2-1 < r.Max.X {
			img.Set(x2-1, y, c)
		}
	}
}

// drawLabel writes text with its baseline at (x, y) on a one-pixel outline.
func drawLabel(img *image.RGBA, text string, x, y int) {
	if x < 2 {
		x = 2
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			d := &font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(outlineColor),
				Face: basicfont.Face7x13,
				Dot:  fixed.P(x+dx, y+dy),
			}
			d.DrawString(text)
		}
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
