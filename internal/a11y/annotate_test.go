package a11y

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/testutil"
)

func TestAnnotateDrawsRelativeToClip(t *testing.T) {
	src := testutil.TinyPNG(200, 120)
	box := browser.Box{X: 140, Y: 90, Width: 40, Height: 20}
	origin := browser.Box{X: 100, Y: 50, Width: 120, Height: 100}

	out, err := annotate(src, box, &origin, "button-name")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	r, g, b, _ := img.At(40, 45).RGBA()
	assert.Equal(t, [3]uint32{168, 85, 247}, [3]uint32{r >> 8, g >> 8, b >> 8})
	// interior untouched
	r, g, b, _ = img.At(60, 50).RGBA()
	assert.Equal(t, [3]uint32{240, 240, 240}, [3]uint32{r >> 8, g >> 8, b >> 8})
}

func TestAnnotateClipsOutOfBounds(t *testing.T) {
	src := testutil.TinyPNG(20, 20)
	out, err := annotate(src, browser.Box{X: 500, Y: 500, Width: 10, Height: 10}, nil, "x")
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
}

func TestAnnotateRejectsGarbage(t *testing.T) {
	_, err := annotate([]byte("nope"), browser.Box{}, nil, "")
	assert.Error(t, err)
}

func TestSnippetTag(t *testing.T) {
	tests := map[string]string{
		`<button id="buy"></button>`: "button",
		`  <img src="a.png" alt="">`: "img",
		`<html lang="en">`:           "html",
		`<HEAD>`:                     "head",
		`<body class="x">`:           "body",
		`<title>Shop</title>`:        "title",
		`plain text`:                 "",
		``:                           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, snippetTag(in), in)
	}
}
