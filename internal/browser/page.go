package browser

import (
	"context"
	"errors"

	"github.com/raysh454/uiflow/internal/locator"
)

var ErrElementNotFound = errors.New("element not found")

// Box is an element rectangle in page (document) coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Expand grows b by pad on every side, clipping X and Y at zero.
func (b Box) Expand(pad float64) Box {
	x := b.X - pad
	if x < 0 {
		x = 0
	}
	y := b.Y - pad
	if y < 0 {
		y = 0
	}
	return Box{X: x, Y: y, Width: b.Width + 2*pad, Height: b.Height + 2*pad}
}

// Contains reports whether inner lies entirely within b.
func (b Box) Contains(inner Box) bool {
	return inner.X >= b.X && inner.Y >= b.Y &&
		inner.X+inner.Width <= b.X+b.Width &&
		inner.Y+inner.Height <= b.Y+b.Height
}

// ScreenshotOptions selects the capture region. Without FullPage or Clip only
// the viewport is captured.
type ScreenshotOptions struct {
	FullPage bool
	Clip     *Box
}

// Capturer takes PNG screenshots of the current page state.
type Capturer interface {
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)
}

// Page is a live browser tab. Every element method takes a resolved handle.
type Page interface {
	Capturer

	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)

	// WaitVisible blocks until the element is visible or ctx is done.
	WaitVisible(ctx context.Context, h locator.Handle) error
	IsVisible(ctx context.Context, h locator.Handle) (bool, error)
	IsEnabled(ctx context.Context, h locator.Handle) (bool, error)
	ScrollIntoView(ctx context.Context, h locator.Handle) error

	Click(ctx context.Context, h locator.Handle) error
	// InvokeClick focuses the element and calls its click() method directly.
	InvokeClick(ctx context.Context, h locator.Handle) error
	Type(ctx context.Context, h locator.Handle, text string) error
	// Fill clears the element's value before typing text.
	Fill(ctx context.Context, h locator.Handle, text string) error
	Text(ctx context.Context, h locator.Handle) (string, error)
	// BoundingBox returns nil when the element is absent.
	BoundingBox(ctx context.Context, h locator.Handle) (*Box, error)

	// Evaluate runs expr, awaiting promises, and decodes the result into res.
	Evaluate(ctx context.Context, expr string, res any) error

	Close() error
}
