package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
)

// Browser owns one Chrome instance. Pages are tabs inside it.
type Browser struct {
	cfg         Config
	logger      logging.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// New starts (or connects to) Chrome using the configured backend.
func New(parent context.Context, cfg Config, logger logging.Logger) (*Browser, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	ctor, err := lookupBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	allocCtx, allocCancel, err := ctor(parent, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s allocator: %w", cfg.Backend, err)
	}
	ctx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	logger.Debug("browser started",
		logging.Field{Key: "backend", Value: string(cfg.Backend)},
		logging.Field{Key: "headless", Value: cfg.Headless})
	return &Browser{cfg: cfg, logger: logger, ctx: ctx, cancel: cancel, allocCancel: allocCancel}, nil
}

// NewPage opens a fresh tab.
func (b *Browser) NewPage() (*ChromePage, error) {
	ctx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &ChromePage{ctx: ctx, cancel: cancel, cfg: b.cfg, logger: b.logger}, nil
}

func (b *Browser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}

// ChromePage implements Page on a chromedp tab.
type ChromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	logger logging.Logger
}

var _ Page = (*ChromePage)(nil)

// bind derives a context that runs on the tab but honours the caller's
// deadline and cancellation.
func (p *ChromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.ctx)
	if dl, ok := ctx.Deadline(); ok {
		var dlCancel context.CancelFunc
		runCtx, dlCancel = context.WithDeadline(runCtx, dl)
		prev := cancel
		cancel = func() { dlCancel(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func queryOpt(h locator.Handle) chromedp.QueryOption {
	switch h.Strategy {
	case locator.StrategyXPath:
		return chromedp.BySearch
	case locator.StrategyJS:
		return chromedp.ByJSPath
	default:
		return chromedp.ByQuery
	}
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if p.cfg.NavigateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.NavigateTimeout)
		defer cancel()
	}
	runCtx, cancel := p.bind(ctx)
	defer cancel()

	idle := waitNetworkIdle(runCtx, p.cfg.IdleAfter)
	if err := chromedp.Run(runCtx, network.Enable(), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	select {
	case <-idle:
	case <-runCtx.Done():
		// Long-polling pages never go idle; the load event already fired.
		p.logger.Debug("network did not go idle before deadline", logging.Field{Key: "url", Value: url})
	}
	return nil
}

// waitNetworkIdle returns a channel closed once no request has been in
// flight for idleAfter.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	if idleAfter <= 0 {
		idleAfter = 500 * time.Millisecond
	}
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) <= 0 {
				once.Do(func() { close(idleChan) })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			atomic.AddInt32(&activeReqs, 1)
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if atomic.AddInt32(&activeReqs, -1) <= 0 {
				startTimer()
			}
		case *page.EventLoadEventFired:
			startTimer()
		}
	})
	return idleChan
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (p *ChromePage) WaitVisible(ctx context.Context, h locator.Handle) error {
	return p.run(ctx, chromedp.WaitVisible(h.Query, queryOpt(h)))
}

type elementState struct {
	Found   bool    `json:"found"`
	Visible bool    `json:"visible"`
	Enabled bool    `json:"enabled"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

const stateJS = `((el) => {
  if (!el) return {found: false};
  const r = el.getBoundingClientRect();
  const s = window.getComputedStyle(el);
  return {
    found: true,
    visible: r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none',
    enabled: !el.disabled && el.getAttribute('aria-disabled') !== 'true',
    x: r.left + window.scrollX,
    y: r.top + window.scrollY,
    width: r.width,
    height: r.height,
  };
})(%s)`

func (p *ChromePage) state(ctx context.Context, h locator.Handle) (elementState, error) {
	var st elementState
	err := p.Evaluate(ctx, fmt.Sprintf(stateJS, h.ElementJS()), &st)
	return st, err
}

func (p *ChromePage) IsVisible(ctx context.Context, h locator.Handle) (bool, error) {
	st, err := p.state(ctx, h)
	return st.Found && st.Visible, err
}

func (p *ChromePage) IsEnabled(ctx context.Context, h locator.Handle) (bool, error) {
	st, err := p.state(ctx, h)
	return st.Found && st.Enabled, err
}

func (p *ChromePage) BoundingBox(ctx context.Context, h locator.Handle) (*Box, error) {
	st, err := p.state(ctx, h)
	if err != nil || !st.Found {
		return nil, err
	}
	return &Box{X: st.X, Y: st.Y, Width: st.Width, Height: st.Height}, nil
}

func (p *ChromePage) ScrollIntoView(ctx context.Context, h locator.Handle) error {
	return p.run(ctx, chromedp.ScrollIntoView(h.Query, queryOpt(h)))
}

func (p *ChromePage) Click(ctx context.Context, h locator.Handle) error {
	return p.run(ctx, chromedp.Click(h.Query, queryOpt(h), chromedp.NodeVisible))
}

const invokeClickJS = `((el) => {
  if (!el) throw new Error('element not found');
  el.focus();
  el.click();
  return true;
})(%s)`

func (p *ChromePage) InvokeClick(ctx context.Context, h locator.Handle) error {
	var ok bool
	return p.Evaluate(ctx, fmt.Sprintf(invokeClickJS, h.ElementJS()), &ok)
}

func (p *ChromePage) Type(ctx context.Context, h locator.Handle, text string) error {
	return p.run(ctx, chromedp.SendKeys(h.Query, text, queryOpt(h), chromedp.NodeVisible))
}

func (p *ChromePage) Fill(ctx context.Context, h locator.Handle, text string) error {
	return p.run(ctx,
		chromedp.SetValue(h.Query, "", queryOpt(h), chromedp.NodeVisible),
		chromedp.SendKeys(h.Query, text, queryOpt(h), chromedp.NodeVisible),
	)
}

func (p *ChromePage) Text(ctx context.Context, h locator.Handle) (string, error) {
	var s string
	if err := p.run(ctx, chromedp.Text(h.Query, &s, queryOpt(h), chromedp.NodeVisible)); err != nil {
		return "", err
	}
	return s, nil
}

func (p *ChromePage) Evaluate(ctx context.Context, expr string, res any) error {
	return p.run(ctx, chromedp.Evaluate(expr, res, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *ChromePage) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	switch {
	case opts.Clip != nil:
		clip := opts.Clip
		action = chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithClip(&page.Viewport{X: clip.X, Y: clip.Y, Width: clip.Width, Height: clip.Height, Scale: 1}).
				Do(ctx)
			return err
		})
	case opts.FullPage:
		// quality 100 yields PNG.
		action = chromedp.FullScreenshot(&buf, 100)
	default:
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (p *ChromePage) Close() error {
	p.cancel()
	return nil
}
