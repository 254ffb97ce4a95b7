// File: internal/browserdriver/chrome.go
// Description: chromedp-backed browser driver. Drives either a locally spawned
// Chrome (exec allocator) or a remote DevTools endpoint, depending on config.
package browserdriver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
	"github.com/xkilldash9x/cartographer-cli/internal/config"
)

// Supported action verbs. The model is instructed to emit exactly these; anything
// else comes back as an error-status ActionResponse rather than a driver failure.
const (
	actionNavigate = "navigate"
	actionClick    = "click"
	actionType     = "type"
	actionKeyPress = "key_press"
	actionScroll   = "scroll"
)

// specialKeys maps the key names the model emits onto DevTools key sequences.
var specialKeys = map[string]string{
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"home":       kb.Home,
	"end":        kb.End,
}

// ChromeDriver implements schemas.BrowserDriver on top of chromedp. It owns one
// browser tab for the lifetime of the exploration session.
type ChromeDriver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu          sync.Mutex
	browserCtx  context.Context
	cancelFns   []context.CancelFunc
	cleanupOnce sync.Once
}

var _ schemas.BrowserDriver = (*ChromeDriver)(nil)

func newChromeDriver(cfg config.BrowserConfig, logger *zap.Logger) *ChromeDriver {
	return &ChromeDriver{
		cfg:    cfg,
		logger: logger.Named("browser_driver"),
	}
}

// Initialize launches (or attaches to) the browser and optionally navigates to
// startURL. The browser outlives the passed ctx; it is torn down by Cleanup.
func (d *ChromeDriver) Initialize(ctx context.Context, startURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx != nil {
		return fmt.Errorf("browser driver already initialized")
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if d.cfg.Driver == config.DriverRemote {
		d.logger.Info("Attaching to remote browser", zap.String("url", d.cfg.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), d.cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", d.cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if d.cfg.IgnoreTLSErrors {
			opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	d.cancelFns = []context.CancelFunc{browserCancel, allocCancel}

	// An empty Run forces the browser process to start so that startup failures
	// surface here instead of on the first action.
	if err := d.runLocked(ctx, browserCtx); err != nil {
		d.teardownLocked()
		return fmt.Errorf("failed to start browser: %w", err)
	}
	d.browserCtx = browserCtx

	if startURL != "" {
		if err := d.runLocked(ctx, browserCtx, chromedp.Navigate(startURL)); err != nil {
			// A bad start URL must not leave the spawned browser running;
			// callers only register Cleanup after a successful Initialize.
			d.teardownLocked()
			return fmt.Errorf("failed to navigate to start url %q: %w", startURL, err)
		}
	}
	d.logger.Info("Browser session ready", zap.String("start_url", startURL))
	return nil
}

// CurrentURL reports the tab's location. Chromedp failures are demoted to a "no
// observation" result because the page may simply be mid-navigation.
func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	bctx, err := d.sessionCtx()
	if err != nil {
		return "", err
	}
	var url string
	if err := d.run(ctx, bctx, chromedp.Location(&url)); err != nil {
		d.logger.Debug("Could not observe current URL", zap.Error(err))
		return "", nil
	}
	if url == "about:blank" {
		return "", nil
	}
	return url, nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	bctx, err := d.sessionCtx()
	if err != nil {
		return nil, err
	}
	var buf []byte
	capture := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(ctx)
		return err
	})
	if err := d.run(ctx, bctx, capture); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// PerformAction executes one model-issued action. Malformed requests produce an
// error-status response so the model can self-correct; only transport-level
// problems are returned as Go errors.
func (d *ChromeDriver) PerformAction(ctx context.Context, req schemas.ActionRequest) (schemas.ActionResponse, error) {
	bctx, err := d.sessionCtx()
	if err != nil {
		return schemas.ActionResponse{}, err
	}

	actions, msg := d.buildActions(req)
	if actions == nil {
		return errorResponse(msg), nil
	}
	if d.cfg.PostActionWait > 0 {
		actions = append(actions, chromedp.Sleep(d.cfg.PostActionWait))
	}

	if err := d.run(ctx, bctx, actions...); err != nil {
		if ctx.Err() != nil {
			return schemas.ActionResponse{}, ctx.Err()
		}
		d.logger.Warn("Browser action failed",
			zap.String("action", req.Action),
			zap.Error(err))
		return errorResponse(fmt.Sprintf("action %q failed: %v", req.Action, err)), nil
	}

	resp := schemas.ActionResponse{
		Status:  schemas.StatusSuccess,
		Message: msg,
	}
	if shot, err := d.Screenshot(ctx); err == nil {
		resp.Screenshot = shot
	}
	return resp, nil
}

// buildActions translates an ActionRequest into a chromedp action sequence. A
// nil slice means the request was rejected; the string then carries the reason.
func (d *ChromeDriver) buildActions(req schemas.ActionRequest) ([]chromedp.Action, string) {
	switch req.Action {
	case actionNavigate:
		if req.URL == "" {
			return nil, "navigate requires a url"
		}
		return []chromedp.Action{chromedp.Navigate(req.URL)}, fmt.Sprintf("navigated to %s", req.URL)

	case actionClick:
		if req.Coordinate == nil {
			return nil, "click requires a coordinate"
		}
		return []chromedp.Action{
			chromedp.MouseClickXY(req.Coordinate.X, req.Coordinate.Y),
		}, fmt.Sprintf("clicked at (%.0f, %.0f)", req.Coordinate.X, req.Coordinate.Y)

	case actionType:
		if req.Text == "" {
			return nil, "type requires text"
		}
		actions := []chromedp.Action{}
		if req.Coordinate != nil {
			// Focus the target first so the keystrokes land somewhere sensible.
			actions = append(actions, chromedp.MouseClickXY(req.Coordinate.X, req.Coordinate.Y))
		}
		actions = append(actions, chromedp.KeyEvent(req.Text))
		return actions, fmt.Sprintf("typed %d characters", len(req.Text))

	case actionKeyPress:
		if req.Key == "" {
			return nil, "key_press requires a key"
		}
		seq, ok := specialKeys[strings.ToLower(req.Key)]
		if !ok {
			if len([]rune(req.Key)) != 1 {
				return nil, fmt.Sprintf("unsupported key %q", req.Key)
			}
			seq = req.Key
		}
		return []chromedp.Action{chromedp.KeyEvent(seq)}, fmt.Sprintf("pressed %s", req.Key)

	case actionScroll:
		dx, dy := 0.0, 600.0
		if req.Coordinate != nil {
			dx, dy = req.Coordinate.X, req.Coordinate.Y
		} else if strings.EqualFold(req.Text, "up") {
			dy = -600.0
		}
		js := fmt.Sprintf("window.scrollBy(%f, %f)", dx, dy)
		return []chromedp.Action{chromedp.Evaluate(js, nil)}, fmt.Sprintf("scrolled by (%.0f, %.0f)", dx, dy)

	default:
		return nil, fmt.Sprintf("unknown action %q", req.Action)
	}
}

// Cleanup tears the browser down. Calling it again is a no-op.
func (d *ChromeDriver) Cleanup(ctx context.Context) error {
	d.cleanupOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.teardownLocked()
		d.logger.Info("Browser session closed")
	})
	return nil
}

// teardownLocked cancels the chromedp context chain and resets the session
// state. Callers must hold d.mu.
func (d *ChromeDriver) teardownLocked() {
	for _, cancel := range d.cancelFns {
		cancel()
	}
	d.cancelFns = nil
	d.browserCtx = nil
}

func (d *ChromeDriver) sessionCtx() (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browserCtx == nil {
		return nil, fmt.Errorf("browser driver not initialized")
	}
	return d.browserCtx, nil
}

// run executes chromedp actions against bctx, bounded by the configured
// navigation timeout and by the caller's ctx.
func (d *ChromeDriver) run(ctx context.Context, bctx context.Context, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if d.cfg.NavigationTimeout > 0 {
		runCtx, cancel = context.WithTimeout(bctx, d.cfg.NavigationTimeout)
	} else {
		runCtx, cancel = context.WithCancel(bctx)
	}
	defer cancel()

	// Propagate the caller's cancellation without reparenting the chromedp
	// context chain.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// runLocked is run for callers already holding d.mu.
func (d *ChromeDriver) runLocked(ctx context.Context, bctx context.Context, actions ...chromedp.Action) error {
	return d.run(ctx, bctx, actions...)
}

func errorResponse(msg string) schemas.ActionResponse {
	return schemas.ActionResponse{Status: schemas.StatusError, Message: msg}
}
