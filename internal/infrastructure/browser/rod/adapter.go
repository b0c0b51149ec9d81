package rod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/url"
	"strings"
	"sync"
	"time"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"
	"commerce-agent/internal/infrastructure/browser/htmlfrag"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

const (
	defaultTimeout    = 15 * time.Second
	defaultSlowMotion time.Duration = 0
	defaultStableFor  = 300 * time.Millisecond
	defaultMaxSettle  = 5 * time.Second
	maxScreenshotW    = 1024
)

var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidSelector     = errors.New("invalid selector")
	ErrBrowserNotConnected = errors.New("browser is not connected")
)

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	// Timeout bounds element lookups and page loads.
	Timeout   time.Duration
	NoSandbox bool
	DevTools  bool
	// DisableSecurityFeatures turns off web security for local test shops.
	DisableSecurityFeatures bool
	Stealth                 bool
	// StableFor is how long the DOM must stay unchanged after a load;
	// MaxSettle caps the total wait on pages that never settle.
	StableFor time.Duration
	MaxSettle time.Duration
	HTML      htmlfrag.Config
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   false,
		SlowMotion: defaultSlowMotion,
		Timeout:    defaultTimeout,
		StableFor:  defaultStableFor,
		MaxSettle:  defaultMaxSettle,
		HTML:       htmlfrag.DefaultConfig(),
	}
}

type BrowserAdapter struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	timeout  time.Duration
	cfg      BrowserConfig
	closed   bool
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig) (*BrowserAdapter, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.StableFor <= 0 {
		cfg.StableFor = defaultStableFor
	}
	if cfg.MaxSettle <= 0 {
		cfg.MaxSettle = defaultMaxSettle
	}
	if cfg.HTML.MaxFragmentSize <= 0 {
		cfg.HTML = htmlfrag.DefaultConfig()
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Devtools(cfg.DevTools).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain")
	if cfg.DisableSecurityFeatures {
		l = l.Set("disable-web-security").
			Set("allow-running-insecure-content")
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(controlURL).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &BrowserAdapter{
		browser:  browser,
		launcher: l,
		page:     page,
		timeout:  cfg.Timeout,
		cfg:      cfg,
	}, nil
}

func (b *BrowserAdapter) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.page != nil
}

// active returns the page bound to ctx, or an error once closed.
func (b *BrowserAdapter) active(ctx context.Context) (*rod.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.page == nil {
		return nil, ErrBrowserNotConnected
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return b.page.Context(ctx), nil
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || raw == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	switch u.Scheme {
	case "http", "https", "file":
		return nil
	case "about":
		if u.Opaque == "blank" {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
}

func (b *BrowserAdapter) Navigate(ctx context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	page, err := b.active(ctx)
	if err != nil {
		return err
	}
	if err := page.Timeout(b.timeout).Navigate(rawURL); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return b.AwaitPageLoad(ctx)
}

func (b *BrowserAdapter) element(page *rod.Page, selector string) (*rod.Element, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, ErrInvalidSelector
	}

	var (
		el  *rod.Element
		err error
	)
	if isXPathSelector(selector) {
		el, err = page.Timeout(b.timeout).ElementX(strings.TrimPrefix(selector, "xpath="))
	} else {
		el, err = page.Timeout(b.timeout).Element(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el.Context(page.GetContext()), nil
}

func isXPathSelector(selector string) bool {
	return strings.HasPrefix(selector, "/") ||
		strings.HasPrefix(selector, "(") ||
		strings.HasPrefix(selector, "xpath=")
}

func (b *BrowserAdapter) Click(ctx context.Context, selector string) error {
	page, err := b.active(ctx)
	if err != nil {
		return err
	}
	el, err := b.element(page, selector)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll to %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) EnterText(ctx context.Context, text, selector string) error {
	page, err := b.active(ctx)
	if err != nil {
		return err
	}
	el, err := b.element(page, selector)
	if err != nil {
		return err
	}

	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) WaitForSelector(ctx context.Context, selector string) error {
	page, err := b.active(ctx)
	if err != nil {
		return err
	}
	el, err := b.element(page, selector)
	if err != nil {
		return err
	}
	if err := el.Timeout(b.timeout).WaitVisible(); err != nil {
		return fmt.Errorf("element %s not visible: %w", selector, err)
	}
	return nil
}

// AwaitPageLoad waits for the load event and then for the DOM to settle.
func (b *BrowserAdapter) AwaitPageLoad(ctx context.Context) error {
	page, err := b.active(ctx)
	if err != nil {
		return err
	}
	if err := page.Timeout(b.timeout).WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	waitForStable(ctx, page, b.cfg.StableFor, b.cfg.MaxSettle)
	return nil
}

// AwaitPageInteraction waits for in-page updates such as a cart badge
// refreshing, where no navigation happens.
func (b *BrowserAdapter) AwaitPageInteraction(ctx context.Context) error {
	page, err := b.active(ctx)
	if err != nil {
		return err
	}
	waitForStable(ctx, page, b.cfg.StableFor, b.cfg.MaxSettle/2)
	return ctxErr(ctx)
}

// waitForStable gives up after maxWait so animated pages cannot block forever.
// Hitting the deadline is not an error.
func waitForStable(ctx context.Context, page *rod.Page, stableFor, maxWait time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()
	_ = page.Context(ctx).WaitStable(stableFor)
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// GetHTMLFragments returns the cleaned main document split into fragments,
// followed by the fragments of any readable iframes.
func (b *BrowserAdapter) GetHTMLFragments(ctx context.Context) ([]entity.HTMLFragment, error) {
	page, err := b.active(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := page.Timeout(b.timeout).HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}
	fragments, err := htmlfrag.Split(0, raw, b.cfg.HTML)
	if err != nil {
		return nil, fmt.Errorf("failed to fragment HTML: %w", err)
	}

	frames, err := page.Timeout(b.timeout).Elements("iframe")
	if err != nil {
		return fragments, nil
	}
	for i, frame := range frames {
		fp, err := frame.Frame()
		if err != nil {
			continue
		}
		frameHTML, err := fp.Timeout(b.timeout).HTML()
		if err != nil {
			continue
		}
		sub, err := htmlfrag.Split(i+1, frameHTML, b.cfg.HTML)
		if err != nil {
			continue
		}
		fragments = append(fragments, sub...)
	}
	return fragments, nil
}

func (b *BrowserAdapter) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	page, err := b.active(ctx)
	if err != nil {
		return nil, err
	}

	imgBytes, err := page.Timeout(b.timeout).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return downscale(imgBytes)
}

func downscale(imgBytes []byte) (*entity.Screenshot, error) {
	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() > maxScreenshotW {
		img = imaging.Resize(img, maxScreenshotW, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}

	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (b *BrowserAdapter) CurrentURL() string {
	page, err := b.active(context.Background())
	if err != nil {
		return ""
	}
	info, err := page.Timeout(b.timeout).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (b *BrowserAdapter) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}
