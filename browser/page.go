package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/models"
	"github.com/ysmood/gson"
)

// consentJS clicks the first visible button whose label matches one of the
// given labels, case-insensitively. It returns the clicked label or "".
const consentJS = `(labels) => {
	const want = labels.map(l => l.trim().toLowerCase());
	const candidates = document.querySelectorAll('button, [role="button"], a[href="#"]');
	for (const b of candidates) {
		const t = (b.innerText || b.textContent || '').trim().toLowerCase();
		if (!t || !want.includes(t)) continue;
		if (b.offsetParent === null) continue;
		b.click();
		return t;
	}
	return '';
}`

// OpenOptions are the per-tab settings that are not part of BrowserConfig.
type OpenOptions struct {
	// Cookies are installed before navigation.
	Cookies []models.Cookie

	// ConsentLabels are button captions dismissed after the page settles.
	ConsentLabels []string
}

// Page is one harvest tab. It implements dom.Session.
type Page struct {
	page   *rod.Page
	router *rod.HijackRouter
	owner  *Browser
	closed bool
}

var _ dom.Session = (*Page)(nil)

// Open creates a tab, prepares it and navigates to target. The order is
// fixed: stealth and resource blocking only apply to navigations started
// after they are installed.
func (b *Browser) Open(ctx context.Context, target string, opts OpenOptions) (*Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to create tab", err)
	}
	b.openTabs.Add(1)
	p := &Page{page: page, owner: b}

	if b.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if b.cfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": b.cfg.AcceptLanguage}),
		}.Call(page)
	}

	for _, c := range opts.Cookies {
		if _, err := toSetCookie(c).Call(page); err != nil {
			slog.Warn("cookie rejected", "name", c.Name, "domain", c.Domain, "error", err)
		}
	}
	if len(opts.Cookies) > 0 {
		slog.Debug("cookies installed", "count", len(opts.Cookies))
	}

	p.router = setupHijack(page, b.cfg.BlockedResourceTypes)

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigationTimeout)
	defer cancel()
	nav := page.Context(navCtx)

	if err := nav.Navigate(target); err != nil {
		p.Close(false)
		return nil, categorizeError(err, "navigation to search page failed")
	}
	if err := nav.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	if len(opts.ConsentLabels) > 0 {
		res, err := nav.Eval(consentJS, opts.ConsentLabels)
		if err == nil && res.Value.Str() != "" {
			slog.Info("consent dismissed", "label", res.Value.Str())
			_ = dom.Sleep(ctx, 800*time.Millisecond)
		}
	}

	slog.Info("tab ready", "url", target)
	return p, nil
}

// URL returns the current location of the tab.
func (p *Page) URL(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", classify(ctx, err)
	}
	return res.Value.Str(), nil
}

// Root returns document.documentElement.
func (p *Page) Root(ctx context.Context) (dom.Node, error) {
	return p.elementByJS(ctx, `() => document.documentElement`)
}

// ScrollingElement returns document.scrollingElement, falling back to the
// document element on pages that do not define it.
func (p *Page) ScrollingElement(ctx context.Context) (dom.Node, error) {
	return p.elementByJS(ctx, `() => document.scrollingElement || document.documentElement`)
}

// FindXPath waits up to timeout for expr to match.
func (p *Page) FindXPath(ctx context.Context, expr string, timeout time.Duration) (dom.Node, error) {
	el, err := p.page.Context(ctx).Timeout(timeout).ElementX(expr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("xpath %q: %w", expr, dom.ErrNotFound)
	}
	return &element{el: el}, nil
}

// HTML returns the rendered document, used to save a page for offline replay.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", classify(ctx, err)
	}
	return html, nil
}

// Close releases the tab. With keep set the tab stays open for inspection.
// Close is idempotent.
func (p *Page) Close(keep bool) {
	if p.closed {
		return
	}
	p.closed = true
	p.owner.openTabs.Add(-1)

	if p.router != nil {
		_ = p.router.Stop()
	}
	if keep {
		slog.Info("keeping tab open")
		return
	}
	// about:blank first so the renderer drops the listing DOM even if Close fails.
	if err := p.page.Navigate("about:blank"); err != nil {
		slog.Warn("cleanup: failed to navigate to about:blank", "error", err)
	}
	if err := p.page.Close(); err != nil {
		slog.Warn("cleanup: failed to close tab", "error", err)
	}
}

func (p *Page) elementByJS(ctx context.Context, js string) (dom.Node, error) {
	el, err := p.page.Context(ctx).ElementByJS(rod.Eval(js))
	if err != nil {
		return nil, classify(ctx, err)
	}
	return &element{el: el}, nil
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func toSetCookie(c models.Cookie) proto.NetworkSetCookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	sc := proto.NetworkSetCookie{
		Name:   c.Name,
		Value:  c.Value,
		Domain: c.Domain,
		Path:   path,
		Secure: c.Secure,
	}
	switch c.SameSite {
	case "Strict", "strict":
		sc.SameSite = proto.NetworkCookieSameSiteStrict
	case "Lax", "lax":
		sc.SameSite = proto.NetworkCookieSameSiteLax
	case "None", "none", "no_restriction":
		sc.SameSite = proto.NetworkCookieSameSiteNone
	}
	if c.Expiry > 0 {
		sc.Expires = proto.TimeSinceEpoch(c.Expiry)
	}
	return sc
}

// categorizeError wraps navigation errors into HarvestErrors.
func categorizeError(err error, msg string) *models.HarvestError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewHarvestError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewHarvestError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewHarvestError(models.ErrCodeNavigation, msg, err)
	}
}
