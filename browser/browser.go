// Package browser owns the Chromium process and hands out harvest tabs that
// implement dom.Session on top of go-rod.
package browser

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/models"
)

// Browser manages the browser lifecycle. It is safe for concurrent use, but
// the harvester drives one tab at a time.
type Browser struct {
	browser   *rod.Browser
	cfg       config.BrowserConfig
	openTabs  atomic.Int32
	startTime time.Time
}

// Launch starts a local Chromium with the configured mode, proxy and binary.
func Launch(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("window-size"), "1366,900")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	return Connect(controlURL, cfg)
}

// Connect attaches to an already running browser through its CDP endpoint.
func Connect(controlURL string, cfg config.BrowserConfig) (*Browser, error) {
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	return &Browser{browser: b, cfg: cfg, startTime: time.Now()}, nil
}

// OpenTabs returns the number of harvest tabs not yet closed.
func (b *Browser) OpenTabs() int {
	return int(b.openTabs.Load())
}

// Uptime returns how long the browser has been connected.
func (b *Browser) Uptime() time.Duration {
	return time.Since(b.startTime)
}

// Close kills the browser process. Tabs kept open with KeepTabs go with it.
func (b *Browser) Close() {
	slog.Info("closing browser", "open_tabs", b.OpenTabs())
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
}
