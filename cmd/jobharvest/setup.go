package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/use-agent/jobharvest/ai"
	"github.com/use-agent/jobharvest/browser"
	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/cookies"
	"github.com/use-agent/jobharvest/extract"
	"github.com/use-agent/jobharvest/harvest"
	"github.com/use-agent/jobharvest/runner"
	"github.com/use-agent/jobharvest/webhook"
)

// newRunner wires the harvester, the optional classifier and the webhook
// notifier around source. The returned cleanup releases the classifier.
func newRunner(ctx context.Context, cfg *config.Config, source runner.Source, withAI bool) (*runner.Runner, func(), error) {
	h := harvest.New(cfg.Harvest, extract.New(extract.GlintsSchema()))
	opts := []runner.Option{
		runner.WithNotifier(webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout)),
	}

	cleanup := func() {}
	if withAI {
		classifier, err := ai.NewClassifier(ctx, cfg.AI)
		if err != nil {
			return nil, nil, fmt.Errorf("init %s classifier: %w", cfg.AI.Provider, err)
		}
		slog.Info("AI clustering enabled", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
		opts = append(opts, runner.WithEnricher(ai.NewEnricher(classifier, cfg.AI)))
		cleanup = func() { _ = classifier.Close() }
	}

	return runner.New(cfg, source, h, opts...), cleanup, nil
}

// launchSource starts the browser and returns a source that opens one tab
// per keyword with the given cookies applied.
func launchSource(cfg *config.Config, cookieArg string) (*runner.BrowserSource, *browser.Browser, error) {
	opts := browser.OpenOptions{ConsentLabels: cfg.Site.ConsentLabels}
	if cookieArg != "" {
		cs, err := cookies.Load(cookieArg, cfg.Site.CookieDomain)
		if err != nil {
			return nil, nil, fmt.Errorf("load cookies: %w", err)
		}
		if len(cs) == 0 {
			slog.Warn("no cookies parsed", "source", cookieArg)
		}
		opts.Cookies = cs
	}

	b, err := browser.Launch(cfg.Browser)
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Info("browser source ready", "stealth", cfg.Browser.Stealth, "cookies", len(opts.Cookies))
	return &runner.BrowserSource{Browser: b, Options: opts}, b, nil
}
