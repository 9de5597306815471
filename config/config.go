package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultContainerXPath is the listing container on the Glints explore page.
const DefaultContainerXPath = "/html/body/div[2]/div/div[1]/div[2]/div[2]/div[2]/div[4]/div[2]/div[1]"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Harvest   HarvestConfig   `yaml:"harvest"`
	Site      SiteConfig      `yaml:"site"`
	AI        AIConfig        `yaml:"ai"`
	Output    OutputConfig    `yaml:"output"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Mode string `yaml:"mode" validate:"oneof=debug release test"` // default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// Stealth injects go-rod/stealth into every new tab.
	Stealth bool `yaml:"stealth"` // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"`

	// Proxy is an optional upstream proxy URL.
	Proxy string `yaml:"proxy"`

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`

	// NavigationTimeout bounds page.Navigate plus the DOM-stable wait.
	NavigationTimeout time.Duration `yaml:"navigation_timeout" validate:"gt=0"` // default: 60s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`

	// AcceptLanguage is sent on every request of a harvest tab.
	AcceptLanguage string `yaml:"accept_language"` // default: "id-ID,id;q=0.9,en;q=0.8"

	// KeepTabs leaves harvest tabs open for manual inspection.
	KeepTabs bool `yaml:"keep_tabs"`
}

// HarvestConfig tunes container discovery, scrolling and card access.
type HarvestConfig struct {
	// ContainerXPath is the explicit container locator. Empty skips straight
	// to the heuristic scan.
	ContainerXPath string `yaml:"container_xpath"`

	// CardSelector matches one rendered job card.
	CardSelector string `yaml:"card_selector" validate:"required"` // default: "[data-gtm-job-id]"

	// LocatorTimeout bounds the wait for ContainerXPath to appear.
	LocatorTimeout time.Duration `yaml:"locator_timeout" validate:"gte=0"` // default: 8s

	// CardWaitTimeout bounds the wait for the first card before the heuristic scan.
	CardWaitTimeout time.Duration `yaml:"card_wait_timeout" validate:"gte=0"` // default: 25s

	// MaxScrollRounds is the scroll-round budget.
	MaxScrollRounds int `yaml:"max_scroll_rounds" validate:"min=1,max=1000"` // default: 30

	// RoundTimeout is how long one round waits for new cards after scrolling.
	RoundTimeout time.Duration `yaml:"round_timeout" validate:"gt=0"` // default: 1.5s

	// PollInterval is the card-count polling period inside a round.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"` // default: 150ms

	// NoGrowthThreshold is the number of consecutive rounds without growth
	// that ends scrolling.
	NoGrowthThreshold int `yaml:"no_growth_threshold" validate:"min=1"` // default: 2

	// ScrollStep is the fraction of the viewport height scrolled per round.
	ScrollStep float64 `yaml:"scroll_step" validate:"gt=0,lte=2"` // default: 0.92

	// CardRetries is the number of re-locate attempts before a card is skipped.
	CardRetries int `yaml:"card_retries" validate:"min=1"` // default: 3

	// RetryBackoff grows linearly with each card retry.
	RetryBackoff time.Duration `yaml:"retry_backoff" validate:"gte=0"` // default: 100ms

	// MinGroupSize is the smallest card group the heuristic accepts.
	MinGroupSize int `yaml:"min_group_size" validate:"min=2"` // default: 2

	// SimilarityThreshold is the max SimHash distance between sibling cards.
	SimilarityThreshold int `yaml:"similarity_threshold" validate:"min=0,max=64"` // default: 12

	// AncestorDepth limits how far up the resolvers climb.
	AncestorDepth int `yaml:"ancestor_depth" validate:"min=1"` // default: 8
}

// SiteConfig describes the listing site.
type SiteConfig struct {
	BaseURL       string   `yaml:"base_url" validate:"required,url"` // default: "https://glints.com"
	SearchPath    string   `yaml:"search_path"`                      // default: "/id/opportunities/jobs/explore"
	Country       string   `yaml:"country" validate:"len=2"`         // default: "ID"
	Source        string   `yaml:"source"`                           // default: "glints"
	CookieDomain  string   `yaml:"cookie_domain"`                    // default: "glints.com"
	ConsentLabels []string `yaml:"consent_labels"`
}

// AIConfig controls the optional clustering step.
type AIConfig struct {
	// Enabled turns enrichment on for every run.
	Enabled bool `yaml:"enabled"`

	// Provider is "gemini" or "openai" (any OpenAI-compatible endpoint).
	Provider string `yaml:"provider" validate:"oneof=gemini openai"` // default: "gemini"

	Model   string `yaml:"model"`    // default: "gemini-2.5-flash"
	APIKey  string `yaml:"api_key"`  // GEMINI_API_KEY or JOBHARVEST_AI_API_KEY
	BaseURL string `yaml:"base_url"` // openai only

	// Retries per record before falling back to unknown.
	Retries int `yaml:"retries" validate:"min=1"` // default: 3

	// Backoff grows linearly between retries.
	Backoff time.Duration `yaml:"backoff" validate:"gte=0"` // default: 1.5s

	// Pause between records.
	Pause time.Duration `yaml:"pause" validate:"gte=0"` // default: 300ms

	Timeout time.Duration `yaml:"timeout" validate:"gt=0"` // default: 30s
}

// OutputConfig controls the file writers.
type OutputConfig struct {
	// Prefix is prepended to every output file, may contain a directory.
	Prefix string `yaml:"prefix" validate:"required"` // default: "jobs"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"` // default: 0.2

	// Burst is the maximum burst size per API key.
	Burst int `yaml:"burst" validate:"min=1"` // default: 2
}

// CacheConfig controls the harvest response cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" validate:"min=0"` // default: 200
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"` // default: "info"
	Format string `yaml:"format" validate:"oneof=json text"`            // default: "json"
}

// WebhookConfig controls completion callbacks.
type WebhookConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"` // default: 10s
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Browser: BrowserConfig{
			Headless:             true,
			Stealth:              true,
			NavigationTimeout:    60 * time.Second,
			BlockedResourceTypes: []string{"Image", "Font", "Media"},
			AcceptLanguage:       "id-ID,id;q=0.9,en;q=0.8",
		},
		Harvest: HarvestConfig{
			ContainerXPath:      DefaultContainerXPath,
			CardSelector:        "[data-gtm-job-id]",
			LocatorTimeout:      8 * time.Second,
			CardWaitTimeout:     25 * time.Second,
			MaxScrollRounds:     30,
			RoundTimeout:        1500 * time.Millisecond,
			PollInterval:        150 * time.Millisecond,
			NoGrowthThreshold:   2,
			ScrollStep:          0.92,
			CardRetries:         3,
			RetryBackoff:        100 * time.Millisecond,
			MinGroupSize:        2,
			SimilarityThreshold: 12,
			AncestorDepth:       8,
		},
		Site: SiteConfig{
			BaseURL:       "https://glints.com",
			SearchPath:    "/id/opportunities/jobs/explore",
			Country:       "ID",
			Source:        "glints",
			CookieDomain:  "glints.com",
			ConsentLabels: []string{"Terima", "Setuju", "Accept all", "Saya setuju", "Allow all"},
		},
		AI: AIConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Retries:  3,
			Backoff:  1500 * time.Millisecond,
			Pause:    300 * time.Millisecond,
			Timeout:  30 * time.Second,
		},
		Output:    OutputConfig{Prefix: "jobs"},
		Auth:      AuthConfig{Enabled: true},
		RateLimit: RateLimitConfig{RequestsPerSecond: 0.2, Burst: 2},
		Cache:     CacheConfig{MaxEntries: 200},
		Log:       LogConfig{Level: "info", Format: "json"},
		Webhook:   WebhookConfig{Timeout: 10 * time.Second},
	}
}

// Load reads the YAML file named by JOBHARVEST_CONFIG (if set) and then
// environment variables, which take precedence.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("JOBHARVEST_CONFIG"))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks value ranges declared in struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envOr("JOBHARVEST_HOST", c.Server.Host)
	c.Server.Port = envIntOr("JOBHARVEST_PORT", c.Server.Port)
	c.Server.Mode = envOr("JOBHARVEST_MODE", c.Server.Mode)

	c.Browser.Headless = envBoolOr("JOBHARVEST_HEADLESS", c.Browser.Headless)
	c.Browser.Stealth = envBoolOr("JOBHARVEST_STEALTH", c.Browser.Stealth)
	c.Browser.NoSandbox = envBoolOr("JOBHARVEST_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.Proxy = envOr("JOBHARVEST_PROXY", c.Browser.Proxy)
	c.Browser.BrowserBin = envOr("JOBHARVEST_BROWSER_BIN", c.Browser.BrowserBin)
	c.Browser.NavigationTimeout = envDurationOr("JOBHARVEST_NAV_TIMEOUT", c.Browser.NavigationTimeout)
	c.Browser.BlockedResourceTypes = envSliceOr("JOBHARVEST_BLOCKED_RESOURCES", c.Browser.BlockedResourceTypes)
	c.Browser.AcceptLanguage = envOr("JOBHARVEST_ACCEPT_LANGUAGE", c.Browser.AcceptLanguage)
	c.Browser.KeepTabs = envBoolOr("JOBHARVEST_KEEP_TABS", c.Browser.KeepTabs)

	h := &c.Harvest
	h.ContainerXPath = envOr("JOBHARVEST_CONTAINER_XPATH", h.ContainerXPath)
	h.CardSelector = envOr("JOBHARVEST_CARD_SELECTOR", h.CardSelector)
	h.LocatorTimeout = envDurationOr("JOBHARVEST_LOCATOR_TIMEOUT", h.LocatorTimeout)
	h.CardWaitTimeout = envDurationOr("JOBHARVEST_CARD_WAIT_TIMEOUT", h.CardWaitTimeout)
	h.MaxScrollRounds = envIntOr("JOBHARVEST_MAX_SCROLLS", h.MaxScrollRounds)
	h.RoundTimeout = envDurationOr("JOBHARVEST_ROUND_TIMEOUT", h.RoundTimeout)
	h.PollInterval = envDurationOr("JOBHARVEST_POLL_INTERVAL", h.PollInterval)
	h.NoGrowthThreshold = envIntOr("JOBHARVEST_NO_GROWTH_THRESHOLD", h.NoGrowthThreshold)
	h.ScrollStep = envFloatOr("JOBHARVEST_SCROLL_STEP", h.ScrollStep)
	h.CardRetries = envIntOr("JOBHARVEST_CARD_RETRIES", h.CardRetries)
	h.RetryBackoff = envDurationOr("JOBHARVEST_RETRY_BACKOFF", h.RetryBackoff)
	h.MinGroupSize = envIntOr("JOBHARVEST_MIN_GROUP_SIZE", h.MinGroupSize)
	h.SimilarityThreshold = envIntOr("JOBHARVEST_SIMILARITY_THRESHOLD", h.SimilarityThreshold)
	h.AncestorDepth = envIntOr("JOBHARVEST_ANCESTOR_DEPTH", h.AncestorDepth)

	c.Site.BaseURL = envOr("JOBHARVEST_SITE_URL", c.Site.BaseURL)
	c.Site.SearchPath = envOr("JOBHARVEST_SEARCH_PATH", c.Site.SearchPath)
	c.Site.Country = envOr("JOBHARVEST_COUNTRY", c.Site.Country)
	c.Site.CookieDomain = envOr("JOBHARVEST_COOKIE_DOMAIN", c.Site.CookieDomain)
	c.Site.ConsentLabels = envSliceOr("JOBHARVEST_CONSENT_LABELS", c.Site.ConsentLabels)

	c.AI.Enabled = envBoolOr("JOBHARVEST_AI", c.AI.Enabled)
	c.AI.Provider = envOr("JOBHARVEST_AI_PROVIDER", c.AI.Provider)
	c.AI.Model = envOr("JOBHARVEST_AI_MODEL", c.AI.Model)
	c.AI.APIKey = envOr("JOBHARVEST_AI_API_KEY", envOr("GEMINI_API_KEY", c.AI.APIKey))
	c.AI.BaseURL = envOr("JOBHARVEST_AI_BASE_URL", c.AI.BaseURL)
	c.AI.Retries = envIntOr("JOBHARVEST_AI_RETRIES", c.AI.Retries)
	c.AI.Backoff = envDurationOr("JOBHARVEST_AI_BACKOFF", c.AI.Backoff)
	c.AI.Pause = envDurationOr("JOBHARVEST_AI_PAUSE", c.AI.Pause)
	c.AI.Timeout = envDurationOr("JOBHARVEST_AI_TIMEOUT", c.AI.Timeout)

	c.Output.Prefix = envOr("JOBHARVEST_OUT", c.Output.Prefix)

	c.Auth.Enabled = envBoolOr("JOBHARVEST_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.APIKeys = envSliceOr("JOBHARVEST_API_KEYS", c.Auth.APIKeys)

	c.RateLimit.RequestsPerSecond = envFloatOr("JOBHARVEST_RATE_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = envIntOr("JOBHARVEST_RATE_BURST", c.RateLimit.Burst)

	c.Cache.MaxEntries = envIntOr("JOBHARVEST_CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.Log.Level = envOr("JOBHARVEST_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("JOBHARVEST_LOG_FORMAT", c.Log.Format)

	c.Webhook.URL = envOr("JOBHARVEST_WEBHOOK_URL", c.Webhook.URL)
	c.Webhook.Secret = envOr("JOBHARVEST_WEBHOOK_SECRET", c.Webhook.Secret)
	c.Webhook.Timeout = envDurationOr("JOBHARVEST_WEBHOOK_TIMEOUT", c.Webhook.Timeout)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
