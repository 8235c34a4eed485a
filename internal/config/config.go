// Package config provides configuration management for shopfront using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the SHOPFRONT_ prefix, defaults, and validation. It covers the site
// metadata used by the feed and preview images, the build output layout, the
// contact form relay, the development server, and the brand constants.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/conneroisu/shopfront/internal/form"
	"github.com/conneroisu/shopfront/internal/validation"
	"github.com/spf13/viper"
)

type Config struct {
	Site    SiteConfig    `mapstructure:"site" yaml:"site"`
	Content ContentConfig `mapstructure:"content" yaml:"content"`
	Build   BuildConfig   `mapstructure:"build" yaml:"build"`
	Form    FormConfig    `mapstructure:"form" yaml:"form"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Inbox   InboxConfig   `mapstructure:"inbox" yaml:"inbox"`
	Brand   BrandConfig   `mapstructure:"brand" yaml:"brand"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// SiteConfig is the static site configuration object shared with the feed
// and the preview image footer.
type SiteConfig struct {
	Title       string       `mapstructure:"title" yaml:"title"`
	Description string       `mapstructure:"description" yaml:"description"`
	URL         string       `mapstructure:"url" yaml:"url"`
	Author      string       `mapstructure:"author" yaml:"author"`
	Language    string       `mapstructure:"language" yaml:"language"`
	Pages       []PageConfig `mapstructure:"pages" yaml:"pages"`
}

// PageConfig describes a static page that gets its own preview image.
type PageConfig struct {
	Slug     string `mapstructure:"slug" yaml:"slug"`
	Title    string `mapstructure:"title" yaml:"title"`
	Category string `mapstructure:"category" yaml:"category"`
}

type ContentConfig struct {
	PostsDir string `mapstructure:"posts_dir" yaml:"posts_dir"`
}

type BuildConfig struct {
	OutputDir  string `mapstructure:"output_dir" yaml:"output_dir"`
	Production bool   `mapstructure:"production" yaml:"production"`
	FeedFile   string `mapstructure:"feed_file" yaml:"feed_file"`
	ImageDir   string `mapstructure:"image_dir" yaml:"image_dir"`
}

type FormConfig struct {
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey     string        `mapstructure:"access_key" yaml:"access_key"`
	SuccessPath   string        `mapstructure:"success_path" yaml:"success_path"`
	RedirectDelay time.Duration `mapstructure:"redirect_delay" yaml:"redirect_delay"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	HoneypotField string        `mapstructure:"honeypot_field" yaml:"honeypot_field"`
	RetryLimit    int           `mapstructure:"retry_limit" yaml:"retry_limit"`
	RetryWindow   time.Duration `mapstructure:"retry_window" yaml:"retry_window"`
}

type ServerConfig struct {
	Port             int      `mapstructure:"port" yaml:"port"`
	Host             string   `mapstructure:"host" yaml:"host"`
	Environment      string   `mapstructure:"environment" yaml:"environment"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ContactRateLimit int      `mapstructure:"contact_rate_limit" yaml:"contact_rate_limit"`
	Watch            bool     `mapstructure:"watch" yaml:"watch"`
}

type InboxConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// BrandConfig holds the constants painted onto every preview image.
type BrandConfig struct {
	Name       string `mapstructure:"name" yaml:"name"`
	Tagline    string `mapstructure:"tagline" yaml:"tagline"`
	Background string `mapstructure:"background" yaml:"background"`
	Accent     string `mapstructure:"accent" yaml:"accent"`
	Foreground string `mapstructure:"foreground" yaml:"foreground"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

const (
	DefaultRedirectDelay = 1500 * time.Millisecond
	DefaultHoneypotField = "botcheck"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v, applies defaults for unset values, and validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config, v)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config, v *viper.Viper) {
	if config.Site.Title == "" {
		config.Site.Title = "My Small Business"
	}
	if config.Site.URL == "" {
		config.Site.URL = "http://localhost:4321"
	}
	if config.Site.Language == "" {
		config.Site.Language = "en-us"
	}
	if config.Site.Author == "" {
		config.Site.Author = config.Site.Title
	}

	if config.Content.PostsDir == "" {
		config.Content.PostsDir = "content/blog"
	}

	if config.Build.OutputDir == "" {
		config.Build.OutputDir = "dist"
	}
	if config.Build.FeedFile == "" {
		config.Build.FeedFile = "rss.xml"
	}
	if config.Build.ImageDir == "" {
		config.Build.ImageDir = "og"
	}

	if config.Form.SuccessPath == "" {
		config.Form.SuccessPath = "/thank-you/"
	}
	if !v.IsSet("form.redirect_delay") {
		config.Form.RedirectDelay = DefaultRedirectDelay
	}
	if config.Form.Timeout == 0 {
		config.Form.Timeout = 10 * time.Second
	}
	if config.Form.HoneypotField == "" {
		config.Form.HoneypotField = DefaultHoneypotField
	}
	if !v.IsSet("form.retry_limit") {
		config.Form.RetryLimit = 3
	}
	if config.Form.RetryWindow == 0 {
		config.Form.RetryWindow = time.Minute
	}

	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !v.IsSet("server.port") {
		config.Server.Port = 4321
	}
	if config.Server.Environment == "" {
		config.Server.Environment = "development"
	}
	if config.Server.ContactRateLimit == 0 {
		config.Server.ContactRateLimit = 5
	}
	if !v.IsSet("server.watch") {
		config.Server.Watch = true
	}

	if config.Inbox.Path == "" {
		config.Inbox.Path = ".shopfront/inbox.db"
	}

	if config.Brand.Name == "" {
		config.Brand.Name = config.Site.Title
	}
	if config.Brand.Background == "" {
		config.Brand.Background = "#0f172a"
	}
	if config.Brand.Accent == "" {
		config.Brand.Accent = "#f59e0b"
	}
	if config.Brand.Foreground == "" {
		config.Brand.Foreground = "#f8fafc"
	}

	if config.Log.Level == "" {
		config.Log.Level = v.GetString("log-level")
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateSiteConfig(&config.Site); err != nil {
		return fmt.Errorf("site config: %w", err)
	}

	if err := validateBuildConfig(config); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if err := validateFormConfig(&config.Form); err != nil {
		return fmt.Errorf("form config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateBrandConfig(&config.Brand); err != nil {
		return fmt.Errorf("brand config: %w", err)
	}

	return nil
}

func validateSiteConfig(config *SiteConfig) error {
	if err := validation.ValidateURL(config.URL); err != nil {
		return fmt.Errorf("url: %w", err)
	}

	seen := make(map[string]bool, len(config.Pages))
	for _, page := range config.Pages {
		if page.Slug == "" {
			return fmt.Errorf("page %q has no slug", page.Title)
		}
		if err := validation.ValidateSlug(page.Slug); err != nil {
			return fmt.Errorf("page %q: %w", page.Slug, err)
		}
		if seen[page.Slug] {
			return fmt.Errorf("duplicate page slug %q", page.Slug)
		}
		seen[page.Slug] = true
	}

	return nil
}

func validateBuildConfig(config *Config) error {
	for name, path := range map[string]string{
		"output_dir":        config.Build.OutputDir,
		"feed_file":         config.Build.FeedFile,
		"image_dir":         config.Build.ImageDir,
		"content.posts_dir": config.Content.PostsDir,
	} {
		if err := validation.ValidatePath(path); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

func validateFormConfig(config *FormConfig) error {
	if config.Endpoint != "" {
		parsed, err := url.Parse(config.Endpoint)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("endpoint must be http or https, got %q", parsed.Scheme)
		}
		if parsed.Host == "" {
			return fmt.Errorf("endpoint must have a host")
		}
	}

	if config.RedirectDelay < 0 {
		return fmt.Errorf("redirect_delay cannot be negative")
	}
	if config.RetryLimit < 0 {
		return fmt.Errorf("retry_limit cannot be negative")
	}
	if form.IsPayloadKey(config.HoneypotField) {
		return fmt.Errorf("honeypot_field %q is already a form field", config.HoneypotField)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Port 0 lets the system pick one in tests.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if err := validation.ValidateArgument(config.Host); err != nil {
		return fmt.Errorf("host: %w", err)
	}

	return nil
}

func validateBrandConfig(config *BrandConfig) error {
	for name, value := range map[string]string{
		"background": config.Background,
		"accent":     config.Accent,
		"foreground": config.Foreground,
	} {
		if !hexColor.MatchString(value) {
			return fmt.Errorf("%s must be a #rrggbb colour, got %q", name, value)
		}
	}

	return nil
}

// IsProductionServer reports whether the dev server should behave like production.
func (c *Config) IsProductionServer() bool {
	return c.Server.Environment == "production"
}
