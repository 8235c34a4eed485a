//go:build property
// +build property

package config

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

func validBase() *Config {
	return &Config{
		Site:    SiteConfig{URL: "https://acme.example"},
		Content: ContentConfig{PostsDir: "content/blog"},
		Build:   BuildConfig{OutputDir: "dist", FeedFile: "rss.xml", ImageDir: "og"},
		Server:  ServerConfig{Host: "localhost", Port: 4321},
		Brand:   BrandConfig{Background: "#0f172a", Accent: "#f59e0b", Foreground: "#f8fafc"},
	}
}

// TestServerConfigProperties tests port validation.
func TestServerConfigProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ports in range are accepted", prop.ForAll(
		func(port int) bool {
			cfg := validBase()
			cfg.Server.Port = port
			return validateConfig(cfg) == nil
		},
		gen.IntRange(0, 65535),
	))

	properties.Property("ports out of range are rejected", prop.ForAll(
		func(port int) bool {
			cfg := validBase()
			cfg.Server.Port = port
			return validateConfig(cfg) != nil
		},
		gen.OneGenOf(gen.IntRange(-100000, -1), gen.IntRange(65536, 1000000)),
	))

	properties.TestingRun(t)
}

// TestBrandConfigProperties tests colour validation.
func TestBrandConfigProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("any #rrggbb colour is accepted", prop.ForAll(
		func(r, g, b uint8) bool {
			cfg := validBase()
			cfg.Brand.Accent = fmt.Sprintf("#%02x%02X%02x", r, g, b)
			return validateConfig(cfg) == nil
		},
		gen.UInt8(), gen.UInt8(), gen.UInt8(),
	))

	properties.Property("colour names are rejected", prop.ForAll(
		func(name string) bool {
			cfg := validBase()
			cfg.Brand.Foreground = name
			return validateConfig(cfg) != nil
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestDefaultsProperties tests that defaults never override explicit values.
func TestDefaultsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("explicit title survives defaults", prop.ForAll(
		func(title string) bool {
			v := viper.New()
			v.Set("site.title", title)
			cfg, err := LoadFrom(v)
			return err == nil && cfg.Site.Title == title && cfg.Brand.Name == title
		},
		gen.Identifier(),
	))

	properties.Property("retry limit of zero disables retries", prop.ForAll(
		func(limit int) bool {
			v := viper.New()
			v.Set("form.retry_limit", limit)
			cfg, err := LoadFrom(v)
			return err == nil && cfg.Form.RetryLimit == limit
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
