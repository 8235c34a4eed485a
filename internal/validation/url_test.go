package validation

import (
	"net/url"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		{name: "valid http URL", url: "http://localhost:4321", expectErr: false},
		{name: "valid https URL", url: "https://acme-plumbing.example", expectErr: false},
		{name: "valid URL with path", url: "https://example.com/blog/", expectErr: false},
		{name: "javascript scheme", url: "javascript:alert('xss')", expectErr: true},
		{name: "file scheme", url: "file:///etc/passwd", expectErr: true},
		{name: "semicolon injection", url: "http://example.com; rm -rf /", expectErr: true},
		{name: "backtick injection", url: "http://example.com`whoami`", expectErr: true},
		{name: "newline injection", url: "http://example.com\nrm -rf /", expectErr: true},
		{name: "malformed URL", url: "not-a-url", expectErr: true},
		{name: "empty URL", url: "", expectErr: true},
		{name: "URL without hostname", url: "http://", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.expectErr && err == nil {
				t.Errorf("ValidateURL(%q) expected error, got nil", tt.url)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("ValidateURL(%q) unexpected error: %v", tt.url, err)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	valid := []string{"about", "services", "blog/spring-cleaning-tips", "faq-2024"}
	for _, slug := range valid {
		if err := ValidateSlug(slug); err != nil {
			t.Errorf("ValidateSlug(%q) unexpected error: %v", slug, err)
		}
	}

	invalid := []string{"", "About", "../etc", "with space", "trailing-", "/leading", "a//b"}
	for _, slug := range invalid {
		if err := ValidateSlug(slug); err == nil {
			t.Errorf("ValidateSlug(%q) expected error, got nil", slug)
		}
	}
}

// FuzzValidateURL checks that every accepted URL is http(s) and free of shell metacharacters.
func FuzzValidateURL(f *testing.F) {
	f.Add("http://localhost:4321")
	f.Add("https://example.com")
	f.Add("javascript:alert('xss')")
	f.Add("http://localhost:8080; rm -rf /")
	f.Add("http://localhost:8080\r\nHost: malicious.com")
	f.Add("")

	f.Fuzz(func(t *testing.T, testURL string) {
		if len(testURL) > 10000 {
			t.Skip("URL too long")
		}

		if err := ValidateURL(testURL); err != nil {
			return
		}

		parsed, parseErr := url.Parse(testURL)
		if parseErr != nil {
			t.Fatalf("ValidateURL passed but url.Parse failed for: %q", testURL)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			t.Errorf("ValidateURL passed for dangerous scheme: %q", testURL)
		}
		for _, char := range []string{";", "&", "|", "`", "$", "<", ">", "\n", "\r", " "} {
			if strings.Contains(testURL, char) {
				t.Errorf("ValidateURL passed for URL with %q: %q", char, testURL)
			}
		}
	})
}
