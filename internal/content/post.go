// Package content reads the blog collection: markdown files with YAML front
// matter under the configured posts directory.
package content

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Post is one entry of the blog collection. Posts are immutable once loaded.
type Post struct {
	Slug        string
	Title       string
	Date        time.Time
	Excerpt     string
	Description string
	Categories  []string
	Author      string
	Draft       bool

	// Path is the source file the post was read from.
	Path string
}

// Published returns the posts that belong on the public site. Drafts are kept
// outside production so authors can preview them.
func Published(posts []Post, isProduction bool) []Post {
	if !isProduction {
		return posts
	}
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if !p.Draft {
			out = append(out, p)
		}
	}
	return out
}

// TitleFromSlug turns "spring-boiler-checks" into "Spring Boiler Checks".
func TitleFromSlug(slug string) string {
	base := slug
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	words := strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return cases.Title(language.English).String(strings.Join(strings.Fields(words), " "))
}
