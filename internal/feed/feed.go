// Package feed turns the blog collection into RSS items.
package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/shopfront/internal/content"
)

// DefaultAuthor is used for items whose post names no author.
const DefaultAuthor = "Our Team"

// FeedItem is the read-only projection of a post published in the feed.
type FeedItem struct {
	Title       string
	PubDate     time.Time
	Description string
	// Link is site-relative, always /blog/<slug>/.
	Link       string
	Categories []string
	Author     string
}

type options struct {
	fallbackAuthor string
}

// Option configures BuildFeed.
type Option func(*options)

// WithFallbackAuthor replaces DefaultAuthor.
func WithFallbackAuthor(name string) Option {
	return func(o *options) {
		if name = strings.TrimSpace(name); name != "" {
			o.fallbackAuthor = name
		}
	}
}

// BuildFeed selects and orders the posts that appear in the feed. Drafts are
// dropped when isProduction is set. Items are newest first; posts sharing a
// date keep their input order. The input slice is not modified.
func BuildFeed(posts []content.Post, isProduction bool, opts ...Option) []FeedItem {
	o := options{fallbackAuthor: DefaultAuthor}
	for _, opt := range opts {
		opt(&o)
	}

	selected := content.Published(posts, isProduction)
	ordered := make([]content.Post, len(selected))
	copy(ordered, selected)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.After(ordered[j].Date)
	})

	items := make([]FeedItem, 0, len(ordered))
	for _, p := range ordered {
		items = append(items, toItem(p, o))
	}
	return items
}

// PostLink returns the site-relative URL of a post.
func PostLink(slug string) string {
	return "/blog/" + strings.Trim(slug, "/") + "/"
}

func toItem(p content.Post, o options) FeedItem {
	description := p.Excerpt
	if description == "" {
		description = p.Description
	}

	categories := make([]string, len(p.Categories))
	copy(categories, p.Categories)

	author := p.Author
	if author == "" {
		author = o.fallbackAuthor
	}

	return FeedItem{
		Title:       p.Title,
		PubDate:     p.Date,
		Description: description,
		Link:        PostLink(p.Slug),
		Categories:  categories,
		Author:      author,
	}
}
