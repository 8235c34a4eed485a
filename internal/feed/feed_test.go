package feed

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/conneroisu/shopfront/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildFeedOrdersNewestFirst(t *testing.T) {
	posts := []content.Post{
		{Slug: "january", Title: "January", Date: day(2024, 1, 1)},
		{Slug: "june", Title: "June", Date: day(2024, 6, 15)},
		{Slug: "march", Title: "March", Date: day(2024, 3, 15)},
	}

	items := BuildFeed(posts, true)
	require.Len(t, items, 3)
	assert.Equal(t, "June", items[0].Title)
	assert.Equal(t, "March", items[1].Title)
	assert.Equal(t, "January", items[2].Title)

	assert.Equal(t, "january", posts[0].Slug, "input must not be reordered")
}

func TestBuildFeedStableForEqualDates(t *testing.T) {
	posts := []content.Post{
		{Slug: "first", Date: day(2024, 5, 1)},
		{Slug: "newest", Date: day(2024, 5, 2)},
		{Slug: "second", Date: day(2024, 5, 1)},
		{Slug: "third", Date: day(2024, 5, 1)},
	}

	items := BuildFeed(posts, false)
	links := make([]string, len(items))
	for i, item := range items {
		links[i] = item.Link
	}
	assert.Equal(t, []string{"/blog/newest/", "/blog/first/", "/blog/second/", "/blog/third/"}, links)
}

func TestBuildFeedDrafts(t *testing.T) {
	posts := []content.Post{
		{Slug: "live", Date: day(2024, 1, 1)},
		{Slug: "wip", Date: day(2024, 2, 1), Draft: true},
	}

	prod := BuildFeed(posts, true)
	require.Len(t, prod, 1)
	assert.Equal(t, "/blog/live/", prod[0].Link)

	dev := BuildFeed(posts, false)
	require.Len(t, dev, 2)
	assert.Equal(t, "/blog/wip/", dev[0].Link)
}

func TestBuildFeedDescriptionFallback(t *testing.T) {
	posts := []content.Post{
		{Slug: "both", Excerpt: "excerpt", Description: "description", Date: day(2024, 3, 1)},
		{Slug: "desc-only", Description: "description", Date: day(2024, 2, 1)},
		{Slug: "neither", Date: day(2024, 1, 1)},
	}

	items := BuildFeed(posts, true)
	assert.Equal(t, "excerpt", items[0].Description)
	assert.Equal(t, "description", items[1].Description)
	assert.Equal(t, "", items[2].Description)
}

func TestBuildFeedDefaults(t *testing.T) {
	posts := []content.Post{
		{Slug: "anon", Date: day(2024, 1, 1)},
		{Slug: "signed", Date: day(2023, 1, 1), Author: "Sam", Categories: []string{"Tips"}},
	}

	items := BuildFeed(posts, true)
	assert.Equal(t, DefaultAuthor, items[0].Author)
	assert.NotNil(t, items[0].Categories)
	assert.Empty(t, items[0].Categories)
	assert.Equal(t, "Sam", items[1].Author)
	assert.Equal(t, []string{"Tips"}, items[1].Categories)

	items = BuildFeed(posts, true, WithFallbackAuthor("Acme Plumbing"))
	assert.Equal(t, "Acme Plumbing", items[0].Author)

	items = BuildFeed(posts, true, WithFallbackAuthor("   "))
	assert.Equal(t, DefaultAuthor, items[0].Author)
}

func TestBuildFeedEmpty(t *testing.T) {
	assert.Empty(t, BuildFeed(nil, true))
}

type atomSelfLink struct {
	Href string `xml:"href,attr"`
}

type parsedRSS struct {
	Version string `xml:"version,attr"`
	Channel struct {
		Title         string       `xml:"title"`
		SelfLink      atomSelfLink `xml:"http://www.w3.org/2005/Atom link"`
		Link          string       `xml:"link"`
		Language      string       `xml:"language"`
		LastBuildDate string       `xml:"lastBuildDate"`
		Items         []struct {
			Title       string   `xml:"title"`
			Link        string   `xml:"link"`
			GUID        string   `xml:"guid"`
			PubDate     string   `xml:"pubDate"`
			Description string   `xml:"description"`
			Categories  []string `xml:"category"`
		} `xml:"item"`
	} `xml:"channel"`
}

func TestWriteRSS(t *testing.T) {
	items := []FeedItem{
		{
			Title:       "Fixing a <dripping> tap",
			PubDate:     time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC),
			Description: "<p>Save <strong>water</strong> &amp; money.</p><script>alert(1)</script>",
			Link:        "/blog/dripping-tap/",
			Categories:  []string{"DIY", "Water"},
			Author:      "Sam",
		},
		{
			Title:   "Welcome",
			PubDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Link:    "/blog/welcome/",
		},
	}

	var buf bytes.Buffer
	err := WriteRSS(&buf, Channel{
		Title:       "Acme Plumbing",
		Description: "Tips and news",
		SiteURL:     "https://acme.example/",
		Language:    "en-us",
		FeedPath:    "/rss.xml",
	}, items)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, `<atom:link href="https://acme.example/rss.xml" rel="self" type="application/rss+xml"></atom:link>`)
	assert.Contains(t, out, `<dc:creator>Sam</dc:creator>`)
	assert.Contains(t, out, `isPermaLink="true"`)

	var doc parsedRSS
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, "Acme Plumbing", doc.Channel.Title)
	assert.Equal(t, "https://acme.example/", doc.Channel.Link)
	assert.Equal(t, "https://acme.example/rss.xml", doc.Channel.SelfLink.Href)
	assert.Equal(t, "en-us", doc.Channel.Language)
	assert.Equal(t, "Sat, 15 Jun 2024 09:30:00 +0000", doc.Channel.LastBuildDate)

	require.Len(t, doc.Channel.Items, 2)
	first := doc.Channel.Items[0]
	assert.Equal(t, "Fixing a <dripping> tap", first.Title)
	assert.Equal(t, "https://acme.example/blog/dripping-tap/", first.Link)
	assert.Equal(t, first.Link, first.GUID)
	assert.Equal(t, "Sat, 15 Jun 2024 09:30:00 +0000", first.PubDate)
	assert.Equal(t, "Save water & money.", first.Description)
	assert.Equal(t, []string{"DIY", "Water"}, first.Categories)

	assert.Empty(t, doc.Channel.Items[1].Categories)
	assert.NotContains(t, out, "<category></category>")
}

func TestWriteRSSBuiltAt(t *testing.T) {
	var buf bytes.Buffer
	built := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, WriteRSS(&buf, Channel{Title: "t", SiteURL: "https://acme.example", BuiltAt: built}, nil))
	assert.Contains(t, buf.String(), "<lastBuildDate>Mon, 01 Jul 2024 12:00:00 +0000</lastBuildDate>")
}

func TestWriteRSSRequiresAbsoluteURL(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRSS(&buf, Channel{Title: "t", SiteURL: "/relative"}, nil)
	assert.Error(t, err)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain   text\n here", "plain text here"},
		{"<p>Hello <em>world</em></p>", "Hello world"},
		{"Fish &amp; chips", "Fish & chips"},
		{"<style>p{}</style><div>Kept</div>", "Kept"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), "input %q", tt.in)
	}
}
