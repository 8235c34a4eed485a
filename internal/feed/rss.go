package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	atomNamespace = "http://www.w3.org/2005/Atom"
	dcNamespace   = "http://purl.org/dc/elements/1.1/"
	generator     = "shopfront"
)

// Channel describes the feed as a whole.
type Channel struct {
	Title       string
	Description string
	// SiteURL is the absolute site root; item links are resolved against it.
	SiteURL  string
	Language string
	// FeedPath is the site-relative location of the feed file, used for the
	// atom self link.
	FeedPath string
	// BuiltAt stamps lastBuildDate. The newest item date is used when zero.
	BuiltAt time.Time
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	AtomNS  string     `xml:"xmlns:atom,attr"`
	DCNS    string     `xml:"xmlns:dc,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Generator     string    `xml:"generator"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
	Author      string   `xml:"dc:creator,omitempty"`
}

// WriteRSS serializes items as an RSS 2.0 document.
func WriteRSS(w io.Writer, ch Channel, items []FeedItem) error {
	base, err := url.Parse(strings.TrimRight(ch.SiteURL, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("feed: site URL %q must be absolute", ch.SiteURL)
	}

	built := ch.BuiltAt
	if built.IsZero() && len(items) > 0 {
		built = items[0].PubDate
	}

	doc := rssDocument{
		Version: "2.0",
		AtomNS:  atomNamespace,
		DCNS:    dcNamespace,
		Channel: rssChannel{
			Title:       ch.Title,
			Link:        base.String(),
			Description: ch.Description,
			Language:    ch.Language,
			Generator:   generator,
			AtomLink: atomLink{
				Href: resolve(base, ch.FeedPath),
				Rel:  "self",
				Type: "application/rss+xml",
			},
			Items: make([]rssItem, 0, len(items)),
		},
	}
	if !built.IsZero() {
		doc.Channel.LastBuildDate = built.Format(time.RFC1123Z)
	}

	for _, item := range items {
		link := resolve(base, item.Link)
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       item.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			PubDate:     item.PubDate.Format(time.RFC1123Z),
			Description: PlainText(item.Description),
			Categories:  item.Categories,
			Author:      item.Author,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("feed: encode rss: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// PlainText strips markup from an excerpt so feed readers get clean text.
// Input without tags is returned with whitespace collapsed.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return base.String()
	}
	u, err := url.Parse(ref)
	if err != nil {
		return base.String()
	}
	return base.ResolveReference(u).String()
}
