package content

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	siteerrors "github.com/conneroisu/shopfront/internal/errors"
	"github.com/conneroisu/shopfront/internal/validation"
)

// frontMatter mirrors the YAML header of a post file.
type frontMatter struct {
	Title       string   `yaml:"title"`
	Slug        string   `yaml:"slug"`
	Date        string   `yaml:"pubDate"`
	LegacyDate  string   `yaml:"date"`
	Excerpt     string   `yaml:"excerpt"`
	Description string   `yaml:"description"`
	Categories  []string `yaml:"categories"`
	Category    string   `yaml:"category"`
	Author      string   `yaml:"author"`
	Draft       bool     `yaml:"draft"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2 2006",
	"January 2, 2006",
}

var yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// postExtensions are the file types read as posts.
var postExtensions = map[string]bool{".md": true, ".markdown": true, ".mdx": true}

// LoadPosts reads every post below dir in lexical path order. A missing
// directory yields no posts.
func LoadPosts(dir string) ([]Post, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var posts []Post
	seen := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !postExtensions[strings.ToLower(filepath.Ext(path))] || strings.HasPrefix(d.Name(), "_") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return siteerrors.NewIOError("ERR_READ_POST", "failed to read post", err).WithFile(path)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		post, err := ParsePost(filepath.ToSlash(rel), data)
		if err != nil {
			var se *siteerrors.SiteError
			if errors.As(err, &se) {
				return se.WithFile(path)
			}
			return err
		}
		post.Path = path

		if prev, dup := seen[post.Slug]; dup {
			return siteerrors.NewBuildError("ERR_DUPLICATE_SLUG",
				fmt.Sprintf("slug %q is used by %s and %s", post.Slug, prev, path), nil).WithFile(path)
		}
		seen[post.Slug] = path
		posts = append(posts, post)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ParsePost decodes one post file. rel is the path relative to the posts
// directory and supplies the slug when the front matter does not.
func ParsePost(rel string, data []byte) (Post, error) {
	var fm frontMatter
	if _, err := frontmatter.Parse(bytes.NewReader(data), &fm, yamlFormat); err != nil {
		return Post{}, siteerrors.NewBuildError("ERR_FRONT_MATTER", "invalid front matter", err)
	}

	slug := strings.Trim(fm.Slug, "/")
	if slug == "" {
		slug = strings.TrimSuffix(rel, filepath.Ext(rel))
		slug = strings.TrimSuffix(slug, "/index")
		slug = strings.ToLower(slug)
	}
	if err := validation.ValidateSlug(slug); err != nil {
		return Post{}, siteerrors.NewBuildError("ERR_INVALID_SLUG", err.Error(), nil)
	}

	raw := fm.Date
	if raw == "" {
		raw = fm.LegacyDate
	}
	if raw == "" {
		return Post{}, siteerrors.NewBuildError("ERR_MISSING_DATE", fmt.Sprintf("post %q has no pubDate", slug), nil)
	}
	date, err := parseDate(raw)
	if err != nil {
		return Post{}, siteerrors.NewBuildError("ERR_INVALID_DATE", fmt.Sprintf("post %q: %v", slug, err), nil)
	}

	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = TitleFromSlug(slug)
	}

	categories := make([]string, 0, len(fm.Categories)+1)
	for _, c := range fm.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	if c := strings.TrimSpace(fm.Category); c != "" && len(categories) == 0 {
		categories = append(categories, c)
	}

	return Post{
		Slug:        slug,
		Title:       title,
		Date:        date,
		Excerpt:     strings.TrimSpace(fm.Excerpt),
		Description: strings.TrimSpace(fm.Description),
		Categories:  categories,
		Author:      strings.TrimSpace(fm.Author),
		Draft:       fm.Draft,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q, use YYYY-MM-DD or RFC 3339", raw)
}
