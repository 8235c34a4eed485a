// Package site runs the build: it loads the blog collection, writes the RSS
// feed and renders a preview image for every page and published post.
package site

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/conneroisu/shopfront/internal/config"
	"github.com/conneroisu/shopfront/internal/content"
	siteerrors "github.com/conneroisu/shopfront/internal/errors"
	"github.com/conneroisu/shopfront/internal/feed"
	"github.com/conneroisu/shopfront/internal/logging"
	"github.com/conneroisu/shopfront/internal/ogimage"
)

// DefaultPostCategory labels the badge of posts without categories.
const DefaultPostCategory = "Blog"

// Result summarizes one build.
type Result struct {
	Posts           int
	FeedItems       int
	ImagesWritten   int
	ImagesUnchanged int
	FeedPath        string
	Images          []string
	Duration        time.Duration
	Finished        time.Time
}

// Builder produces the generated parts of the site.
type Builder struct {
	cfg      *config.Config
	renderer *ogimage.Renderer
	logger   logging.Logger
	metrics  *BuildMetrics
	now      func() time.Time
}

// NewBuilder creates a builder for cfg.
func NewBuilder(cfg *config.Config, logger logging.Logger) (*Builder, error) {
	brand, err := ogimage.BrandFromHex(cfg.Brand.Name, cfg.Brand.Background, cfg.Brand.Accent, cfg.Brand.Foreground)
	if err != nil {
		return nil, siteerrors.NewConfigError("ERR_INVALID_BRAND", err.Error())
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Builder{
		cfg:      cfg,
		renderer: ogimage.NewRenderer(brand, cfg.Site.URL),
		logger:   logger.WithComponent("site"),
		metrics:  NewBuildMetrics(),
		now:      time.Now,
	}, nil
}

// Metrics returns the tracker shared by every Build call.
func (b *Builder) Metrics() *BuildMetrics {
	return b.metrics
}

// Build runs the whole pipeline.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	start := b.now()
	op := logging.StartOperation(b.logger, "build")

	result, err := b.build(ctx)
	result.Finished = b.now()
	result.Duration = result.Finished.Sub(start)
	b.metrics.RecordBuild(result, err)

	if err != nil {
		op.EndWithError(ctx, err)
		return result, err
	}
	op.End(ctx,
		"posts", result.Posts,
		"feed_items", result.FeedItems,
		"images_written", result.ImagesWritten,
		"images_unchanged", result.ImagesUnchanged)
	return result, nil
}

func (b *Builder) build(ctx context.Context) (Result, error) {
	var result Result

	posts, err := content.LoadPosts(b.cfg.Content.PostsDir)
	if err != nil {
		return result, err
	}
	result.Posts = len(posts)

	items, path, err := b.writeFeed(posts)
	if err != nil {
		return result, err
	}
	result.FeedItems = len(items)
	result.FeedPath = path

	if err := b.renderImages(ctx, posts, &result); err != nil {
		return result, err
	}
	return result, nil
}

// WriteFeed loads the posts and writes only the RSS feed.
func (b *Builder) WriteFeed() (string, int, error) {
	posts, err := content.LoadPosts(b.cfg.Content.PostsDir)
	if err != nil {
		return "", 0, err
	}
	items, path, err := b.writeFeed(posts)
	return path, len(items), err
}

// RenderImages loads the posts and renders only the preview images.
func (b *Builder) RenderImages(ctx context.Context) (Result, error) {
	var result Result
	posts, err := content.LoadPosts(b.cfg.Content.PostsDir)
	if err != nil {
		return result, err
	}
	result.Posts = len(posts)
	err = b.renderImages(ctx, posts, &result)
	return result, err
}

// Feed renders the RSS document for posts into memory.
func (b *Builder) Feed(posts []content.Post) ([]feed.FeedItem, []byte, error) {
	items := feed.BuildFeed(posts, b.cfg.Build.Production, feed.WithFallbackAuthor(b.cfg.Site.Author))

	var buf bytes.Buffer
	err := feed.WriteRSS(&buf, feed.Channel{
		Title:       b.cfg.Site.Title,
		Description: b.cfg.Site.Description,
		SiteURL:     b.cfg.Site.URL,
		Language:    b.cfg.Site.Language,
		FeedPath:    "/" + filepath.ToSlash(b.cfg.Build.FeedFile),
	}, items)
	if err != nil {
		return nil, nil, siteerrors.NewBuildError("ERR_FEED", "failed to render feed", err)
	}
	return items, buf.Bytes(), nil
}

func (b *Builder) writeFeed(posts []content.Post) ([]feed.FeedItem, string, error) {
	items, data, err := b.Feed(posts)
	if err != nil {
		return nil, "", err
	}

	path := filepath.Join(b.cfg.Build.OutputDir, b.cfg.Build.FeedFile)
	if _, err := writeIfChanged(path, data); err != nil {
		return nil, "", err
	}
	b.logger.Debug(context.Background(), "Feed written", "path", path, "items", len(items))
	return items, path, nil
}

// ImageTarget is one preview image to render.
type ImageTarget struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// ImageTargets lists the images a build produces: one per configured page
// and one per post that is visible in this build mode.
func (b *Builder) ImageTargets(posts []content.Post) []ImageTarget {
	dir := filepath.Join(b.cfg.Build.OutputDir, b.cfg.Build.ImageDir)

	targets := make([]ImageTarget, 0, len(b.cfg.Site.Pages)+len(posts))
	for _, page := range b.cfg.Site.Pages {
		title := page.Title
		if title == "" {
			title = content.TitleFromSlug(page.Slug)
		}
		targets = append(targets, ImageTarget{
			Path:     filepath.Join(dir, filepath.FromSlash(page.Slug)+".png"),
			Title:    title,
			Category: page.Category,
		})
	}

	for _, post := range content.Published(posts, b.cfg.Build.Production) {
		category := DefaultPostCategory
		if len(post.Categories) > 0 {
			category = post.Categories[0]
		}
		targets = append(targets, ImageTarget{
			Path:     filepath.Join(dir, "blog", filepath.FromSlash(post.Slug)+".png"),
			Title:    post.Title,
			Category: category,
		})
	}
	return targets
}

func (b *Builder) renderImages(ctx context.Context, posts []content.Post, result *Result) error {
	for _, target := range b.ImageTargets(posts) {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := b.renderer.Render(target.Title, target.Category)
		if err != nil {
			return siteerrors.NewBuildError("ERR_RENDER_IMAGE",
				fmt.Sprintf("failed to render image for %q", target.Title), err).WithFile(target.Path)
		}

		written, err := writeIfChanged(target.Path, data)
		if err != nil {
			return err
		}
		if written {
			result.ImagesWritten++
		} else {
			result.ImagesUnchanged++
		}
		result.Images = append(result.Images, target.Path)
	}
	return nil
}

// writeIfChanged atomically replaces path with data unless the file already
// holds exactly data. It reports whether a write happened.
func writeIfChanged(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, siteerrors.NewIOError("ERR_CREATE_DIR", "failed to create output directory", err).WithFile(path)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return false, siteerrors.NewIOError("ERR_WRITE_OUTPUT", "failed to write output", err).WithFile(path)
	}
	return true, nil
}
