package content

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	siteerrors "github.com/conneroisu/shopfront/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePost(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestParsePost(t *testing.T) {
	data := []byte(`---
title: Spring Boiler Checks
pubDate: 2024-03-15
excerpt: "  Why a spring service pays off.  "
description: Seasonal maintenance guide
categories: [Heating, Maintenance]
author: Sam Fixit
draft: true
---
Body text.
`)

	post, err := ParsePost("spring-boiler-checks.md", data)
	require.NoError(t, err)

	assert.Equal(t, "spring-boiler-checks", post.Slug)
	assert.Equal(t, "Spring Boiler Checks", post.Title)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), post.Date)
	assert.Equal(t, "Why a spring service pays off.", post.Excerpt)
	assert.Equal(t, "Seasonal maintenance guide", post.Description)
	assert.Equal(t, []string{"Heating", "Maintenance"}, post.Categories)
	assert.Equal(t, "Sam Fixit", post.Author)
	assert.True(t, post.Draft)
}

func TestParsePostDefaults(t *testing.T) {
	data := []byte("---\ndate: \"2024-06-15T10:30:00Z\"\ncategory: News\n---\nHello\n")

	post, err := ParsePost("2024/new-van-day/index.md", data)
	require.NoError(t, err)

	assert.Equal(t, "2024/new-van-day", post.Slug)
	assert.Equal(t, "New Van Day", post.Title)
	assert.Equal(t, []string{"News"}, post.Categories)
	assert.Empty(t, post.Excerpt)
	assert.Empty(t, post.Author)
	assert.False(t, post.Draft)
	assert.Equal(t, 10, post.Date.Hour())
}

func TestParsePostFrontMatterSlug(t *testing.T) {
	post, err := ParsePost("whatever.md", []byte("---\nslug: /custom-slug/\npubDate: 2024-01-01\n---\n"))
	require.NoError(t, err)
	assert.Equal(t, "custom-slug", post.Slug)
}

func TestParsePostErrors(t *testing.T) {
	tests := []struct {
		name string
		rel  string
		data string
		code string
	}{
		{"missing date", "a.md", "---\ntitle: A\n---\n", "ERR_MISSING_DATE"},
		{"no front matter", "a.md", "just text\n", "ERR_MISSING_DATE"},
		{"bad date", "a.md", "---\npubDate: yesterday\n---\n", "ERR_INVALID_DATE"},
		{"bad slug", "Bad Slug!.md", "---\npubDate: 2024-01-01\n---\n", "ERR_INVALID_SLUG"},
		{"broken yaml", "a.md", "---\ntitle: [unclosed\n---\n", "ERR_FRONT_MATTER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePost(tt.rel, []byte(tt.data))
			require.Error(t, err)

			var se *siteerrors.SiteError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, siteerrors.ErrorTypeBuild, se.Type)
		})
	}
}

func TestLoadPosts(t *testing.T) {
	dir := t.TempDir()
	writePost(t, dir, "b-second.md", "---\ntitle: Second\npubDate: 2024-06-15\n---\n")
	writePost(t, dir, "a-first.md", "---\ntitle: First\npubDate: 2024-01-01\n---\n")
	writePost(t, dir, "guides/pipes.mdx", "---\ntitle: Pipes\npubDate: 2024-03-15\ndraft: true\n---\n")
	writePost(t, dir, "_drafts/skip.md", "not a post")
	writePost(t, dir, "_partial.md", "not a post")
	writePost(t, dir, "notes.txt", "ignored")

	posts, err := LoadPosts(dir)
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, "a-first", posts[0].Slug)
	assert.Equal(t, "b-second", posts[1].Slug)
	assert.Equal(t, "guides/pipes", posts[2].Slug)
	assert.Equal(t, filepath.Join(dir, "guides", "pipes.mdx"), posts[2].Path)
}

func TestLoadPostsMissingDir(t *testing.T) {
	posts, err := LoadPosts(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestLoadPostsDuplicateSlug(t *testing.T) {
	dir := t.TempDir()
	writePost(t, dir, "one.md", "---\nslug: same\npubDate: 2024-01-01\n---\n")
	writePost(t, dir, "two.md", "---\nslug: same\npubDate: 2024-01-02\n---\n")

	_, err := LoadPosts(dir)
	var se *siteerrors.SiteError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ERR_DUPLICATE_SLUG", se.Code)
	assert.Equal(t, filepath.Join(dir, "two.md"), se.FilePath)
}

func TestLoadPostsAttachesFile(t *testing.T) {
	dir := t.TempDir()
	writePost(t, dir, "broken.md", "---\ntitle: x\n---\n")

	_, err := LoadPosts(dir)
	var se *siteerrors.SiteError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, filepath.Join(dir, "broken.md"), se.FilePath)
}

func TestPublished(t *testing.T) {
	posts := []Post{{Slug: "a"}, {Slug: "b", Draft: true}, {Slug: "c"}}

	assert.Len(t, Published(posts, false), 3)

	prod := Published(posts, true)
	require.Len(t, prod, 2)
	assert.Equal(t, "a", prod[0].Slug)
	assert.Equal(t, "c", prod[1].Slug)
}

func TestTitleFromSlug(t *testing.T) {
	assert.Equal(t, "Spring Boiler Checks", TitleFromSlug("spring-boiler-checks"))
	assert.Equal(t, "New Van", TitleFromSlug("2024/new_van"))
	assert.Equal(t, "", TitleFromSlug(""))
}
