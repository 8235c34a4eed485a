package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFileWatcherAddPath(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, ".shopfront.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("site: {}\n"), 0o644))

	assert.NoError(t, watcher.AddPath(dir))
	assert.NoError(t, watcher.AddPath(cfgFile), "files are watched through their directory")
	assert.Equal(t, []string{dir}, watcher.WatchList())

	assert.Error(t, watcher.AddPath(filepath.Join(dir, "missing")))
	assert.Error(t, watcher.AddPath("../outside"))
}

func TestFileWatcherAddRecursiveSkipsHidden(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "guides", "2024"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))

	require.NoError(t, watcher.AddRecursive(root))
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "guides"),
		filepath.Join(root, "guides", "2024"),
	}, watcher.WatchList())
}

func TestFileWatcherDeliversFilteredChanges(t *testing.T) {
	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	dir := t.TempDir()
	require.NoError(t, watcher.AddRecursive(dir))
	watcher.AddFilter(AnyOf(ContentFilter, ConfigFilter))
	watcher.AddFilter(NoTempFilter)

	var (
		mu       sync.Mutex
		received []ChangeEvent
	)
	batches := make(chan struct{}, 10)
	watcher.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		received = append(received, events...)
		mu.Unlock()
		batches <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".post.md.swp"), []byte("x"), 0o644))
	post := filepath.Join(dir, "new-post.md")
	require.NoError(t, os.WriteFile(post, []byte("---\ntitle: x\n---\n"), 0o644))

	select {
	case <-batches:
	case <-time.After(2 * time.Second):
		t.Fatal("no change batch delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, received)
	for _, event := range received {
		assert.Equal(t, post, event.Path)
	}
}

func TestFileWatcherWatchesNewDirectories(t *testing.T) {
	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	root := t.TempDir()
	require.NoError(t, watcher.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	sub := filepath.Join(root, "news")
	require.NoError(t, os.Mkdir(sub, 0o755))

	assert.Eventually(t, func() bool {
		for _, path := range watcher.WatchList() {
			if path == sub {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	watcher.Wait()
}

func TestFilters(t *testing.T) {
	testCases := []struct {
		path    string
		content bool
		config  bool
		noTemp  bool
	}{
		{"content/blog/post.md", true, false, true},
		{"content/blog/post.MDX", true, false, true},
		{"notes.markdown", true, false, true},
		{".shopfront.yml", false, true, false},
		{"config/site.yaml", false, true, true},
		{"post.md~", false, false, false},
		{"post.md.swp", false, false, false},
		{"dist/rss.xml", false, false, true},
		{"image.png", false, false, true},
		{"draft.tmp", false, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.content, ContentFilter(tc.path), "content")
			assert.Equal(t, tc.config, ConfigFilter(tc.path), "config")
			assert.Equal(t, tc.noTemp, NoTempFilter(tc.path), "no temp")
		})
	}

	either := AnyOf(ContentFilter, ConfigFilter)
	assert.True(t, either("a.md"))
	assert.True(t, either("a.yml"))
	assert.False(t, either("a.go"))
	assert.False(t, AnyOf()("a.md"))
}

func TestDebouncerCoalescesByPath(t *testing.T) {
	debouncer := newDebouncer(30 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go debouncer.start(ctx)

	debouncer.events <- ChangeEvent{Type: EventTypeCreated, Path: "b.md"}
	debouncer.events <- ChangeEvent{Type: EventTypeModified, Path: "a.md"}
	debouncer.events <- ChangeEvent{Type: EventTypeModified, Path: "b.md"}
	debouncer.events <- ChangeEvent{Type: EventTypeDeleted, Path: "a.md"}

	select {
	case batch := <-debouncer.output:
		require.Len(t, batch, 2)
		assert.Equal(t, "a.md", batch[0].Path)
		assert.Equal(t, EventTypeDeleted, batch[0].Type)
		assert.Equal(t, "b.md", batch[1].Path)
		assert.Equal(t, EventTypeModified, batch[1].Type)
	case <-time.After(time.Second):
		t.Fatal("debouncer did not flush")
	}

	select {
	case batch := <-debouncer.output:
		t.Fatalf("unexpected second batch: %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerFlushEmpty(t *testing.T) {
	debouncer := newDebouncer(time.Millisecond)
	debouncer.flush()
	assert.Empty(t, debouncer.output)
}
