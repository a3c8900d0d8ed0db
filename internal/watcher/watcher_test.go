package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string, opts Options) *Watcher {
	t.Helper()

	w, err := New(slog.New(slog.DiscardHandler), opts)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx) //nolint:errcheck // Test goroutine
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestNew_StopIsIdempotent(t *testing.T) {
	w, err := New(slog.New(slog.DiscardHandler), Options{})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())

	_, open := <-w.Events()
	assert.False(t, open, "events channel is closed after Stop")
}

func TestWatch_MissingPath(t *testing.T) {
	w, err := New(slog.New(slog.DiscardHandler), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing")))
}

func TestWatcher_FileWritten(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Options{SettleDelay: 30 * time.Millisecond})

	path := filepath.Join(dir, "styles.css")
	require.NoError(t, os.WriteFile(path, []byte("body{margin:0}"), 0o644))

	event := nextEvent(t, w)
	assert.Equal(t, Changed, event.Change)
	assert.Equal(t, path, event.Path)
	assert.Equal(t, int64(14), event.Size)
}

func TestWatcher_FileRemoved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(path, []byte("init()"), 0o644))

	w := startWatcher(t, dir, Options{SettleDelay: 30 * time.Millisecond})
	require.NoError(t, os.Remove(path))

	event := nextEvent(t, w)
	assert.Equal(t, Removed, event.Change)
	assert.Equal(t, path, event.Path)
}

func TestWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Options{SettleDelay: 30 * time.Millisecond})

	sub := filepath.Join(dir, "js")
	require.NoError(t, os.Mkdir(sub, 0o755))

	path := filepath.Join(sub, "dbhelper.js")
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("open()"), 0o644); err != nil {
			return false
		}
		select {
		case event := <-w.Events():
			return event.Path == path
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatcher_IgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Options{SkipHidden: true, SettleDelay: 30 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".index.html.swp"), []byte("x"), 0o644))
	normal := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(normal, []byte("<html>"), 0o644))

	event := nextEvent(t, w)
	assert.Equal(t, normal, event.Path)

	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event for hidden file: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
