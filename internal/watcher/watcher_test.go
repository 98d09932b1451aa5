package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type callbackRecorder struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *callbackRecorder) onIndex(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
}

func (r *callbackRecorder) onRemove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *callbackRecorder) indexedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.indexed)
}

func (r *callbackRecorder) removedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.removed)
}

func TestWatcherIndexAndRemove(t *testing.T) {
	dir := t.TempDir()
	rec := &callbackRecorder{}

	w := New([]string{dir}, []string{".txt"}, rec.onIndex, rec.onRemove, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "decisao.txt")
	if err := os.WriteFile(path, []byte("conteúdo"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(700 * time.Millisecond)
	if rec.indexedCount() < 1 {
		t.Fatalf("expected index callback, got %d", rec.indexedCount())
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if rec.removedCount() < 1 {
		t.Errorf("expected remove callback, got %d", rec.removedCount())
	}
}

func TestWatcherExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	rec := &callbackRecorder{}

	w := New([]string{dir}, []string{".txt"}, rec.onIndex, rec.onRemove, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(700 * time.Millisecond)
	if rec.indexedCount() != 0 {
		t.Errorf("expected no callbacks for filtered extension, got %d", rec.indexedCount())
	}
}

func TestWatcherCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "docs")
	rec := &callbackRecorder{}

	w := New([]string{root}, nil, rec.onIndex, rec.onRemove, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("expected root to be created: %v", err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(root) {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestSyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.txt"), []byte("já existia"), 0600); err != nil {
		t.Fatal(err)
	}
	rec := &callbackRecorder{}

	w := New([]string{dir}, []string{".txt"}, rec.onIndex, rec.onRemove, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	if rec.indexedCount() != 1 {
		t.Errorf("expected 1 pre-existing file indexed, got %d", rec.indexedCount())
	}
}

func TestStopIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, nil, nil, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
