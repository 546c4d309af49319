package docs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func watcherLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type changeRecorder struct {
	mu    sync.Mutex
	fired int
}

func (c *changeRecorder) onChange(string) {
	c.mu.Lock()
	c.fired++
	c.mu.Unlock()
}

func (c *changeRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

func TestWatch_MarkdownChangeFires(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &changeRecorder{}
	go Watch(ctx, root, 50*time.Millisecond, watcherLogger(), rec.onChange)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "intro.md"), []byte("# Intro"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() == 1
	}, "expected one change callback")
}

func TestWatch_BurstDebouncedToOneCallback(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &changeRecorder{}
	go Watch(ctx, root, 200*time.Millisecond, watcherLogger(), rec.onChange)
	time.Sleep(100 * time.Millisecond)

	for _, name := range []string{"a.md", "b.md", "c.md"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() >= 1
	}, "expected a change callback")
	// Give a second debounce window a chance to (wrongly) fire again.
	time.Sleep(400 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("burst fired %d callbacks, want 1", n)
	}
}

func TestWatch_IgnoresUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &changeRecorder{}
	go Watch(ctx, root, 50*time.Millisecond, watcherLogger(), rec.onChange)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("unrelated file fired %d callbacks, want 0", n)
	}
}

func TestWatch_NewDirectoryPickedUp(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &changeRecorder{}
	go Watch(ctx, root, 50*time.Millisecond, watcherLogger(), rec.onChange)
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(root, "guides")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() >= 1
	}, "expected a callback for the new directory")

	before := rec.count()
	// Let the directory event settle, then change a file inside it.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "setup.md"), []byte("# Setup"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() > before
	}, "expected a callback for a file in the new directory")
}

func TestWatch_StopsOnCancel(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, 50*time.Millisecond, watcherLogger(), func(string) {})
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
