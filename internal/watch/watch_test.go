package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type runningWatcher struct {
	fw     *FileWatcher
	calls  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (r *runningWatcher) wait() error {
	<-r.done
	return r.err
}

func startWatcher(t *testing.T, path string, debounce time.Duration) *runningWatcher {
	t.Helper()

	fw, err := New(path, debounce, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &runningWatcher{fw: fw, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.err = fw.Run(ctx, func() { r.calls.Add(1) })
	}()

	t.Cleanup(func() {
		cancel()
		_ = r.wait()
		_ = fw.Close()
	})
	return r
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestFileWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := startWatcher(t, path, 150*time.Millisecond)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(`{"n":1}`), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return r.calls.Load() >= 1 })
	time.Sleep(300 * time.Millisecond)
	if got := r.calls.Load(); got != 1 {
		t.Errorf("onChange calls = %d, want 1", got)
	}
}

func TestFileWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")

	r := startWatcher(t, path, 20*time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := r.calls.Load(); got != 0 {
		t.Errorf("onChange calls = %d, want 0 for sibling writes", got)
	}

	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return r.calls.Load() == 1 })
}

func TestFileWatcher_RunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	r := startWatcher(t, filepath.Join(dir, "run.json"), 0)

	r.cancel()
	select {
	case <-r.done:
		if !errors.Is(r.err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFileWatcher_CloseIsIdempotent(t *testing.T) {
	fw, err := New(filepath.Join(t.TempDir(), "run.json"), time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "run.json"), 0, nil)
	if err == nil {
		t.Fatal("New() should fail when the parent directory does not exist")
	}
}
