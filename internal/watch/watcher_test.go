package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func noop(context.Context, []string) error { return nil }

func TestNewRequiresDirAndHandler(t *testing.T) {
	if _, err := New(Config{}, noop); err == nil {
		t.Error("expected error without a directory")
	}
	if _, err := New(Config{Dir: t.TempDir()}, nil); err == nil {
		t.Error("expected error without a handler")
	}
}

func TestDefaults(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir()}, noop)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.cfg.Debounce != 500*time.Millisecond {
		t.Errorf("expected default debounce 500ms, got %s", w.cfg.Debounce)
	}
	if len(w.cfg.Extensions) != len(DefaultExtensions) {
		t.Errorf("expected default extensions, got %v", w.cfg.Extensions)
	}
}

func TestMatches(t *testing.T) {
	w, _ := New(Config{Dir: t.TempDir(), Extensions: []string{"csv", ".XLSX"}}, noop)
	defer w.Close()

	tests := []struct {
		path string
		want bool
	}{
		{"/data/spotfire_if2sf_users.csv", true},
		{"/data/employee_ghr.xlsx", true},
		{"/data/EMPLOYEE_GHR.XLSX", true},
		{"/data/actions.json", false},
		{"/data/readme.txt", false},
		{"/data/.users.csv.swp", false},
		{"/data/~$employee_ghr.xlsx", false},
	}
	for _, tt := range tests {
		if got := w.Matches(tt.path); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDebounceCoalescesChanges(t *testing.T) {
	var (
		mu    sync.Mutex
		calls [][]string
	)
	done := make(chan struct{}, 4)
	w, _ := New(Config{Dir: t.TempDir(), Debounce: 30 * time.Millisecond}, func(_ context.Context, paths []string) error {
		mu.Lock()
		calls = append(calls, paths)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	defer w.Close()

	ctx := context.Background()
	w.schedule(ctx, "/data/b.csv")
	w.schedule(ctx, "/data/a.csv")
	w.schedule(ctx, "/data/b.csv")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for handler")
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("expected one coalesced run, got %d", len(calls))
	}
	if len(calls[0]) != 2 || calls[0][0] != "/data/a.csv" || calls[0][1] != "/data/b.csv" {
		t.Errorf("unexpected paths %v", calls[0])
	}
}

func TestFlushRecordsFailures(t *testing.T) {
	w, _ := New(Config{Dir: t.TempDir()}, func(context.Context, []string) error {
		return errors.New("sink unavailable")
	})
	defer w.Close()

	w.pending["/data/users.csv"] = struct{}{}
	w.flush(context.Background())

	trs := w.Triggers()
	if len(trs) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(trs))
	}
	if trs[0].Status != StatusFailed || trs[0].Error != "sink unavailable" {
		t.Errorf("unexpected trigger %+v", trs[0])
	}
	if w.Status().Pending != 0 {
		t.Error("pending should be cleared after a flush")
	}
}

func TestFlushWithNothingPending(t *testing.T) {
	called := false
	w, _ := New(Config{Dir: t.TempDir()}, func(context.Context, []string) error {
		called = true
		return nil
	})
	defer w.Close()

	w.flush(context.Background())
	if called || len(w.Triggers()) != 0 {
		t.Error("empty flush should not run the handler")
	}
}

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	got := make(chan []string, 1)
	w, err := New(Config{Dir: dir, Debounce: 50 * time.Millisecond}, func(_ context.Context, paths []string) error {
		got <- paths
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "spotfire_if2sf_users.csv")
	if err := os.WriteFile(target, []byte("user_name\nalice\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-got:
		if len(paths) != 1 || filepath.Base(paths[0]) != "spotfire_if2sf_users.csv" {
			t.Errorf("unexpected paths %v", paths)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for triggered run")
	}
}

func TestPIDFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	if err := WritePIDFile(dir); err != nil {
		t.Fatal(err)
	}
	pid, err := ReadPIDFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected PID %d, got %d", os.Getpid(), pid)
	}
	if err := RemovePIDFile(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPIDFile(dir); err == nil {
		t.Error("expected error after removing PID file")
	}
}
