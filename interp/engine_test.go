package interp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quailyard/pybridge/bundle"
	"github.com/quailyard/pybridge/hostcall"
	"github.com/quailyard/pybridge/internal/testwasm"
)

func newTestEngine(t *testing.T, wasm []byte) *Engine {
	t.Helper()

	b, err := bundle.Load(testwasm.WriteBundle(t, wasm))
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	e, err := New(b, hostcall.NewRegistry())
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestExecCapturesStdout(t *testing.T) {
	e := newTestEngine(t, testwasm.Hello)

	capture, err := e.Exec(context.Background(), "/commands/status.py", nil)
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if capture.Status != 0 {
		t.Errorf("status = %d, want 0", capture.Status)
	}
	if capture.Stdout != "hello\n" {
		t.Errorf("stdout = %q, want %q", capture.Stdout, "hello\n")
	}
	if capture.Stderr != "" {
		t.Errorf("stderr = %q, want empty", capture.Stderr)
	}
}

func TestExecCleanExit(t *testing.T) {
	e := newTestEngine(t, testwasm.Noop)

	capture, err := e.Exec(context.Background(), "/commands/status.py", []string{"--json"})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if capture.Status != 0 {
		t.Errorf("status = %d, want 0", capture.Status)
	}
}

func TestExecExitStatus(t *testing.T) {
	e := newTestEngine(t, testwasm.Exit3)

	capture, err := e.Exec(context.Background(), "/commands/status.py", nil)
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if capture.Status != 3 {
		t.Errorf("status = %d, want 3", capture.Status)
	}
}

func TestExecDeadline(t *testing.T) {
	e := newTestEngine(t, testwasm.Spin)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := e.Exec(ctx, "/commands/status.py", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestExecAfterClose(t *testing.T) {
	e := newTestEngine(t, testwasm.Noop)
	e.Close()

	_, err := e.Exec(context.Background(), "/commands/status.py", nil)
	if !errors.Is(err, ErrRuntime) {
		t.Errorf("expected ErrRuntime, got %v", err)
	}
}

func TestNewRejectsInvalidInterpreter(t *testing.T) {
	b, err := bundle.Load(testwasm.WriteBundle(t, []byte("not wasm at all")))
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}

	if _, err := New(b, nil); err == nil {
		t.Fatal("expected compile error for invalid interpreter binary")
	}
}

func TestCloseIdempotent(t *testing.T) {
	e := newTestEngine(t, testwasm.Noop)

	if err := e.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}
