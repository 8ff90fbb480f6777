package interp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/quailyard/pybridge/hostcall"
)

func newTestHandler(t *testing.T, registry *hostcall.Registry) (*callHandler, *bufio.Reader) {
	t.Helper()

	stdinReader, stdinWriter := io.Pipe()
	t.Cleanup(func() {
		stdinReader.Close()
		stdinWriter.Close()
	})
	return newCallHandler(context.Background(), registry, stdinWriter), bufio.NewReader(stdinReader)
}

func readResponse(t *testing.T, r *bufio.Reader) callResponse {
	t.Helper()

	line, err := r.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp callResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("parse response %q: %v", line, err)
	}
	return resp
}

func TestStderrPassThrough(t *testing.T) {
	h, _ := newTestHandler(t, hostcall.NewRegistry())

	h.Write([]byte("Traceback (most recent call last):\n"))
	h.Write([]byte("ValueError: boom\n"))

	want := "Traceback (most recent call last):\nValueError: boom\n"
	if got := h.Stderr(); got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestCallDispatch(t *testing.T) {
	registry := hostcall.NewRegistry()
	registry.Register("greet", func(ctx context.Context, args map[string]any) (any, error) {
		name, _ := args["name"].(string)
		return "Hello, " + name + "!", nil
	})

	h, r := newTestHandler(t, registry)

	h.Write([]byte("\x00PYBRIDGE:{\"fn\":\"greet\",\"args\":{\"name\":\"World\"}}\x00"))

	resp := readResponse(t, r)
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Data != "Hello, World!" {
		t.Errorf("data = %v, want %q", resp.Data, "Hello, World!")
	}
	if h.Stderr() != "" {
		t.Errorf("stderr = %q, want empty", h.Stderr())
	}
}

func TestCallIDEchoed(t *testing.T) {
	registry := hostcall.NewRegistry()
	registry.Register("noop", func(ctx context.Context, args map[string]any) (any, error) {
		return "ok", nil
	})

	h, r := newTestHandler(t, registry)
	h.Write([]byte("\x00PYBRIDGE:{\"id\":\"7\",\"fn\":\"noop\",\"args\":{}}\x00"))

	resp := readResponse(t, r)
	if resp.ID != "7" {
		t.Errorf("id = %q, want %q", resp.ID, "7")
	}
}

func TestUnknownFunction(t *testing.T) {
	h, r := newTestHandler(t, hostcall.NewRegistry())

	h.Write([]byte("\x00PYBRIDGE:{\"fn\":\"nope\",\"args\":{}}\x00"))

	resp := readResponse(t, r)
	if resp.Error == "" {
		t.Fatal("expected error response")
	}
}

func TestInvalidCallPayload(t *testing.T) {
	h, r := newTestHandler(t, hostcall.NewRegistry())

	h.Write([]byte("\x00PYBRIDGE:{not json}\x00"))

	resp := readResponse(t, r)
	if resp.Error != "invalid call format" {
		t.Errorf("error = %q, want %q", resp.Error, "invalid call format")
	}
}

func TestMessageSplitAcrossWrites(t *testing.T) {
	registry := hostcall.NewRegistry()
	registry.Register("ping", func(ctx context.Context, args map[string]any) (any, error) {
		return "pong", nil
	})

	h, r := newTestHandler(t, registry)

	h.Write([]byte("warning: something\n\x00PYBRIDGE:{\"fn\":"))
	h.Write([]byte("\"ping\",\"args\":{}}\x00trailing\n"))

	resp := readResponse(t, r)
	if resp.Data != "pong" {
		t.Errorf("data = %v, want %q", resp.Data, "pong")
	}

	want := "warning: something\ntrailing\n"
	if got := h.Stderr(); got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestPrefixSplitAcrossWrites(t *testing.T) {
	registry := hostcall.NewRegistry()
	registry.Register("ping", func(ctx context.Context, args map[string]any) (any, error) {
		return "pong", nil
	})

	h, r := newTestHandler(t, registry)

	// fd_write can cut the stream anywhere, including inside the prefix.
	h.Write([]byte("warning\n\x00PYBR"))
	h.Write([]byte("IDGE:{\"fn\":\"ping\",\"args\":{}}\x00"))

	resp := readResponse(t, r)
	if resp.Data != "pong" {
		t.Errorf("data = %v, want %q", resp.Data, "pong")
	}

	if got := h.Stderr(); got != "warning\n" {
		t.Errorf("stderr = %q, want %q", got, "warning\n")
	}
}

func TestPrefixSplitBytewise(t *testing.T) {
	registry := hostcall.NewRegistry()
	registry.Register("ping", func(ctx context.Context, args map[string]any) (any, error) {
		return "pong", nil
	})

	h, r := newTestHandler(t, registry)

	for _, b := range []byte("\x00PYBRIDGE:{\"fn\":\"ping\",\"args\":{}}\x00") {
		h.Write([]byte{b})
	}

	resp := readResponse(t, r)
	if resp.Data != "pong" {
		t.Errorf("data = %v, want %q", resp.Data, "pong")
	}
	if h.Stderr() != "" {
		t.Errorf("stderr = %q, want empty", h.Stderr())
	}
}

func TestStrayNulPassesThrough(t *testing.T) {
	h, _ := newTestHandler(t, hostcall.NewRegistry())

	h.Write([]byte("a\x00b\n"))
	h.Write([]byte("\x00PYBnope\n"))

	want := "a\x00b\n\x00PYBnope\n"
	if got := h.Stderr(); got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestUnterminatedFrameSurfacesAsStderr(t *testing.T) {
	h, _ := newTestHandler(t, hostcall.NewRegistry())

	// The guest dies mid-frame; the bytes are diagnostics, not a call.
	h.Write([]byte("\x00PYBRIDGE:{\"fn\":\"pi"))

	want := "\x00PYBRIDGE:{\"fn\":\"pi"
	if got := h.Stderr(); got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}
