package interp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/quailyard/pybridge/hostcall"
)

// Host-call framing. Command scripts reach host functions by emitting
// frames on stderr: a NUL byte, the "PYBRIDGE:" tag, the JSON request,
// and a closing NUL. The response arrives as one JSON line on stdin.
const callPrefix = "\x00PYBRIDGE:"

// frameMark opens and closes a frame.
const frameMark = 0x00

type callRequest struct {
	ID   string         `json:"id,omitempty"`
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// callHandler is the stderr sink for a running module. It scans the byte
// stream for host-call frames and dispatches them; everything outside a
// frame is ordinary stderr and lands in the capture buffer. fd_write gives
// no atomicity at frame boundaries, so a frame (or its opening prefix) may
// arrive split across any number of writes; undelivered bytes stay in
// pending until the stream says what they are.
type callHandler struct {
	ctx         context.Context
	registry    *hostcall.Registry
	stdinWriter *io.PipeWriter

	mu         sync.Mutex
	realStderr bytes.Buffer
	pending    []byte
}

func newCallHandler(ctx context.Context, registry *hostcall.Registry, stdinWriter *io.PipeWriter) *callHandler {
	return &callHandler{
		ctx:         ctx,
		registry:    registry,
		stdinWriter: stdinWriter,
	}
}

func (h *callHandler) Write(data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pending = append(h.pending, data...)

	rest := h.pending
	for len(rest) > 0 {
		mark := bytes.IndexByte(rest, frameMark)
		if mark == -1 {
			// No frame can start here; it is all plain stderr.
			h.realStderr.Write(rest)
			rest = nil
			break
		}

		h.realStderr.Write(rest[:mark])
		rest = rest[mark:]

		if len(rest) < len(callPrefix) {
			if bytes.HasPrefix([]byte(callPrefix), rest) {
				// Could still become a frame; wait for more bytes.
				break
			}
			h.realStderr.WriteByte(frameMark)
			rest = rest[1:]
			continue
		}

		if !bytes.HasPrefix(rest, []byte(callPrefix)) {
			// A NUL the guest wrote for its own reasons.
			h.realStderr.WriteByte(frameMark)
			rest = rest[1:]
			continue
		}

		body := rest[len(callPrefix):]
		end := bytes.IndexByte(body, frameMark)
		if end == -1 {
			// Frame is open but unterminated; keep it whole.
			break
		}

		h.dispatch(body[:end])
		rest = body[end+1:]
	}

	h.pending = append(h.pending[:0], rest...)
	return len(data), nil
}

// dispatch decodes one frame payload, runs the host function, and sends
// the reply to the guest's stdin.
func (h *callHandler) dispatch(payload []byte) {
	var req callRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.reply(callResponse{Error: "invalid call format"})
		return
	}

	fn, ok := h.registry.Get(req.Fn)
	if !ok {
		h.reply(callResponse{ID: req.ID, Error: "unknown function: " + req.Fn})
		return
	}

	data, err := fn(h.ctx, req.Args)
	if err != nil {
		h.reply(callResponse{ID: req.ID, Error: err.Error()})
		return
	}
	h.reply(callResponse{ID: req.ID, Data: data})
}

func (h *callHandler) reply(resp callResponse) {
	line, err := json.Marshal(resp)
	if err != nil {
		line, _ = json.Marshal(callResponse{ID: resp.ID, Error: "internal: unencodable response"})
	}
	line = append(line, '\n')

	// The guest blocks on stdin until the reply lands; the write must not
	// happen under h.mu or a guest that interleaves frames would deadlock.
	go h.stdinWriter.Write(line)
}

// Stderr returns the non-protocol stderr output. Bytes still held back as
// a possible frame start are included; once the stream has ended they
// cannot complete a frame.
func (h *callHandler) Stderr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.realStderr.String() + string(h.pending)
}
