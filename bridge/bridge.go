package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quailyard/pybridge/bundle"
	"github.com/quailyard/pybridge/hostcall"
	"github.com/quailyard/pybridge/interp"
)

// Result holds the output and metadata from one command invocation.
// Exactly one Result is produced per invocation.
type Result struct {
	Stdout   string
	Stderr   string
	Status   int
	Duration time.Duration
	Err      error
}

// runner abstracts the interpreter engine for a Session.
type runner interface {
	Exec(ctx context.Context, script string, args []string) (interp.Capture, error)
	Close() error
}

// Session supervises one embedded interpreter instance.
type Session struct {
	bundle *bundle.Bundle
	engine runner
	store  *hostcall.Store
	cfg    config

	execMu sync.Mutex // single execution slot; serializes all invocations

	mu      sync.Mutex
	closed  bool
	lastErr error
}

// Open resolves the named resource bundle and starts a Session for it.
// On failure no Session exists and the returned error wraps ErrInit.
func Open(resource string, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b, err := bundle.Open(resource)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	registry := hostcall.NewRegistry()
	hostcall.RegisterBuiltins(registry)

	store := hostcall.NewStore(cfg.storeOpts...)
	store.Seed(cfg.settings)
	hostcall.RegisterSettings(registry, store)

	for name, fn := range cfg.hostFuncs {
		registry.Register(name, fn)
	}

	engine, err := interp.New(b, registry, cfg.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	return &Session{
		bundle: b,
		engine: engine,
		store:  store,
		cfg:    cfg,
	}, nil
}

// Run executes a named command synchronously, blocking the caller until the
// interpreter finishes. Invocations on the same Session are serialized;
// later calls queue until earlier ones complete.
func (s *Session) Run(ctx context.Context, command string, args []string) Result {
	start := time.Now()

	if err := s.usable(); err != nil {
		return s.fail(start, StatusHostError, err)
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	// The session may have closed while this call was queued.
	if err := s.usable(); err != nil {
		return s.fail(start, StatusHostError, err)
	}

	if command == "" {
		return s.fail(start, StatusHostError, fmt.Errorf("%w: empty command", ErrInvocation))
	}

	script, err := s.bundle.Command(command)
	if err != nil {
		return s.fail(start, StatusHostError, fmt.Errorf("%w: %w", ErrInvocation, err))
	}

	if s.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.timeout)
		defer cancel()
	}

	capture, err := s.engine.Exec(ctx, script, args)

	res := Result{
		Stdout:   capture.Stdout,
		Stderr:   capture.Stderr,
		Status:   capture.Status,
		Duration: time.Since(start),
	}

	switch {
	case err == nil && capture.Status == StatusOK:
		return res
	case err == nil:
		res.Err = fmt.Errorf("%w: %q exited with status %d", ErrInvocation, command, capture.Status)
	case errors.Is(err, context.DeadlineExceeded):
		// The caller's own deadline may be tighter than the session
		// timeout; report whichever bound actually expired.
		bound := res.Duration
		if deadline, ok := ctx.Deadline(); ok {
			bound = deadline.Sub(start)
		}
		res.Status = StatusTimeout
		res.Err = fmt.Errorf("%w after %v", ErrTimeout, bound.Round(time.Millisecond))
	case errors.Is(err, interp.ErrRuntime):
		// The interpreter itself is gone; stop accepting invocations.
		s.markUnusable()
		res.Status = StatusHostError
		res.Err = err
	default:
		res.Status = StatusHostError
		res.Err = fmt.Errorf("%w: %w", ErrInvocation, err)
	}

	s.recordErr(res.Err)
	return res
}

// Go schedules an asynchronous invocation and returns a single-shot channel
// that delivers exactly one Result. The channel is buffered; the worker
// never blocks on delivery.
func (s *Session) Go(ctx context.Context, command string, args []string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- s.Run(ctx, command, args)
	}()
	return ch
}

// RunAsync schedules an asynchronous invocation and calls done exactly once
// with the Result, on success or failure. Failures are reported through
// Result.Status and Result.Err, never by panicking across the boundary.
func (s *Session) RunAsync(ctx context.Context, command string, args []string, done func(Result)) {
	go func() {
		res := s.Run(ctx, command, args)
		if done != nil {
			done(res)
		}
	}()
}

// LastError returns the most recently recorded failure, or nil if none.
// Successful invocations do not clear it. This is a diagnostic convenience:
// under concurrent use it may be overwritten before the original caller
// reads it, so per-invocation Results are the authoritative channel.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Name returns the bundle's name.
func (s *Session) Name() string {
	return s.bundle.Name()
}

// Commands returns the sorted command names the session's bundle exposes.
func (s *Session) Commands() []string {
	return s.bundle.Commands()
}

// Settings returns the session's settings store.
func (s *Session) Settings() *hostcall.Store {
	return s.store
}

// Close releases the interpreter engine. Subsequent invocations fail fast
// with ErrSessionClosed. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.engine.Close()
}

func (s *Session) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) markUnusable() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.engine.Close()
}

func (s *Session) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Session) fail(start time.Time, status int, err error) Result {
	s.recordErr(err)
	return Result{
		Status:   status,
		Duration: time.Since(start),
		Err:      err,
	}
}
