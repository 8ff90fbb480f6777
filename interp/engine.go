package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/quailyard/pybridge/bundle"
	"github.com/quailyard/pybridge/hostcall"
)

// ErrRuntime marks failures of the embedded runtime itself, as opposed to a
// command exiting non-zero. A session seeing ErrRuntime must assume the
// interpreter is unusable.
var ErrRuntime = errors.New("interpreter runtime failure")

// Capture holds the output of one interpreter execution.
type Capture struct {
	Stdout string
	Stderr string
	Status int
}

// Engine owns the wazero runtime and compiled interpreter for one bundle.
type Engine struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled wazero.CompiledModule
	bundle   *bundle.Bundle
	registry *hostcall.Registry

	mu     sync.Mutex
	closed bool
}

// Option configures an Engine at creation time.
type Option func(*engineConfig)

type engineConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // each page is 64KB, 0 = wazero default
}

// WithDiskCache enables a persistent compilation cache for faster startup.
// Optionally provide a custom directory; otherwise XDG_CACHE_HOME/pybridge
// or ~/.cache/pybridge is used.
func WithDiskCache(dir ...string) Option {
	return func(c *engineConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to the interpreter,
// in 64KB pages.
func WithMemoryLimit(pages uint32) Option {
	return func(c *engineConfig) {
		c.memoryLimitPages = pages
	}
}

// New compiles the bundle's interpreter and prepares it for execution.
func New(b *bundle.Bundle, registry *hostcall.Registry, opts ...Option) (*Engine, error) {
	var cfg engineConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, b.Interpreter())
	if err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("compile interpreter: %w", err)
	}

	if registry == nil {
		registry = hostcall.NewRegistry()
	}

	return &Engine{
		runtime:  rt,
		cache:    cache,
		compiled: compiled,
		bundle:   b,
		registry: registry,
	}, nil
}

// Exec instantiates the interpreter for one command invocation. The script
// path is the entry point inside the bundle; args are appended to argv after
// it. A command exiting non-zero is reported through Capture.Status, not an
// error; errors mean the invocation never ran cleanly (context done, or
// ErrRuntime when the runtime itself failed).
func (e *Engine) Exec(ctx context.Context, script string, args []string) (Capture, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Capture{}, fmt.Errorf("%w: engine closed", ErrRuntime)
	}
	e.mu.Unlock()

	var stdout bytes.Buffer
	stdinReader, stdinWriter := io.Pipe()
	calls := newCallHandler(ctx, e.registry, stdinWriter)

	argv := append([]string{e.bundle.Argv0(), script}, args...)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(calls).
		WithStdin(stdinReader).
		WithArgs(argv...).
		WithFSConfig(wazero.NewFSConfig().WithFSMount(e.bundle.FS(), "/")).
		WithName("")

	for k, v := range e.bundle.Env() {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := e.runtime.InstantiateModule(ctx, e.compiled, moduleConfig)
		stdinWriter.Close()
		errCh <- err
	}()

	err := <-errCh
	stdinReader.Close()

	capture := Capture{
		Stdout: stdout.String(),
		Stderr: calls.Stderr(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return capture, ctx.Err()
		}
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			capture.Status = int(exitErr.ExitCode())
			return capture, nil
		}
		return capture, fmt.Errorf("%w: %v", ErrRuntime, err)
	}

	return capture, nil
}

// Close releases the runtime and compilation cache.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "pybridge")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "pybridge")
	}
	return filepath.Join(os.TempDir(), "pybridge-cache")
}
