package bridge

import (
	"time"

	"github.com/quailyard/pybridge/hostcall"
	"github.com/quailyard/pybridge/interp"
)

// Option configures a Session at Open time.
type Option func(*config)

type config struct {
	timeout    time.Duration
	settings   map[string]string
	hostFuncs  map[string]hostcall.Func
	storeOpts  []hostcall.StoreOption
	engineOpts []interp.Option
}

func defaultConfig() config {
	return config{
		timeout:   30 * time.Second,
		settings:  make(map[string]string),
		hostFuncs: make(map[string]hostcall.Func),
	}
}

// WithTimeout sets the default per-invocation deadline. Zero disables it;
// callers can still bound individual invocations through the context.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithSetting seeds one entry of the session's settings store.
func WithSetting(key, value string) Option {
	return func(c *config) {
		c.settings[key] = value
	}
}

// WithSettings seeds the session's settings store.
func WithSettings(values map[string]string) Option {
	return func(c *config) {
		for k, v := range values {
			c.settings[k] = v
		}
	}
}

// WithHostFunc exposes an additional host function to commands.
func WithHostFunc(name string, fn hostcall.Func) Option {
	return func(c *config) {
		c.hostFuncs[name] = fn
	}
}

// WithStoreLimits applies size limits to the settings store.
func WithStoreLimits(opts ...hostcall.StoreOption) Option {
	return func(c *config) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// WithDiskCache enables the engine's persistent compilation cache.
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, interp.WithDiskCache(dir...))
	}
}

// WithMemoryLimit caps the interpreter's memory, in 64KB pages.
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, interp.WithMemoryLimit(pages))
	}
}
