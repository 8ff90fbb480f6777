// Package bundle loads interpreter resource bundles.
//
// A bundle is a directory holding the interpreter WASM binary, the command
// entry scripts, and a bundle.toml manifest mapping command names to scripts:
//
//	name = "wallpaperctl"
//	interpreter = "python.wasm"
//	argv0 = "python"
//
//	[env]
//	PYTHONHOME = "/"
//
//	[commands]
//	status = "commands/status.py"
//	start  = "commands/start.py"
package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const manifestName = "bundle.toml"

var (
	// ErrNotFound means a bundle name did not resolve to any directory.
	ErrNotFound = errors.New("bundle not found")

	// ErrUnknownCommand means the command name is not in the bundle's
	// command table.
	ErrUnknownCommand = errors.New("unknown command")
)

// Manifest is the parsed bundle.toml.
type Manifest struct {
	Name        string            `toml:"name"`
	Interpreter string            `toml:"interpreter"`
	Argv0       string            `toml:"argv0"`
	Env         map[string]string `toml:"env"`
	Commands    map[string]string `toml:"commands"`
}

// Bundle is a loaded, validated resource bundle.
type Bundle struct {
	dir      string
	manifest Manifest
	wasm     []byte
}

// Resolve maps a resource identifier to a bundle directory. An identifier
// containing a path separator (or naming an existing directory) is used
// as-is; otherwise it is looked up in $PYBRIDGE_BUNDLE_PATH and the
// platform data directories.
func Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty resource name", ErrNotFound)
	}

	if strings.ContainsRune(name, os.PathSeparator) || dirExists(name) {
		if dirExists(name) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, name)
		if dirExists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func searchDirs() []string {
	var dirs []string

	if path := os.Getenv("PYBRIDGE_BUNDLE_PATH"); path != "" {
		dirs = append(dirs, filepath.SplitList(path)...)
	}

	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "pybridge", "bundles"))
	} else if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "pybridge", "bundles"))
	}

	dirs = append(dirs,
		filepath.Join("/usr/local/share", "pybridge", "bundles"),
		filepath.Join("/usr/share", "pybridge", "bundles"),
	)

	return dirs
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Open resolves a resource identifier and loads the bundle it names.
func Open(resource string) (*Bundle, error) {
	dir, err := Resolve(resource)
	if err != nil {
		return nil, err
	}
	return Load(dir)
}

// Load reads and validates the bundle in dir.
func Load(dir string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if err := validate(dir, &m); err != nil {
		return nil, fmt.Errorf("invalid bundle %s: %w", dir, err)
	}

	wasm, err := os.ReadFile(filepath.Join(dir, m.Interpreter))
	if err != nil {
		return nil, fmt.Errorf("read interpreter: %w", err)
	}

	return &Bundle{dir: dir, manifest: m, wasm: wasm}, nil
}

func validate(dir string, m *Manifest) error {
	if m.Interpreter == "" {
		return errors.New("manifest missing interpreter")
	}
	if !filepath.IsLocal(m.Interpreter) {
		return fmt.Errorf("interpreter path %q escapes bundle", m.Interpreter)
	}
	if len(m.Commands) == 0 {
		return errors.New("manifest declares no commands")
	}
	if m.Argv0 == "" {
		m.Argv0 = "python"
	}

	for name, script := range m.Commands {
		if name == "" {
			return errors.New("empty command name")
		}
		if script == "" {
			return fmt.Errorf("command %q has no entry script", name)
		}
		if !filepath.IsLocal(script) {
			return fmt.Errorf("command %q script %q escapes bundle", name, script)
		}
		if _, err := os.Stat(filepath.Join(dir, script)); err != nil {
			return fmt.Errorf("command %q: %w", name, err)
		}
	}

	return nil
}

// Name returns the bundle's declared name, falling back to the directory name.
func (b *Bundle) Name() string {
	if b.manifest.Name != "" {
		return b.manifest.Name
	}
	return filepath.Base(b.dir)
}

// Dir returns the bundle's directory on the host.
func (b *Bundle) Dir() string { return b.dir }

// Interpreter returns the interpreter WASM binary.
func (b *Bundle) Interpreter() []byte { return b.wasm }

// Argv0 returns the program name presented to the interpreter.
func (b *Bundle) Argv0() string { return b.manifest.Argv0 }

// Env returns the environment variables declared in the manifest.
func (b *Bundle) Env() map[string]string { return b.manifest.Env }

// Command resolves a command name to its entry script path inside the
// bundle. The returned path uses slashes, as seen by the interpreter.
func (b *Bundle) Command(name string) (string, error) {
	script, ok := b.manifest.Commands[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return "/" + filepath.ToSlash(script), nil
}

// Commands returns the sorted command names the bundle exposes.
func (b *Bundle) Commands() []string {
	names := make([]string, 0, len(b.manifest.Commands))
	for name := range b.manifest.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FS returns a read-only view of the bundle directory for mounting into
// the interpreter.
func (b *Bundle) FS() fs.FS {
	return os.DirFS(b.dir)
}
