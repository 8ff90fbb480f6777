package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBundle(t *testing.T, manifest string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bundle.toml"), []byte(manifest), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "python.wasm"), []byte("\x00asm"), 0644); err != nil {
		t.Fatalf("write interpreter: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "commands"), 0755); err != nil {
		t.Fatalf("mkdir commands: %v", err)
	}
	for _, script := range []string{"status.py", "start.py", "stop.py"} {
		if err := os.WriteFile(filepath.Join(dir, "commands", script), []byte("print('ok')\n"), 0644); err != nil {
			t.Fatalf("write script: %v", err)
		}
	}
	return dir
}

const validManifest = `
name = "wallpaperctl"
interpreter = "python.wasm"
argv0 = "python"

[env]
PYTHONHOME = "/"

[commands]
status = "commands/status.py"
start = "commands/start.py"
stop = "commands/stop.py"
`

func TestLoadValidBundle(t *testing.T) {
	dir := writeBundle(t, validManifest)

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if b.Name() != "wallpaperctl" {
		t.Errorf("name = %q, want %q", b.Name(), "wallpaperctl")
	}
	if b.Argv0() != "python" {
		t.Errorf("argv0 = %q, want %q", b.Argv0(), "python")
	}
	if len(b.Interpreter()) == 0 {
		t.Error("interpreter bytes should not be empty")
	}
	if b.Env()["PYTHONHOME"] != "/" {
		t.Errorf("env PYTHONHOME = %q, want %q", b.Env()["PYTHONHOME"], "/")
	}

	want := []string{"start", "status", "stop"}
	got := b.Commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("commands[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCommandResolution(t *testing.T) {
	b, err := Load(writeBundle(t, validManifest))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	script, err := b.Command("status")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if script != "/commands/status.py" {
		t.Errorf("script = %q, want %q", script, "/commands/status.py")
	}

	_, err = b.Command("nonexistent")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestLoadInvalidManifests(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantMsg  string
	}{
		{
			name:     "missing interpreter",
			manifest: "[commands]\nstatus = \"commands/status.py\"\n",
			wantMsg:  "interpreter",
		},
		{
			name:     "no commands",
			manifest: "interpreter = \"python.wasm\"\n",
			wantMsg:  "no commands",
		},
		{
			name:     "escaping script path",
			manifest: "interpreter = \"python.wasm\"\n[commands]\nstatus = \"../../etc/passwd\"\n",
			wantMsg:  "escapes bundle",
		},
		{
			name:     "missing script",
			manifest: "interpreter = \"python.wasm\"\n[commands]\nstatus = \"commands/missing.py\"\n",
			wantMsg:  "status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeBundle(t, tt.manifest)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestResolveByPath(t *testing.T) {
	dir := writeBundle(t, validManifest)

	got, err := Resolve(dir)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != dir {
		t.Errorf("resolved = %q, want %q", got, dir)
	}
}

func TestResolveBySearchPath(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "wallpaperctl")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("PYBRIDGE_BUNDLE_PATH", parent)

	got, err := Resolve("wallpaperctl")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != dir {
		t.Errorf("resolved = %q, want %q", got, dir)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Setenv("PYBRIDGE_BUNDLE_PATH", t.TempDir())

	_, err := Resolve("no-such-bundle")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = Resolve("")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty name, got %v", err)
	}
}

func TestDefaultArgv0(t *testing.T) {
	manifest := "interpreter = \"python.wasm\"\n[commands]\nstatus = \"commands/status.py\"\n"
	b, err := Load(writeBundle(t, manifest))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if b.Argv0() != "python" {
		t.Errorf("argv0 = %q, want default %q", b.Argv0(), "python")
	}
}
