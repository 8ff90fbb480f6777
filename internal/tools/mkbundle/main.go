// Command mkbundle scaffolds a bundle directory: it writes the manifest,
// a stub script per command, and downloads the interpreter WASM. An
// existing interpreter file is left untouched so re-runs are cheap.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: mkbundle <dir> <interpreter-url> <command> [command...]")
		os.Exit(1)
	}

	dir, url, commands := os.Args[1], os.Args[2], os.Args[3:]

	if err := os.MkdirAll(filepath.Join(dir, "commands"), 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var manifest strings.Builder
	fmt.Fprintf(&manifest, "name = %q\n", filepath.Base(dir))
	manifest.WriteString("interpreter = \"python.wasm\"\n\n[commands]\n")

	for _, name := range commands {
		fmt.Fprintf(&manifest, "%s = \"commands/%s.py\"\n", name, name)

		script := filepath.Join(dir, "commands", name+".py")
		if _, err := os.Stat(script); err == nil {
			continue
		}
		stub := fmt.Sprintf("import sys\n\nprint(%q)\nsys.exit(0)\n", name+": not implemented")
		if err := os.WriteFile(script, []byte(stub), 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "bundle.toml"), []byte(manifest.String()), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := download(url, filepath.Join(dir, "python.wasm")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func download(url, output string) error {
	if _, err := os.Stat(output); err == nil {
		return nil
	}

	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}
