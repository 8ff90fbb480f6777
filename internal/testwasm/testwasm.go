// Package testwasm provides tiny hand-assembled WASM modules that stand in
// for a real interpreter binary in tests and benchmarks. Each fixture is a
// complete valid module exporting _start.
package testwasm

import (
	"os"
	"path/filepath"
	"testing"
)

// Noop exports a _start that returns immediately. Exit status 0, no output.
var Noop = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic + version
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type: () -> ()
	0x03, 0x02, 0x01, 0x00, // func 0 uses type 0
	0x07, 0x0a, 0x01, // export section
	0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00, // export _start = func 0
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b, // code: empty body
}

// Exit3 calls wasi proc_exit(3).
var Exit3 = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x08, 0x02, // type section, 2 types
	0x60, 0x01, 0x7f, 0x00, // (i32) -> ()
	0x60, 0x00, 0x00, // () -> ()
	0x02, 0x24, 0x01, // import section
	0x16, 'w', 'a', 's', 'i', '_', 's', 'n', 'a', 'p', 's', 'h', 'o', 't',
	'_', 'p', 'r', 'e', 'v', 'i', 'e', 'w', '1',
	0x09, 'p', 'r', 'o', 'c', '_', 'e', 'x', 'i', 't',
	0x00, 0x00, // func import, type 0
	0x03, 0x02, 0x01, 0x01, // func 1 uses type 1
	0x07, 0x0a, 0x01,
	0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01, // export _start = func 1
	0x0a, 0x08, 0x01, 0x06, 0x00, // code: one body, no locals
	0x41, 0x03, // i32.const 3
	0x10, 0x00, // call proc_exit
	0x0b, // end
}

// Hello writes "hello\n" to stdout via wasi fd_write and returns.
var Hello = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0c, 0x02, // type section, 2 types
	0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, // (i32 x4) -> i32
	0x60, 0x00, 0x00, // () -> ()
	0x02, 0x23, 0x01, // import section
	0x16, 'w', 'a', 's', 'i', '_', 's', 'n', 'a', 'p', 's', 'h', 'o', 't',
	'_', 'p', 'r', 'e', 'v', 'i', 'e', 'w', '1',
	0x08, 'f', 'd', '_', 'w', 'r', 'i', 't', 'e',
	0x00, 0x00, // func import, type 0
	0x03, 0x02, 0x01, 0x01, // func 1 uses type 1
	0x05, 0x03, 0x01, 0x00, 0x01, // memory: min 1 page
	0x07, 0x13, 0x02, // export section, 2 exports
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01,
	0x0a, 0x0f, 0x01, 0x0d, 0x00, // code: one body, no locals
	0x41, 0x01, // i32.const 1 (stdout fd)
	0x41, 0x00, // i32.const 0 (iovec array)
	0x41, 0x01, // i32.const 1 (iovec count)
	0x41, 0x10, // i32.const 16 (nwritten out)
	0x10, 0x00, // call fd_write
	0x1a, // drop
	0x0b, // end
	0x0b, 0x14, 0x01, 0x00, // data section, one active segment
	0x41, 0x00, 0x0b, // at offset 0
	0x0e, // 14 bytes: iovec{ptr=8,len=6} then "hello\n"
	0x08, 0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00,
	'h', 'e', 'l', 'l', 'o', 0x0a,
}

// Spin loops forever. Used to exercise deadline interruption.
var Spin = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01,
	0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, // code: one body, no locals
	0x03, 0x40, // loop
	0x0c, 0x00, // br 0
	0x0b, // end loop
	0x0b, // end
}

const manifest = `name = "testbundle"
interpreter = "python.wasm"
argv0 = "python"

[commands]
status = "commands/status.py"
start = "commands/start.py"
stop = "commands/stop.py"
`

// WriteBundle lays out a loadable bundle directory around the given
// interpreter fixture and returns its path.
func WriteBundle(tb testing.TB, wasm []byte) string {
	tb.Helper()

	dir := tb.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bundle.toml"), []byte(manifest), 0644); err != nil {
		tb.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "python.wasm"), wasm, 0644); err != nil {
		tb.Fatalf("write interpreter: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "commands"), 0755); err != nil {
		tb.Fatalf("mkdir commands: %v", err)
	}
	for _, script := range []string{"status.py", "start.py", "stop.py"} {
		if err := os.WriteFile(filepath.Join(dir, "commands", script), []byte("pass\n"), 0644); err != nil {
			tb.Fatalf("write script: %v", err)
		}
	}
	return dir
}
