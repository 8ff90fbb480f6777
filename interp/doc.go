// Package interp runs interpreter resource bundles under wazero.
//
// An Engine owns one WebAssembly runtime and the compiled interpreter module
// of one bundle. Each Exec instantiates the interpreter fresh with the
// command's argv, the bundle mounted read-only, and captured stdio. Host
// function calls embedded in the interpreter's stderr stream are dispatched
// to a hostcall.Registry and answered over stdin.
package interp
