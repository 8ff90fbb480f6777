// Package pybridge supervises an embedded Python interpreter from a Go
// host. The interpreter and its command scripts ship as a resource bundle;
// pybridge runs the bundle's named commands and captures their stdout,
// stderr, and exit status.
//
// # Overview
//
// The interpreter runs as a WebAssembly module under wazero with zero
// default capabilities: it sees only the bundle's own files and the host
// functions explicitly exposed to it.
//
// # Basic Usage
//
//	// One-shot invocation
//	res := pybridge.Invoke(ctx, "wallpaperctl", "status", nil)
//	fmt.Print(res.Stdout)
//
//	// Session with multiple invocations
//	session, _ := bridge.Open("wallpaperctl")
//	defer session.Close()
//
//	session.Run(ctx, "set-speed", []string{"1.5"})
//	session.RunAsync(ctx, "start", nil, func(res bridge.Result) {
//	    fmt.Print(res.Stdout)
//	})
//
// See the [bridge], [bundle], [interp], and [hostcall] packages for
// detailed API documentation.
package pybridge
