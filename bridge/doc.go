// Package bridge supervises an embedded interpreter session.
//
// # Overview
//
// A Session owns one interpreter engine built from a resource bundle and
// executes the bundle's named commands with string arguments. Every
// invocation yields exactly one Result carrying captured stdout, stderr,
// and an integer status. Invocations on a Session are serialized through a
// single execution slot, so output captures never interleave.
//
// # Basic Usage
//
//	session, err := bridge.Open("wallpaperctl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	res := session.Run(ctx, "status", nil)
//	fmt.Print(res.Stdout)
//
// # Asynchronous Invocation
//
//	session.RunAsync(ctx, "start", []string{"--speed", "1.5"}, func(res bridge.Result) {
//	    if res.Status != bridge.StatusOK {
//	        fmt.Fprint(os.Stderr, res.Stderr)
//	    }
//	})
//
// The completion callback fires exactly once, on success or failure. Go
// returns the same single-shot delivery as a channel instead.
//
// # Errors
//
// Failures are reported per invocation through Result.Err and the status
// code. LastError additionally mirrors the most recent failure on the
// Session as a diagnostic convenience; it is overwritten by any later
// failing invocation, so concurrent callers should rely on their own
// Result.
package bridge
