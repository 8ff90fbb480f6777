package pybridge

import (
	"context"
	"fmt"

	"github.com/quailyard/pybridge/bridge"
)

// Invoke opens a Session for the named resource bundle, runs one command,
// and closes the Session again. Convenience wrapper for callers that do not
// need session reuse.
func Invoke(ctx context.Context, resource, command string, args []string, opts ...bridge.Option) bridge.Result {
	session, err := bridge.Open(resource, opts...)
	if err != nil {
		return bridge.Result{
			Status: bridge.StatusHostError,
			Err:    fmt.Errorf("open %s: %w", resource, err),
		}
	}
	defer session.Close()

	return session.Run(ctx, command, args)
}
