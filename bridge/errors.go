package bridge

import "errors"

var (
	// ErrInit wraps failures to resolve, load, or start a resource bundle.
	ErrInit = errors.New("initialization failed")

	// ErrInvocation wraps failures of a single command invocation: unknown
	// or empty command, or the command exiting non-zero.
	ErrInvocation = errors.New("invocation failed")

	// ErrTimeout marks an invocation that hit its deadline. The session
	// stays usable.
	ErrTimeout = errors.New("invocation timed out")

	// ErrSessionClosed is returned once a session is closed or its
	// interpreter became unusable.
	ErrSessionClosed = errors.New("session closed")
)

// Status codes reported in Result for host-side failures. Interpreter exit
// codes are passed through as-is.
const (
	StatusOK        = 0
	StatusTimeout   = 124
	StatusHostError = 125
)
