package control

import "errors"

// Sentinel errors for the control-plane's own lifecycle and socket
// failures, wrapped with fmt.Errorf and classified with errors.Is, in the
// same style as the teacher's internal/server/errors.go taxonomy.
var (
	ErrAlreadyRunning     = errors.New("control: session already running")
	ErrNotRunning         = errors.New("control: session not running")
	ErrOpenSocket         = errors.New("control: open socket")
	ErrShutdown           = errors.New("control: shutdown timeout")
	ErrFatalReceiveErrors = errors.New("control: receive error budget exceeded")
)
