package extractor

import (
	"errors"
	"fmt"
)

// MaxDiagnosticLen bounds the stderr text carried by ExitError.
const MaxDiagnosticLen = 500

// ErrUnavailable means the extractor binary could not be started at all.
var ErrUnavailable = errors.New("extractor unavailable")

// StartError wraps the reason the process failed to start. It matches ErrUnavailable.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to run %s: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

func (e *StartError) Is(target error) bool { return target == ErrUnavailable }

// ExitError reports a run that exited non-zero without printing anything usable.
type ExitError struct {
	Path   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed (code %d): %s", e.Path, e.Code, e.Stderr)
}

// truncate keeps at most n characters (runes) of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
