package cli

import (
	"fmt"

	"github.com/petal-labs/petaltools/tool"
)

// Process exit codes.
const (
	exitSuccess    = 0
	exitValidation = 1
	exitRuntime    = 2
	exitInputParse = 4
	exitProvider   = 5
	exitConfig     = 7
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// envelopeExitCode maps a failed envelope's kind to an exit code.
func envelopeExitCode(kind tool.ErrorKind) int {
	switch kind {
	case tool.KindConfiguration:
		return exitConfig
	case tool.KindModelUnavailable:
		return exitProvider
	case tool.KindToolExecution:
		return exitRuntime
	default:
		return exitValidation
	}
}
