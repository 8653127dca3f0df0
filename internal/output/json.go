package output

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/klytics/licensekit/cmd/version"
)

// Exit codes for consistent error reporting.
const (
	ExitOK          = 0 // success
	ExitUserError   = 1 // bad flags, invalid config or taxonomy
	ExitSystemError = 2 // data source, sink or IO failure
)

// JSONResult is the JSON envelope every command prints with --json.
type JSONResult struct {
	OK      bool   `json:"ok"`
	Command string `json:"command"`
	Version string `json:"version"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// CodedError carries the exit code a command should terminate with.
type CodedError struct {
	Code int
	Err  error
}

func (e *CodedError) Error() string { return e.Err.Error() }
func (e *CodedError) Unwrap() error { return e.Err }

// UserError marks err as caused by bad input.
func UserError(err error) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: ExitUserError, Err: err}
}

// SystemError marks err as an environment failure.
func SystemError(err error) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: ExitSystemError, Err: err}
}

// ExitCode maps err to a process exit code. Unmarked errors are user errors,
// matching cobra's flag and argument failures.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ExitUserError
}

// PrintJSON writes a success envelope to stdout.
func PrintJSON(cmd string, data any) error {
	return WriteJSON(os.Stdout, cmd, data)
}

// WriteJSON writes a success envelope to w.
func WriteJSON(w io.Writer, cmd string, data any) error {
	return encode(w, JSONResult{
		OK:      true,
		Command: cmd,
		Version: version.Version,
		Data:    data,
	})
}

// PrintJSONError writes an error envelope to stdout.
func PrintJSONError(cmd string, err error) error {
	return WriteJSONError(os.Stdout, cmd, err)
}

// WriteJSONError writes an error envelope for err to w.
func WriteJSONError(w io.Writer, cmd string, err error) error {
	result := JSONResult{
		OK:      false,
		Command: cmd,
		Version: version.Version,
		Error:   err.Error(),
		Code:    ExitCode(err),
	}
	if encErr := encode(w, result); encErr != nil {
		return fmt.Errorf("could not encode JSON error: %w", encErr)
	}
	return nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
