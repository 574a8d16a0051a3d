package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // conflicts with --strict, unresolved lookups
	ExitCommandError = 2 // bad flags, unreadable inputs
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// formatter writes a command result as text or as a JSON envelope.
type formatter struct {
	format string
	w      io.Writer
}

// success writes data. In text mode text renders it; a nil text prints data
// with fmt.
func (f formatter) success(data any, text func(io.Writer)) error {
	if f.format == "json" {
		return json.NewEncoder(f.w).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if text != nil {
		text(f.w)
		return nil
	}
	_, err := fmt.Fprintln(f.w, data)
	return err
}
