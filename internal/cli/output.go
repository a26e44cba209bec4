package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/roach88/intercase/internal/diag"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Check failure (malformed documents, conflicts)
	ExitCommandError = 2 // Command error (bad config, missing files, I/O)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Config missing or invalid
	ErrCodeInput       = "E003" // Bad command input
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeMalformed          = "E201" // MALFORMED_DOCUMENT
	ErrCodeDuplicateConflict  = "E202" // DUPLICATE_CASE_CONFLICT
	ErrCodeConflictingUpdates = "E203" // CONFLICTING_UPDATES
	ErrCodeStorageWrite       = "E204" // STORAGE_WRITE_FAILURE
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps an error to its output code and exit code.
func classify(err error) (code string, exit int) {
	if kind, ok := diag.KindOf(err); ok {
		switch kind {
		case diag.KindMalformedDocument:
			return ErrCodeMalformed, ExitFailure
		case diag.KindDuplicateCaseConflict:
			return ErrCodeDuplicateConflict, ExitFailure
		case diag.KindConflictingUpdates:
			return ErrCodeConflictingUpdates, ExitFailure
		case diag.KindStorageWriteFailure:
			return ErrCodeStorageWrite, ExitCommandError
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCodeNotFound, ExitCommandError
	}
	return ErrCodeGeneric, ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs data as JSON, or calls text to write the human-readable
// form.
func (f *OutputFormatter) Result(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	text(f.Writer)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
// Taxonomy errors carry their diagnostic as details.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	var details any
	if d, ok := diag.AsDiagnostic(err); ok {
		details = d
	}
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), details)
	return WrapExitError(exit, fmt.Sprintf("%s [%s]", message, code), err)
}

// writeDiagnostics writes diagnostics in text form, one per line.
func writeDiagnostics(w io.Writer, diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
