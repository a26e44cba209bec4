package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intercase/internal/diag"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"id": "abc"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"id": "abc"}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeConfig, "service is required", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E002", resp.Error.Code)
	assert.Equal(t, "service is required", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("E001", "load failed", map[string]string{"file": "svc.yml"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]: load failed")
	assert.NotContains(t, buf.String(), "Details:")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("E001", "load failed", map[string]string{"file": "svc.yml"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Result(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Result(IDResult{ID: "abc"}, func(w io.Writer) {
		fmt.Fprintln(w, "text form")
	})
	require.NoError(t, err)
	assert.Equal(t, "text form\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.Result(IDResult{ID: "abc"}, func(io.Writer) {
		t.Fatal("text output used in json mode")
	}))
	assert.JSONEq(t, `{"status":"ok","data":{"id":"abc"}}`, buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Loaded %d case(s)", 3)

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Loaded 3 case(s)")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestFailClassifiesErrors(t *testing.T) {
	loc := diag.Location{Path: "svc.yml", Index: 0}
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"malformed", diag.Malformedf(loc, "bad"), ErrCodeMalformed, ExitFailure},
		{"duplicate_conflict", diag.NewDuplicateCaseConflict("id", loc, loc), ErrCodeDuplicateConflict, ExitFailure},
		{"conflicting_updates", fmt.Errorf("commit: %w", diag.NewConflictingUpdates("id", loc, loc)), ErrCodeConflictingUpdates, ExitFailure},
		{"storage_write", diag.NewStorageWriteFailure("store.yml", errors.New("disk full")), ErrCodeStorageWrite, ExitCommandError},
		{"not_found", fmt.Errorf("open: %w", fs.ErrNotExist), ErrCodeNotFound, ExitCommandError},
		{"other", errors.New("boom"), ErrCodeGeneric, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail("operation failed", tt.err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestFailIncludesDiagnostic(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	first := diag.Location{Path: "a.update.yml", Index: 0, Line: 1}
	second := diag.Location{Path: "b.update.yml", Index: 0, Line: 1}
	_ = formatter.Fail("commit failed", diag.NewConflictingUpdates("abc", first, second))

	var resp struct {
		Error struct {
			Details diag.Diagnostic `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, diag.KindConflictingUpdates, resp.Error.Details.Kind)
	assert.Equal(t, "abc", resp.Error.Details.Identifier)
	assert.Equal(t, []diag.Location{first, second}, resp.Error.Details.Locations)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "check failed"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
