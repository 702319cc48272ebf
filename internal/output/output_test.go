package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gorewood/noter/internal/apperr"
)

func TestPrinter_JSON_Success(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, true, false)

	if err := printer.Success(map[string]any{"status": "created", "path": "notes/02101/x.typ"}); err != nil {
		t.Fatalf("Success() error = %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse JSON: %v\nOutput: %s", err, buf.String())
	}
	if result["status"] != "created" || result["path"] != "notes/02101/x.typ" {
		t.Errorf("result = %v", result)
	}
}

func TestPrinter_JSON_Error(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, true, false)

	printer.Error(apperr.VariantNotFound("lab", nil))

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse JSON: %v\nOutput: %s", err, buf.String())
	}
	if result["error"] != "template variant not found: lab" {
		t.Errorf("error = %v", result["error"])
	}
	if code, ok := result["code"].(float64); !ok || int(code) != ExitUserError {
		t.Errorf("code = %v, want %d", result["code"], ExitUserError)
	}
}

func TestPrinter_Human(t *testing.T) {
	var out, errOut bytes.Buffer
	printer := NewPrinter(&out, false, false).WithStderr(&errOut)

	if err := printer.Success(map[string]any{"message": "Created note"}); err != nil {
		t.Fatal(err)
	}
	printer.Error(NewConflictError("file exists"))
	printer.Warn("using %s", "builtin")

	if got := out.String(); got != "Created note\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := errOut.String(); got != "Error: file exists\nWarning: using builtin\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestPrinter_SuccessSortsKeys(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, false, false)
	if err := printer.Success(map[string]any{"version": "1.0.0", "source": "builtin", "variant": "lecture"}); err != nil {
		t.Fatal(err)
	}
	want := "source: builtin\nvariant: lecture\nversion: 1.0.0\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, false, false)
	printer.Table([]string{"SOURCE", "KIND"}, [][]string{{"builtin", "builtin"}, {"dtu", "remote"}})

	want := "SOURCE   KIND\nbuiltin  builtin\ndtu      remote\n"
	if got := buf.String(); got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}

func TestPrinter_StderrSilentInJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	printer := NewPrinter(&out, true, false).WithStderr(&errOut)
	printer.Stderr("hint\n")
	if errOut.Len() != 0 || out.Len() != 0 {
		t.Errorf("Stderr() wrote in JSON mode: %q %q", out.String(), errOut.String())
	}
}

func TestPrinter_CheckAndBox(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, false, false)
	printer.Check(CheckPass, "config", "defaults")
	printer.Check(CheckWarn, "remote", "offline")
	printer.Check(CheckFail, "cache", "")
	printer.Box("Title", "body")

	got := buf.String()
	for _, want := range []string{"  ✓ config defaults\n", "  ! remote offline\n", "  ✗ cache\n", "Title\n\nbody\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"variant not found", apperr.VariantNotFound("x", nil), ExitUserError},
		{"missing variable", fmt.Errorf("wrap: %w", apperr.MissingVariable("x", nil)), ExitUserError},
		{"source not found", apperr.SourceNotFound(""), ExitSystemError},
		{"version unresolved", apperr.VersionUnresolved("s", nil), ExitSystemError},
		{"fetch failed", apperr.FetchFailed("o/r", nil), ExitSystemError},
		{"cache corrupt", apperr.CacheCorrupt("/p", nil), ExitSystemError},
		{"conflict passes through", NewConflictError("exists"), ExitConflict},
		{"plain error", errors.New("disk full"), ExitSystemError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.Code != tt.want {
				t.Errorf("FromError().Code = %d, want %d", got.Code, tt.want)
			}
			if !errors.Is(got, tt.err) && got != tt.err {
				t.Errorf("FromError() lost the cause")
			}
		})
	}
	if FromError(nil) != nil {
		t.Error("FromError(nil) != nil")
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{NewUserError("x"), ExitUserError},
		{NewSystemErrorWithCause("x", errors.New("y")), ExitSystemError},
		{fmt.Errorf("wrapped: %w", NewConflictError("x")), ExitConflict},
		{errors.New("untyped"), ExitUserError},
	}
	for _, tt := range tests {
		if got := GetExitCode(tt.err); got != tt.want {
			t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestColorModes(t *testing.T) {
	if !ResolveColorMode(ColorAlways, false) || ResolveColorMode(ColorNever, true) || !ResolveColorMode(ColorAuto, true) {
		t.Error("ResolveColorMode() wrong")
	}
	if mode, err := ParseColorMode(""); err != nil || mode != ColorAuto {
		t.Errorf("ParseColorMode(\"\") = %q, %v", mode, err)
	}
	if _, err := ParseColorMode("rainbow"); GetExitCode(err) != ExitUserError {
		t.Errorf("ParseColorMode(rainbow) error = %v, want user error", err)
	}
	if IsTTY(&bytes.Buffer{}) {
		t.Error("IsTTY(buffer) = true")
	}
}
