package errors

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: 0,
		},
		{
			name: "classified validation error",
			err: NewError(CategoryValidation, "invalid input").
				WithSeverity(SeverityError).
				Build(),
			expected: 2,
		},
		{
			name:     "config error",
			err:      ConfigError("unknown cache mode").Build(),
			expected: 7,
		},
		{
			name:     "missing environment",
			err:      MissingEnvironment("COVFILE").Build(),
			expected: 6,
		},
		{
			name:     "build failure",
			err:      BuildError("Failure to build over dfuse in mode data").Build(),
			expected: 11,
		},
		{
			name:     "timeout",
			err:      TimeoutError("Timeout building over dfuse in mode nocache").Build(),
			expected: 13,
		},
		{
			name:     "wrapped classified error",
			err:      fmt.Errorf("run writeback: %w", ProvisionError("pool create failed").Build()),
			expected: 12,
		},
		{
			name:     "unclassified error",
			err:      &customError{msg: "unknown error"},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.ExitCodeFor(tt.err)
			if got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name: "internal error in non-verbose mode",
			err: NewError(CategoryInternal, "internal issue").
				WithSeverity(SeverityError).
				Build(),
			contains: "Internal error occurred (use -v for details)",
		},
		{
			name:     "timeout keeps verdict visible",
			err:      TimeoutError("Timeout building over dfuse in mode nocache").Build(),
			contains: "Timeout building over dfuse in mode nocache",
		},
		{
			name:     "missing environment names the variable",
			err:      MissingEnvironment("COVFILE").Build(),
			contains: "COVFILE",
		},
		{
			name:     "missing environment carries a hint",
			err:      MissingEnvironment("DAOS_PREFIX").Build(),
			contains: "Hint: export DAOS_PREFIX",
		},
		{
			name:     "unclassified error",
			err:      &customError{msg: "unknown error"},
			contains: "Error: unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.FormatError(tt.err)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("FormatError() = %q, want to contain %q", got, tt.contains)
			}
		})
	}

	if got := adapter.FormatError(nil); got != "" {
		t.Errorf("FormatError(nil) = %q, want empty string", got)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out, logs bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(BuildError("Failure to build over dfuse in mode data").
		WithContext("step", "build").
		Build())

	if code != 11 {
		t.Errorf("exit code = %d, want 11", code)
	}
	if !strings.Contains(out.String(), "Failure to build over dfuse in mode data") {
		t.Errorf("stderr output = %q", out.String())
	}
	if !strings.Contains(logs.String(), "step=build") {
		t.Errorf("expected context in log output, got %q", logs.String())
	}
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
