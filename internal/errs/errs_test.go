package errs

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestWrap_PreservesCause(t *testing.T) {
	t.Parallel()

	err := Wrap(FileRead, "failed to read config", os.ErrNotExist)
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("wrapped error should match the underlying cause")
	}
	if err.Raw != os.ErrNotExist.Error() {
		t.Errorf("Raw = %q, want %q", err.Raw, os.ErrNotExist.Error())
	}
	if Wrap(FileRead, "x", nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestIs_MatchesByKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("source calc: %w", New(Timeout, "operation timed out", ""))
	if !errors.Is(err, New(Timeout, "", "")) {
		t.Error("expected Timeout kind to match through wrapping")
	}
	if errors.Is(err, New(Network, "", "")) {
		t.Error("different kinds must not match")
	}
	if got := KindOf(err); got != Timeout {
		t.Errorf("KindOf = %q, want %q", got, Timeout)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	if got := New(CommandExec, "spawn failed", "").Error(); got != "CommandExec: spawn failed" {
		t.Errorf("unexpected message %q", got)
	}
	if got := New(CommandExec, "spawn failed", "exit 1").Error(); got != "CommandExec: spawn failed: exit 1" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDiagnostics_MarksWarnings(t *testing.T) {
	t.Parallel()

	var d Diagnostics
	d.Add(New(InvalidSource, "unknown type", "foo"))
	d.Add(nil)

	all := d.All()
	if len(all) != 1 || d.Len() != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(all))
	}
	if all[0].Severity != NonBreaking {
		t.Errorf("diagnostic severity = %v, want warning", all[0].Severity)
	}
}
