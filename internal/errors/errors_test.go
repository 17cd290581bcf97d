package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

// ============================================================================
// AssemblyError
// ============================================================================

func TestKinds(t *testing.T) {
	tests := []struct {
		err   *AssemblyError
		kind  Kind
		fatal bool
		stack bool
	}{
		{Malformed(P0001, "band exhausted"), KindMalformed, false, false},
		{Invariant(P0101, "late entry"), KindInvariant, true, true},
		{Encoding(P0200, "bad padding"), KindEncoding, true, true},
		{Wrap(fmt.Errorf("io"), P0007, "too long"), KindMalformed, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, tt.err.Kind)
			}
			if IsFatal(tt.err) != tt.fatal {
				t.Errorf("Expected fatal %v", tt.fatal)
			}
			if got := tt.err.StackTrace() != nil; got != tt.stack {
				t.Errorf("Expected stack %v, got %v", tt.stack, got)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := Malformed(P0005, "ldc cannot load %s", "Long").
		WithInstruction(0x12, 3).
		WithEntry("Long 5").
		InMethod("demo/A", "run")

	want := "P0005: demo/A.run: ldc cannot load Long (instruction 3, opcode 18) [Long 5]"
	if got := err.Error(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestCopiesDoNotAlias(t *testing.T) {
	base := Malformed(P0008, "target")
	a := base.WithInstruction(0xa7, 1)
	if base.Instruction != -1 || a.Instruction != 1 {
		t.Errorf("Expected WithInstruction to copy, base=%d copy=%d", base.Instruction, a.Instruction)
	}
}

func TestAsThroughWrapping(t *testing.T) {
	inner := Malformed(P0003, "missing")
	wrapped := fmt.Errorf("assembling: %w", inner)
	if CodeOf(wrapped) != P0003 {
		t.Errorf("Expected P0003, got %q", CodeOf(wrapped))
	}
	if CodeOf(stderrors.New("plain")) != "" {
		t.Errorf("Expected empty code for plain error")
	}
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		panic(Invariant(P0100, "not resolved"))
	}
	if err := run(); CodeOf(err) != P0100 {
		t.Errorf("Expected recovered P0100, got %v", err)
	}

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("Expected foreign panic to propagate, got %v", r)
		}
	}()
	func() (err error) {
		defer Recover(&err)
		panic("boom")
	}()
}

// ============================================================================
// 格式化与报告
// ============================================================================

func TestFormat(t *testing.T) {
	f := NewFormatter()
	err := Malformed(P0005, "ldc cannot load Long").WithInstruction(0x12, 3).WithEntry("Long 5").InMethod("demo/A", "run")
	out := f.Format(err)

	for _, want := range []string{
		"error[P0005]: ldc cannot load Long",
		"--> demo/A.run, instruction 3 (ldc)",
		"= entry: Long 5",
		"= help: ldc takes Integer",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
	if out != Strip(out) {
		t.Errorf("Expected no colors by default")
	}
}

func TestFormatFatal(t *testing.T) {
	f := &Formatter{Colors: true, ShowStack: true}
	out := f.Format(Invariant(P0101, "late entry"))
	plain := Strip(out)

	if !strings.HasPrefix(plain, "bug[P0101]: late entry") {
		t.Errorf("Expected bug header, got %q", plain)
	}
	if out == plain {
		t.Errorf("Expected colored output")
	}
	if !strings.Contains(plain, "= stack:") {
		t.Errorf("Expected stack trace in output")
	}
}

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	r.Report(nil)
	if r.HasErrors() {
		t.Fatalf("Expected nil to be ignored")
	}

	r.Report(multierr.Combine(
		Malformed(P0001, "band exhausted").InMethod("demo/A", ""),
		Invariant(P0103, "no bucket").InMethod("demo/B", ""),
	))
	r.Report(fmt.Errorf("plain failure"))
	r.Summary()

	if r.ErrorCount() != 3 || r.FatalCount() != 1 {
		t.Errorf("Expected 3 errors / 1 fatal, got %d / %d", r.ErrorCount(), r.FatalCount())
	}
	if n := len(multierr.Errors(r.Err())); n != 3 {
		t.Errorf("Expected 3 combined errors, got %d", n)
	}
	out := buf.String()
	for _, want := range []string{"error[P0001]", "bug[P0103]", "error: plain failure", "3 class assembly error(s), 1 internal"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	r.Clear()
	if r.HasErrors() || r.Err() != nil {
		t.Errorf("Expected Clear to reset the reporter")
	}
}

func TestSupportsColor(t *testing.T) {
	if SupportsColor(&bytes.Buffer{}) {
		t.Errorf("Expected buffers to be uncolored")
	}
}
