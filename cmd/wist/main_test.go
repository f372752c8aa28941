package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wist-lang/wist/internal/diagnostics"
)

const program = `
defs:
  - name: id
    body: {lam: x, body: x}
main: [id, {tuple: [1, 2]}]
`

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.wist.yaml")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRun(t *testing.T) {
	out, _, err := execute(t, "run", writeProgram(t, program))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "(1, 2)\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRun_Trace(t *testing.T) {
	_, stderr, err := execute(t, "run", "--trace", writeProgram(t, program))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr, "op=GRAB") {
		t.Errorf("trace missing from stderr:\n%s", stderr)
	}
}

func TestRun_MaxSteps(t *testing.T) {
	path := writeProgram(t, `
defs:
  - name: loop
    body: {lam: x, body: [loop, x]}
main: [loop, 0]
`)
	_, _, err := execute(t, "run", "--max-steps", "100", path)
	if !errors.Is(err, diagnostics.ErrStepLimit) {
		t.Fatalf("got %v, want step limit", err)
	}
}

func TestRun_ConfigBesideProgram(t *testing.T) {
	path := writeProgram(t, `
defs:
  - name: loop
    body: {lam: x, body: [loop, x]}
main: [loop, 0]
`)
	cfg := filepath.Join(filepath.Dir(path), "wist.yaml")
	if err := os.WriteFile(cfg, []byte("vm:\n  max_steps: 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := execute(t, "run", path)
	if !errors.Is(err, diagnostics.ErrStepLimit) {
		t.Fatalf("got %v, want step limit from wist.yaml", err)
	}
}

func TestDisasm(t *testing.T) {
	out, _, err := execute(t, "disasm", writeProgram(t, program))
	if err != nil {
		t.Fatalf("disasm: %v", err)
	}
	for _, want := range []string{"; prog\n", "== id ==", "== main ==", "GRAB", "SETGLOBAL", "'id'", "PUSHMARK", "globals: id=0"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing should contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colour codes written to a non-terminal")
	}
}

func TestLIR(t *testing.T) {
	out, _, err := execute(t, "lir", writeProgram(t, program))
	if err != nil {
		t.Fatalf("lir: %v", err)
	}
	for _, want := range []string{"; prog\n", "== id ==", "Lambda #0", "Variable #0 depth 0", "Global id", "Make Block tuple/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"run", filepath.Join(t.TempDir(), "nope.wist.yaml")}, "no such file"},
		{"bad document", []string{"run", writeProgram(t, "main: {lam: x}\n")}, "lambda needs a body"},
		{"unknown global", []string{"lir", writeProgram(t, "main: [f, 1]\n")}, "global is not declared"},
		{"no file", []string{"run"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}
