package parser_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devzendo/transputer-asm/expr"
	"github.com/devzendo/transputer-asm/parser"
)

func TestMacroExpansionSubstitutesParameters(t *testing.T) {
	src := "PUSHIT MACRO VAL\n" +
		"LDC \\VAL\n" +
		"ENDM\n" +
		"ORG 0\n" +
		"PUSHIT 5\n" +
		"END\n"

	p := parser.NewParser(src, "macro.asm")
	lines := p.Parse(src)
	if p.Errors().HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Errors().Error())
	}

	var found bool
	for _, l := range lines {
		d, ok := l.Stmt.(parser.Direct)
		if !ok || d.Mnemonic != "LDC" {
			continue
		}
		v, err := expr.Evaluate(d.Expr, nil)
		if err != nil {
			t.Fatalf("unexpected undefined expr after macro expansion: %v", err)
		}
		if v != 5 {
			t.Fatalf("expected expanded LDC argument 5, got %d", v)
		}
		found = true
	}
	if !found {
		t.Fatalf("expected a LDC statement from macro expansion, lines: %#v", lines)
	}
}

func TestMacroRecursionIsRejected(t *testing.T) {
	src := "LOOP MACRO\n" +
		"LOOP\n" +
		"ENDM\n" +
		"LOOP\n" +
		"END\n"

	p := parser.NewParser(src, "recurse.asm")
	p.Parse(src)
	if !p.Errors().HasErrors() {
		t.Fatalf("expected a recursive macro expansion error")
	}
}

func TestIncludeCycleIsDetected(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.inc")
	b := filepath.Join(dir, "b.inc")
	if err := os.WriteFile(a, []byte("INCLUDE b.inc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("INCLUDE a.inc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "main.asm")
	if err := os.WriteFile(main, []byte("INCLUDE a.inc\nEND\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, includeErrs, err := parser.ParseFile(main)
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if includeErrs == nil || !includeErrs.HasErrors() {
		t.Fatalf("expected a circular-include error to be reported")
	}
}

func TestIntegerLiteralForms(t *testing.T) {
	src := "ORG 0\n" +
		"DB 0x1A\n" +
		"DB 0b101\n" +
		"DB 0o17\n" +
		"DB 19H\n" +
		"DB 26\n" +
		"END\n"

	p := parser.NewParser(src, "literals.asm")
	lines := p.Parse(src)
	if p.Errors().HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Errors().Error())
	}

	want := []int32{0x1A, 0b101, 0o17, 0x19, 26}
	var got []int32
	for _, l := range lines {
		d, ok := l.Stmt.(parser.Data)
		if !ok {
			continue
		}
		for _, e := range d.Exprs {
			v, err := expr.Evaluate(e, nil)
			if err != nil {
				t.Fatalf("unexpected evaluation error: %v", err)
			}
			got = append(got, v)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d literal values, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("literal %d: expected %#x, got %#x", i, want[i], got[i])
		}
	}
}
