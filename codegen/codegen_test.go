package codegen_test

import (
	"testing"

	"github.com/devzendo/transputer-asm/codegen"
	"github.com/devzendo/transputer-asm/ident"
	"github.com/devzendo/transputer-asm/model"
	"github.com/devzendo/transputer-asm/parser"
)

func assemble(t *testing.T, source string) (*model.AssemblyModel, *codegen.CodeGenerator) {
	t.Helper()
	p := parser.NewParser(source, "test.asm")
	lines := p.Parse(source)
	if p.Errors().HasErrors() {
		t.Fatalf("parse errors: %v", p.Errors().Error())
	}
	gen := codegen.NewCodeGenerator(ident.NewNormalizer(false), false)
	m := gen.CreateModel(lines)
	return m, gen
}

func requireNoErrors(t *testing.T, m *model.AssemblyModel, gen *codegen.CodeGenerator) {
	t.Helper()
	if errs := m.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected model errors: %v", errs)
	}
	if errs := gen.CodeGenerationErrors(); len(errs) != 0 {
		t.Fatalf("unexpected codegen errors: %v", errs)
	}
}

// bytesAt collects every byte a line log emitted at the given address,
// scanning every logged line's sourced values for a Storage overlapping it.
func bytesAt(m *model.AssemblyModel, addr int32, n int) []byte {
	out := make([]byte, n)
	found := make([]bool, n)
	m.ForeachLineSourcedValues(func(_ model.IndexedLine, values []model.SourcedValue) {
		for _, v := range values {
			s, ok := v.(*model.Storage)
			if !ok {
				continue
			}
			for i, cell := range s.Data {
				cellAddr := s.Address + int32(i*s.CellWidth)
				for b := 0; b < s.CellWidth; b++ {
					a := cellAddr + int32(b)
					if a >= addr && a < addr+int32(n) {
						out[a-addr] = byte(cell >> (8 * uint(b)))
						found[a-addr] = true
					}
				}
			}
		}
	})
	return out
}

// Scenario 1 — single-byte immediate.
func TestScenarioSingleByteImmediate(t *testing.T) {
	src := ".TRANSPUTER\nORG 0x1000\nLDC 0x0A\nEND\n"
	m, gen := assemble(t, src)
	requireNoErrors(t, m, gen)
	got := bytesAt(m, 0x1000, 1)
	if got[0] != 0x4A {
		t.Fatalf("expected [0x4A], got %#v", got)
	}
	if m.Dollar() != 0x1001 {
		t.Fatalf("expected $ == 0x1001, got %#x", m.Dollar())
	}
}

// Scenario 2 — multi-byte immediate needing prefixes.
func TestScenarioMultiByteImmediate(t *testing.T) {
	src := "ORG 0\nLDC 0x1234abcd\nEND\n"
	m, gen := assemble(t, src)
	requireNoErrors(t, m, gen)
	got := bytesAt(m, 0, 8)
	want := []byte{0x21, 0x22, 0x23, 0x24, 0x2A, 0x2B, 0x2C, 0x4D}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: expected %#x, got %#x (full: %#v)", i, want[i], got[i], got)
		}
	}
}

// Scenario 3 — forward reference with convergence.
func TestScenarioForwardReferenceConvergence(t *testing.T) {
	src := ".TRANSPUTER\n" +
		"ORG 0\n" +
		"LDC L1\n" +
		"LDPI\n" +
		"DB 255 DUP 10\n" +
		"L1: DB 'hello world'\n" +
		"END\n"
	m, gen := assemble(t, src)
	requireNoErrors(t, m, gen)

	n := ident.NewNormalizer(false)
	sym, ok := m.GetSymbol(n.NewName("L1"))
	if !ok {
		t.Fatalf("L1 not defined")
	}
	if sym.Value != 0x104 {
		t.Fatalf("expected L1 == 0x104, got %#x", sym.Value)
	}

	got := bytesAt(m, 0, 3)
	want := []byte{0x21, 0x20, 0x44}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("LDC L1 byte %d: expected %#x, got %#x", i, want[i], got[i])
		}
	}

	if m.Dollar() != 0x10F {
		t.Fatalf("expected $ == 0x10F, got %#x", m.Dollar())
	}

	hello := bytesAt(m, 0x104, 11)
	if string(hello) != "hello world" {
		t.Fatalf("expected \"hello world\" at L1, got %q", string(hello))
	}
}

// Scenario 4 — IF1/ELSE/ENDIF two-pass with forward ref.
func TestScenarioIf1ElseEndifTwoPass(t *testing.T) {
	src := "ORG 42\n" +
		"FNORD: DB 77\n" +
		"IF1\n" +
		"  DB 1,2,3\n" +
		"  DW 4,5\n" +
		"  DD 0\n" +
		"ELSE\n" +
		"  DB 6,7,8\n" +
		"  DW 9,10\n" +
		"  DD FNORD\n" +
		"ENDIF\n" +
		"DB 11\n" +
		"END\n"
	m, gen := assemble(t, src)
	requireNoErrors(t, m, gen)

	if got := bytesAt(m, 42, 1); got[0] != 77 {
		t.Fatalf("expected FNORD storage 77, got %#v", got)
	}

	got := bytesAt(m, 43, 3)
	want := []byte{6, 7, 8}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pass-2 DB byte %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	dd := bytesAt(m, 50, 4)
	ddValue := int32(dd[0]) | int32(dd[1])<<8 | int32(dd[2])<<16 | int32(dd[3])<<24
	if ddValue != 42 {
		t.Fatalf("expected DD FNORD == 42, got %d", ddValue)
	}

	if trailing := bytesAt(m, 54, 1); trailing[0] != 11 {
		t.Fatalf("expected trailing DB 11, got %#v", trailing)
	}

	regions := gen.Regions()
	if len(regions) != 1 {
		t.Fatalf("expected exactly one captured region, got %d", len(regions))
	}
	if regions[0].Pass1BlockSize() != 11 {
		t.Fatalf("expected pass-1 block size 11 (DB 1,2,3 + DW 4,5 + DD 0), got %d", regions[0].Pass1BlockSize())
	}
}

// Scenario 5 — CALL offset convergence to a one-byte encoding.
func TestScenarioCallOffsetConvergesToOneByte(t *testing.T) {
	src := ".TRANSPUTER\n" +
		"ORG 0x80000070\n" +
		"DB STOP - START\n" +
		"ORG 0x80000070\n" +
		"START: AJW 0x10\n" +
		"       CALL TARGET\n" +
		"       TERMINATE\n" +
		"       DB 0x0D DUP(0x00)\n" +
		"TARGET: LDC 0x80000000\n" +
		"        RET\n" +
		"STOP:\n" +
		"END\n"
	m, gen := assemble(t, src)
	requireNoErrors(t, m, gen)

	n := ident.NewNormalizer(false)
	start, ok := m.GetSymbol(n.NewName("START"))
	if !ok {
		t.Fatalf("START not defined")
	}
	// AJW 0x10 needs a prefix byte (0x21 0xB0), so CALL starts at START+2.
	callByte := bytesAt(m, start.Value+2, 1)
	if callByte[0] != 0x9F {
		t.Fatalf("expected call TARGET to encode as single byte 0x9F, got %#v", callByte)
	}
}

// Scenario 6 — kind-conflict error.
func TestScenarioKindConflictError(t *testing.T) {
	src := "FOO EQU 5\nFOO: DB 0\nEND\n"
	m, gen := assemble(t, src)
	_ = gen
	errs := m.Errors()
	if len(errs) == 0 {
		t.Fatalf("expected a kind-conflict error, got none")
	}
	found := false
	for _, e := range errs {
		if e.Line == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected kind-conflict error on line 2, got %v", errs)
	}
}

func TestMissingEndIsAnError(t *testing.T) {
	src := "ORG 0\nDB 1\n"
	m, gen := assemble(t, src)
	_ = m
	found := false
	for _, e := range gen.CodeGenerationErrors() {
		if e.Message == "missing END statement" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a missing-END error, got %v", gen.CodeGenerationErrors())
	}
}

func TestUnresolvedForwardReferenceIsReported(t *testing.T) {
	src := "ORG 0\nDD NEVER_DEFINED\nEND\n"
	m, _ := assemble(t, src)
	errs := m.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected exactly one unresolved-reference error, got %v", errs)
	}
}

func TestElseWithoutIf1IsAnError(t *testing.T) {
	src := "ORG 0\nELSE\nEND\n"
	_, gen := assemble(t, src)
	found := false
	for _, e := range gen.CodeGenerationErrors() {
		if e.Line == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an ELSE-without-IF1 error on line 2, got %v", gen.CodeGenerationErrors())
	}
}
