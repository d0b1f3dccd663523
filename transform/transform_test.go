package transform

import (
	"testing"

	"github.com/devzendo/transputer-asm/expr"
	"github.com/devzendo/transputer-asm/ident"
	"github.com/devzendo/transputer-asm/model"
	"github.com/devzendo/transputer-asm/parser"
)

func newModel(dollar int32) *model.AssemblyModel {
	n := ident.NewNormalizer(false)
	m := model.NewAssemblyModel(n)
	m.SetDollarSilently(dollar)
	return m
}

func TestOffsetTransformerWrapsBranchOperand(t *testing.T) {
	m := newModel(0x100)
	stmt := parser.Direct{Mnemonic: "J", OpNibble: 0x00, Expr: expr.SymbolRef{Name: "TARGET"}}

	out, err := OffsetTransformer(stmt, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := out.(parser.Direct)
	if !ok {
		t.Fatalf("expected parser.Direct, got %T", out)
	}
	u, ok := d.Expr.(expr.Unary)
	if !ok || u.Op != expr.OffsetFrom || u.Anchor != 0x100 {
		t.Fatalf("expected OffsetFrom(0x100), got %+v", d.Expr)
	}
}

func TestOffsetTransformerLeavesNonBranchDirectAlone(t *testing.T) {
	m := newModel(0x100)
	stmt := parser.Direct{Mnemonic: "LDC", OpNibble: 0x40, Expr: expr.IntLiteral{Value: 5}}

	out, err := OffsetTransformer(stmt, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := out.(parser.Direct)
	if lit, ok := d.Expr.(expr.IntLiteral); !ok || lit.Value != 5 {
		t.Fatalf("expected unchanged IntLiteral, got %+v", d.Expr)
	}
}

func TestOffsetTransformerDoesNotDoubleWrapAlreadyAnchored(t *testing.T) {
	m := newModel(0x200)
	already := expr.Unary{Op: expr.OffsetFrom, Operand: expr.SymbolRef{Name: "X"}, Anchor: 0x50}
	stmt := parser.Direct{Mnemonic: "CALL", OpNibble: 0x90, Expr: already}

	out, err := OffsetTransformer(stmt, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := out.(parser.Direct)
	u := d.Expr.(expr.Unary)
	if u.Anchor != 0x50 {
		t.Fatalf("expected original anchor preserved, got %+v", u)
	}
}

func TestOffsetTransformerSpreadsAnchorAcrossData(t *testing.T) {
	m := newModel(0x10)
	stmt := parser.Data{Width: 2, Exprs: []expr.Expression{
		expr.Unary{Op: expr.Offset, Operand: expr.SymbolRef{Name: "A"}},
		expr.Unary{Op: expr.Offset, Operand: expr.SymbolRef{Name: "B"}},
	}}

	out, err := OffsetTransformer(stmt, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := out.(parser.Data)
	first := d.Exprs[0].(expr.Unary)
	second := d.Exprs[1].(expr.Unary)
	if first.Anchor != 0x10 {
		t.Fatalf("expected first anchor 0x10, got %#x", first.Anchor)
	}
	if second.Anchor != 0x12 {
		t.Fatalf("expected second anchor 0x12 (width 2), got %#x", second.Anchor)
	}
}

func TestOffsetTransformerLowersDefinedDupCount(t *testing.T) {
	m := newModel(0x0)
	stmt := parser.DataDup{
		Width: 1,
		Count: expr.IntLiteral{Value: 3},
		Elem:  expr.Unary{Op: expr.Offset, Operand: expr.SymbolRef{Name: "X"}},
	}

	out, err := OffsetTransformer(stmt, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := out.(parser.Data)
	if !ok {
		t.Fatalf("expected lowering to parser.Data, got %T", out)
	}
	if len(d.Exprs) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(d.Exprs))
	}
	last := d.Exprs[2].(expr.Unary)
	if last.Anchor != 2 {
		t.Fatalf("expected third element anchored at 2, got %#x", last.Anchor)
	}
}

func TestOffsetTransformerLeavesDupWithoutOffsetAlone(t *testing.T) {
	m := newModel(0x0)
	stmt := parser.DataDup{Width: 1, Count: expr.IntLiteral{Value: 4}, Elem: expr.IntLiteral{Value: 0}}

	out, err := OffsetTransformer(stmt, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out.(parser.DataDup); !ok {
		t.Fatalf("expected DataDup to pass through unchanged, got %T", out)
	}
}

func TestChainAppliesTransformersInOrder(t *testing.T) {
	m := newModel(0x40)
	chain := NewChain(OffsetTransformer)
	stmt := parser.Equ{Name: "HERE", Expr: expr.Unary{Op: expr.Offset, Operand: expr.SymbolRef{Name: "X"}}}

	out, err := chain.Apply(stmt, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := out.(parser.Equ)
	u := e.Expr.(expr.Unary)
	if u.Op != expr.OffsetFrom || u.Anchor != 0x40 {
		t.Fatalf("expected EQU's OFFSET resolved against $, got %+v", u)
	}
}
