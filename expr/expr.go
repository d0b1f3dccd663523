// Package expr defines the expression AST shared by the parser and the
// code generator, and the pure evaluator that resolves it against a
// symbol environment.
package expr

import "github.com/devzendo/transputer-asm/ident"

// Expression is the common interface for every node in the tree.
// Implementations are immutable once constructed.
type Expression interface {
	isExpression()
}

// IntLiteral is a bare integer constant.
type IntLiteral struct {
	Value int32
}

func (IntLiteral) isExpression() {}

// CharLiteral is a string of 8-bit characters (e.g. 'hello world').
// Evaluating a CharLiteral directly is always an error — character
// data must be expanded to per-character numerics by the storage
// allocator before expressions reach the evaluator.
type CharLiteral struct {
	Chars string
}

func (CharLiteral) isExpression() {}

// SymbolRef refers to a symbol by its raw (un-normalized) name.
type SymbolRef struct {
	Name string
}

func (SymbolRef) isExpression() {}

// UnaryOp identifies a unary operator.
type UnaryOp int

const (
	Negate UnaryOp = iota
	Not
	// Offset is a placeholder meaning "PC-relative from wherever this
	// expression ends up being evaluated." It must be rewritten to
	// OffsetFrom by the transformer chain before reaching the
	// evaluator; evaluating a raw Offset is a programmer error.
	Offset
	// OffsetFrom yields value - Anchor.
	OffsetFrom
)

// Unary applies a unary operator to Operand. Anchor is only meaningful
// when Op == OffsetFrom.
type Unary struct {
	Op      UnaryOp
	Operand Expression
	Anchor  int32
}

func (Unary) isExpression() {}

// BinaryOp identifies a binary operator.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Shl
	Shar
	And
	Or
	Xor
)

// Binary applies a binary operator to Left and Right.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (Binary) isExpression() {}

// Dollar is the well-known name of the current emission address
// symbol.
const Dollar = "$"

// MakeOffsetFrom wraps e as OffsetFrom(anchor).
func MakeOffsetFrom(e Expression, anchor int32) Expression {
	return Unary{Op: OffsetFrom, Operand: e, Anchor: anchor}
}

// SymbolName builds an ident.Name for a SymbolRef using n.
func SymbolName(ref SymbolRef, n *ident.Normalizer) ident.Name {
	return n.NewName(ref.Name)
}
