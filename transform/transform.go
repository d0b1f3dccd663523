// Package transform applies pure rewrites to a parsed statement before
// the code generator sees it: resolving the Offset placeholder into a
// concrete OffsetFrom anchor, and implicitly wrapping bare branch
// targets in the same offset form.
package transform

import (
	"fmt"

	"github.com/devzendo/transputer-asm/expr"
	"github.com/devzendo/transputer-asm/parser"
)

// Context supplies a transformer with the address and symbol state it
// needs to resolve anchors. model.AssemblyModel implements this.
type Context interface {
	Dollar() int32
	Evaluate(e expr.Expression) (int32, error)
}

// Transformer rewrites one statement. It must be pure: given the same
// stmt and ctx snapshot it always returns the same result. A non-nil
// error is a statement-transformation failure, which the code
// generator converts into a line-numbered error.
type Transformer func(stmt parser.Statement, ctx Context) (parser.Statement, error)

// Chain applies an ordered list of Transformers in sequence; each
// sees the previous transformer's output.
type Chain struct {
	transformers []Transformer
}

// NewChain builds a chain from ts, applied in the given order.
func NewChain(ts ...Transformer) *Chain {
	return &Chain{transformers: ts}
}

// Apply runs every transformer in the chain over stmt, in order,
// stopping at the first error.
func (c *Chain) Apply(stmt parser.Statement, ctx Context) (parser.Statement, error) {
	var err error
	for _, t := range c.transformers {
		stmt, err = t(stmt, ctx)
		if err != nil {
			return stmt, err
		}
	}
	return stmt, nil
}

// DefaultChain is the pre-registered chain every code generator uses:
// just the OffsetTransformer.
func DefaultChain() *Chain {
	return NewChain(OffsetTransformer)
}

// branchMnemonics implicitly wrap a bare operand in OffsetFrom($):
// the Transputer direct instructions whose operand is a program-
// counter-relative displacement rather than an absolute value.
var branchMnemonics = map[string]bool{
	"J":    true,
	"CJ":   true,
	"CALL": true,
}

// OffsetTransformer rewrites raw expr.Offset placeholders into
// expr.OffsetFrom($) using the statement's current emission address,
// and implicitly wraps J/CJ/CALL operands in the same form. For
// DB/DW/DD it spreads the anchor across elements so the i-th
// element's anchor is $+(i*cellWidth); DUP forms whose element
// contains an Offset placeholder are flattened into a literal element
// list so each repetition gets its own anchor, which requires the DUP
// count to be presently defined.
func OffsetTransformer(stmt parser.Statement, ctx Context) (parser.Statement, error) {
	dollar := ctx.Dollar()

	switch s := stmt.(type) {
	case parser.Direct:
		e := s.Expr
		if branchMnemonics[s.Mnemonic] && !isAlreadyAnchored(e) {
			e = expr.MakeOffsetFrom(e, dollar)
		} else {
			e = rewriteOffsets(e, dollar)
		}
		return parser.Direct{Mnemonic: s.Mnemonic, OpNibble: s.OpNibble, Expr: e}, nil

	case parser.Data:
		out := make([]expr.Expression, len(s.Exprs))
		for i, e := range s.Exprs {
			anchor := dollar + int32(i*s.Width)
			out[i] = rewriteOffsets(e, anchor)
		}
		return parser.Data{Width: s.Width, Exprs: out}, nil

	case parser.DataDup:
		if !containsOffset(s.Elem) {
			return s, nil
		}
		count, err := ctx.Evaluate(s.Count)
		if err != nil {
			return s, fmt.Errorf("DUP count must be presently defined: %w", err)
		}
		exprs := make([]expr.Expression, count)
		for i := range exprs {
			anchor := dollar + int32(i*s.Width)
			exprs[i] = rewriteOffsets(s.Elem, anchor)
		}
		return parser.Data{Width: s.Width, Exprs: exprs}, nil

	case parser.Equ:
		return parser.Equ{Name: s.Name, Expr: rewriteOffsets(s.Expr, dollar)}, nil

	case parser.Assign:
		return parser.Assign{Name: s.Name, Expr: rewriteOffsets(s.Expr, dollar)}, nil

	case parser.Org:
		return parser.Org{Expr: rewriteOffsets(s.Expr, dollar)}, nil

	case parser.Align:
		return parser.Align{N: rewriteOffsets(s.N, dollar)}, nil

	default:
		return stmt, nil
	}
}

// isAlreadyAnchored reports whether e is already an OffsetFrom (the
// programmer wrote an explicit OFFSET expression); implicit wrapping
// only applies to a bare, unadorned operand.
func isAlreadyAnchored(e expr.Expression) bool {
	u, ok := e.(expr.Unary)
	return ok && (u.Op == expr.OffsetFrom || u.Op == expr.Offset)
}

// containsOffset reports whether e contains a raw Offset placeholder
// anywhere in its tree.
func containsOffset(e expr.Expression) bool {
	switch n := e.(type) {
	case expr.Unary:
		if n.Op == expr.Offset {
			return true
		}
		return containsOffset(n.Operand)
	case expr.Binary:
		return containsOffset(n.Left) || containsOffset(n.Right)
	default:
		return false
	}
}

// rewriteOffsets replaces every raw Offset placeholder in e with
// OffsetFrom(anchor), leaving everything else untouched.
func rewriteOffsets(e expr.Expression, anchor int32) expr.Expression {
	switch n := e.(type) {
	case expr.Unary:
		if n.Op == expr.Offset {
			return expr.Unary{Op: expr.OffsetFrom, Operand: rewriteOffsets(n.Operand, anchor), Anchor: anchor}
		}
		return expr.Unary{Op: n.Op, Operand: rewriteOffsets(n.Operand, anchor), Anchor: n.Anchor}
	case expr.Binary:
		return expr.Binary{Op: n.Op, Left: rewriteOffsets(n.Left, anchor), Right: rewriteOffsets(n.Right, anchor)}
	default:
		return e
	}
}
