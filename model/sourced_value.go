package model

import (
	"github.com/devzendo/transputer-asm/expr"
	"github.com/devzendo/transputer-asm/ident"
)

// SourcedValue is a unit of output the model records against the
// source line that produced it: either a block of storage or a symbol
// assignment.
type SourcedValue interface {
	SourceLine() int
	LineIdx() int
}

// Storage is a contiguous, uniformly-sized block of emitted cells:
// the result of a DB/DW/DD directive or a fully- or partially-encoded
// instruction. Data and Exprs are parallel; a still-undefined element
// holds 0 in Data until a later fixup rewrites it in place.
type Storage struct {
	Address   int32
	CellWidth int
	Data      []int32
	Exprs     []expr.Expression
	Line      int
	LineIndex int
}

func (s *Storage) SourceLine() int { return s.Line }
func (s *Storage) LineIdx() int    { return s.LineIndex }

// AssignmentValue records a symbol definition (EQU, `=`, label, or a
// non-silent `$` assignment) against the line that produced it.
type AssignmentValue struct {
	Name      ident.Name
	Value     int32
	Kind      SymbolKind
	Line      int
	LineIndex int
}

func (a *AssignmentValue) SourceLine() int { return a.Line }
func (a *AssignmentValue) LineIdx() int    { return a.LineIndex }

// fitsCellWidth reports whether v's unsigned 32-bit view fits within
// cellWidth bytes. A 4-byte cell always holds any int32.
func fitsCellWidth(v int32, cellWidth int) bool {
	if cellWidth >= 4 {
		return true
	}
	limit := uint32(1) << uint(cellWidth*8)
	return uint32(v) < limit
}

// expandCharLiterals flattens CharLiteral nodes into one IntLiteral
// per 8-bit character, in source order; every other node passes
// through unchanged as a single element. This is the one place
// character literals are legal — everywhere else expr.Evaluate
// rejects them.
func expandCharLiterals(exprs []expr.Expression) []expr.Expression {
	out := make([]expr.Expression, 0, len(exprs))
	for _, e := range exprs {
		if ch, ok := e.(expr.CharLiteral); ok {
			for _, r := range []byte(ch.Chars) {
				out = append(out, expr.IntLiteral{Value: int32(r)})
			}
			continue
		}
		out = append(out, e)
	}
	return out
}
