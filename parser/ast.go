package parser

import "github.com/devzendo/transputer-asm/expr"

// Statement is the common interface for every directive and
// instruction form the parser can produce. Implementations are
// immutable; the transformer chain and code generator never mutate a
// Statement in place, they build a new one.
type Statement interface {
	isStatement()
}

// Title sets the listing's title text (TITLE directive).
type Title struct{ Text string }

func (Title) isStatement() {}

// Page sets the listing's page geometry (PAGE directive).
type Page struct{ Rows, Cols int }

func (Page) isStatement() {}

// Processor selects the target processor; both recognized names imply
// little-endian output.
type Processor struct{ Name string }

func (Processor) isStatement() {}

// Align advances `$` to the next multiple of N, silently (no storage
// is emitted for the gap).
type Align struct{ N expr.Expression }

func (Align) isStatement() {}

// Org sets `$` to the value of Expr.
type Org struct{ Expr expr.Expression }

func (Org) isStatement() {}

// End marks the end of the source; no statement may follow it in
// pass 1.
type End struct{}

func (End) isStatement() {}

// Equ is a constant assignment (`NAME EQU expr`).
type Equ struct {
	Name string
	Expr expr.Expression
}

func (Equ) isStatement() {}

// Assign is a variable assignment (`NAME = expr`).
type Assign struct {
	Name string
	Expr expr.Expression
}

func (Assign) isStatement() {}

// Data is a DB/DW/DD directive; Width is 1, 2 or 4.
type Data struct {
	Width int
	Exprs []expr.Expression
}

func (Data) isStatement() {}

// DataDup is a DB/DW/DD ... DUP(expr) directive not already lowered to
// a flat Data by the transformer (the transformer lowers only a DataDup
// whose element contains an Offset placeholder; every other DataDup
// reaches the code generator in this form).
type DataDup struct {
	Width int
	Count expr.Expression
	Elem  expr.Expression
}

func (DataDup) isStatement() {}

// If1 opens a two-pass conditional block.
type If1 struct{}

func (If1) isStatement() {}

// Else marks the boundary between the pass-1-only lines and the
// captured, pass-2-replayed lines of an IF1 block.
type Else struct{}

func (Else) isStatement() {}

// Endif closes the current IF1/ELSE block.
type Endif struct{}

func (Endif) isStatement() {}

// Direct is a variable-length direct instruction: OpNibble identifies
// the operation, Expr evaluates to its Oreg operand.
type Direct struct {
	Mnemonic string
	OpNibble byte
	Expr     expr.Expression
}

func (Direct) isStatement() {}

// Indirect is a fixed-size instruction from the OPR group: its bytes
// are wholly determined by the mnemonic, with no operand and no
// forward-reference concern.
type Indirect struct {
	Mnemonic string
	Bytes    []byte
}

func (Indirect) isStatement() {}

// Line pairs a source location with optional label and statement, as
// handed to the code generator by the front end. LineIndex is assigned
// by the parser/macro-expander and is stable across macro expansion.
type Line struct {
	File       string
	LineNumber int
	LineIndex  int
	RawText    string
	Label      string
	Stmt       Statement
}
