package model

import (
	"github.com/devzendo/transputer-asm/expr"
	"github.com/devzendo/transputer-asm/ident"
)

// storageFixupEntry tracks every Storage that has (or had) at least
// one element referencing a given undefined name, plus how many times
// that name has been successfully defined with a change-tracked kind.
type storageFixupEntry struct {
	storages        []*Storage
	resolutionCount int
}

// UnresolvableSymbol is an EQU/`=` assignment recorded while its
// right-hand expression still referenced at least one undefined name.
type UnresolvableSymbol struct {
	Line      int
	LineIndex int
	Kind      SymbolKind // Variable or Constant; never Label
	Name      ident.Name
	Expr      expr.Expression
}

// symbolFixupEntry tracks every UnresolvableSymbol waiting on a given
// undefined name, plus how many times that name has been defined.
type symbolFixupEntry struct {
	items           []*UnresolvableSymbol
	resolutionCount int
}
