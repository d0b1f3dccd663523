package model

import "github.com/devzendo/transputer-asm/ident"

// SymbolKind distinguishes the three ways a name can be bound in the
// symbol map.
type SymbolKind int

const (
	Variable SymbolKind = iota
	Constant
	Label
)

func (k SymbolKind) String() string {
	switch k {
	case Variable:
		return "variable"
	case Constant:
		return "constant"
	case Label:
		return "label"
	default:
		return "unknown"
	}
}

// Symbol is a single entry in the assembly model's symbol map.
type Symbol struct {
	Name          ident.Name
	Value         int32
	Kind          SymbolKind
	DefinedOnLine int
}
