package listing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/devzendo/transputer-asm/expr"
	"github.com/devzendo/transputer-asm/model"
	"github.com/devzendo/transputer-asm/parser"
)

// ReferenceType indicates how a symbol is used at one site.
type ReferenceType int

const (
	RefDefinition ReferenceType = iota
	RefBranch
	RefCall
	RefData
)

func (r ReferenceType) String() string {
	switch r {
	case RefDefinition:
		return "definition"
	case RefBranch:
		return "branch"
	case RefCall:
		return "call"
	case RefData:
		return "data"
	default:
		return "unknown"
	}
}

// Reference is a single use or definition site for a Symbol.
type Reference struct {
	Type   ReferenceType
	Line   int
	Source string
}

// Symbol is a cross-referenced label or constant and every site that
// defines or mentions it. Variables (the assembler's `$`-like
// reassignable names) are excluded — they churn too often during
// convergence to read as a meaningful reference trail.
type Symbol struct {
	Name       string
	Kind       model.SymbolKind
	Value      int32
	Definition *Reference
	References []*Reference
}

// CrossReference walks lines' statements for symbol references and
// m's symbol table for definitions, and renders a sorted, grouped
// report: one entry per label/constant naming where it was defined
// and every line that mentions it.
func CrossReference(lines []parser.Line, m *model.AssemblyModel) string {
	symbols := make(map[string]*Symbol)
	for _, sym := range m.SymbolsForListing() {
		symbols[sym.Name.Key()] = &Symbol{
			Name:  sym.Name.String(),
			Kind:  sym.Kind,
			Value: sym.Value,
			Definition: &Reference{
				Type: RefDefinition,
				Line: sym.DefinedOnLine,
			},
		}
	}

	norm := m.Normalizer()
	for _, line := range lines {
		if line.Stmt == nil {
			continue
		}
		refType := classify(line.Stmt)
		walkStatementSymbols(line.Stmt, func(name string) {
			key := norm.NewName(name).Key()
			sym, ok := symbols[key]
			if !ok {
				return
			}
			sym.References = append(sym.References, &Reference{
				Type:   refType,
				Line:   line.LineNumber,
				Source: strings.TrimSpace(line.RawText),
			})
		})
	}

	return render(symbols)
}

func classify(stmt parser.Statement) ReferenceType {
	d, ok := stmt.(parser.Direct)
	if !ok {
		return RefData
	}
	switch d.Mnemonic {
	case "CALL":
		return RefCall
	case "J", "CJ":
		return RefBranch
	default:
		return RefData
	}
}

func walkStatementSymbols(stmt parser.Statement, visit func(name string)) {
	switch s := stmt.(type) {
	case parser.Direct:
		walkExprSymbols(s.Expr, visit)
	case parser.Data:
		for _, e := range s.Exprs {
			walkExprSymbols(e, visit)
		}
	case parser.DataDup:
		walkExprSymbols(s.Count, visit)
		walkExprSymbols(s.Elem, visit)
	case parser.Equ:
		walkExprSymbols(s.Expr, visit)
	case parser.Assign:
		walkExprSymbols(s.Expr, visit)
	case parser.Org:
		walkExprSymbols(s.Expr, visit)
	case parser.Align:
		walkExprSymbols(s.N, visit)
	}
}

func walkExprSymbols(e expr.Expression, visit func(name string)) {
	switch n := e.(type) {
	case expr.SymbolRef:
		if n.Name != expr.Dollar {
			visit(n.Name)
		}
	case expr.Unary:
		walkExprSymbols(n.Operand, visit)
	case expr.Binary:
		walkExprSymbols(n.Left, visit)
		walkExprSymbols(n.Right, visit)
	}
}

func render(symbols map[string]*Symbol) string {
	sorted := make([]*Symbol, 0, len(symbols))
	for _, sym := range symbols {
		sorted = append(sorted, sym)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var sb strings.Builder
	sb.WriteString("Symbol Cross-Reference\n")
	sb.WriteString("=======================\n\n")

	definedCount, unusedCount := 0, 0
	for _, sym := range sorted {
		fmt.Fprintf(&sb, "%-24s [%s=0x%08X]\n", sym.Name, sym.Kind, uint32(sym.Value))

		if sym.Definition != nil && sym.Definition.Line != 0 {
			definedCount++
			fmt.Fprintf(&sb, "  Defined:     line %d\n", sym.Definition.Line)
		} else {
			sb.WriteString("  Defined:     (undefined)\n")
		}

		if len(sym.References) == 0 {
			unusedCount++
			sb.WriteString("  Referenced:  (never)\n")
		} else {
			fmt.Fprintf(&sb, "  Referenced:  %d time(s)\n", len(sym.References))
			byType := make(map[ReferenceType][]int)
			for _, ref := range sym.References {
				byType[ref.Type] = append(byType[ref.Type], ref.Line)
			}
			for _, t := range []ReferenceType{RefCall, RefBranch, RefData} {
				lines := byType[t]
				if len(lines) == 0 {
					continue
				}
				strs := make([]string, len(lines))
				for i, l := range lines {
					strs[i] = fmt.Sprintf("%d", l)
				}
				fmt.Fprintf(&sb, "    %-10s: line(s) %s\n", t, strings.Join(strs, ", "))
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Summary\n")
	sb.WriteString("=======\n")
	fmt.Fprintf(&sb, "Total symbols: %d\n", len(sorted))
	fmt.Fprintf(&sb, "Defined:       %d\n", definedCount)
	fmt.Fprintf(&sb, "Unused:        %d\n", unusedCount)

	return sb.String()
}
