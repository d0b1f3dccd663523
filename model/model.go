// Package model implements the assembler's mutable core: the symbol
// map, the ordered per-line log of emitted storages and assignments,
// and the two forward-reference fixup tables that let a symbol be
// used before it is defined.
package model

import (
	"github.com/devzendo/transputer-asm/expr"
	"github.com/devzendo/transputer-asm/ident"
)

// SourceLine identifies where a line of input came from.
type SourceLine struct {
	File       string
	LineNumber int
}

// IndexedLine is one entry in the model's append-only line log. Its
// LineIndex is stable across macro expansion even though LineNumber
// may repeat (a macro body expanded twice reuses the macro's source
// line numbers).
type IndexedLine struct {
	Source    SourceLine
	LineIndex int
	Label     string
	RawText   string
}

// AssemblyModel is the single mutable store shared by the code
// generator's pass 1, its convergence loop, and pass 2. It implements
// expr.Environment so expressions can be evaluated directly against
// it without expr importing this package.
type AssemblyModel struct {
	norm       *ident.Normalizer
	dollarName ident.Name

	symbols    map[ident.Name]*Symbol
	converging bool

	lines          []IndexedLine
	sourcedByLine  map[int][]SourcedValue

	storageRefs map[ident.Name]*storageFixupEntry
	symbolRefs  map[ident.Name]*symbolFixupEntry

	errs []*Error

	title               string
	pageRows, pageCols  int
	processor           string
	littleEndian        bool
	endSeen             bool
}

// NewAssemblyModel constructs an empty model using norm for all name
// construction and comparison. `$` is created immediately as a
// Variable holding 0.
func NewAssemblyModel(norm *ident.Normalizer) *AssemblyModel {
	dollar := norm.NewName(expr.Dollar)
	m := &AssemblyModel{
		norm:          norm,
		dollarName:    dollar,
		symbols:       make(map[ident.Name]*Symbol),
		sourcedByLine: make(map[int][]SourcedValue),
		storageRefs:   make(map[ident.Name]*storageFixupEntry),
		symbolRefs:    make(map[ident.Name]*symbolFixupEntry),
		littleEndian:  true,
	}
	m.symbols[dollar] = &Symbol{Name: dollar, Value: 0, Kind: Variable}
	return m
}

// Normalizer implements expr.Environment.
func (m *AssemblyModel) Normalizer() *ident.Normalizer { return m.norm }

// Lookup implements expr.Environment.
func (m *AssemblyModel) Lookup(name ident.Name) (int32, bool) {
	sym, ok := m.symbols[name]
	if !ok {
		return 0, false
	}
	return sym.Value, true
}

// GetSymbol returns the full symbol entry for name, if any.
func (m *AssemblyModel) GetSymbol(name ident.Name) (*Symbol, bool) {
	sym, ok := m.symbols[name]
	return sym, ok
}

// Symbols returns every symbol in the map, including `$`.
func (m *AssemblyModel) Symbols() map[ident.Name]*Symbol {
	return m.symbols
}

// SymbolsForListing returns labels and constants only, in no
// particular order (callers sort) — variables (including `$`) are
// never shown in a symbol-table listing.
func (m *AssemblyModel) SymbolsForListing() []*Symbol {
	out := make([]*Symbol, 0, len(m.symbols))
	for _, sym := range m.symbols {
		if sym.Kind == Variable {
			continue
		}
		out = append(out, sym)
	}
	return out
}

// SetConverging toggles convergence mode: while on, constants and
// labels may be reassigned; while off, only variables may be.
func (m *AssemblyModel) SetConverging(on bool) { m.converging = on }

func (m *AssemblyModel) IsConverging() bool { return m.converging }

// addError appends a new Error built from line/format/args to the
// model's accumulator; it never aborts the caller.
func (m *AssemblyModel) addError(line int, format string, args ...interface{}) {
	m.errs = append(m.errs, newError(line, format, args...))
}

// Errors returns every assembly model exception recorded so far, in
// the order they occurred.
func (m *AssemblyModel) Errors() []*Error {
	out := make([]*Error, len(m.errs))
	copy(out, m.errs)
	return out
}

// --- `$` -------------------------------------------------------------

func (m *AssemblyModel) Dollar() int32 {
	return m.symbols[m.dollarName].Value
}

// Evaluate resolves e against this model, satisfying transform.Context
// so the transformer chain can fold OFFSET/DUP expressions that are
// already presently defined.
func (m *AssemblyModel) Evaluate(e expr.Expression) (int32, error) {
	return expr.Evaluate(e, m)
}

// SetDollar assigns `$` through the normal path: it records an
// AssignmentValue and runs fixup, exactly like any other variable
// assignment.
func (m *AssemblyModel) SetDollar(value int32, line, lineIndex int) {
	m.setSymbol(m.dollarName, value, Variable, line, lineIndex, true)
}

// SetDollarSilently assigns `$` without recording an AssignmentValue
// and without running fixup. This is how the code generator advances
// the emission address after ordinary storage allocation and during
// pass-2 region replay — treating every such advance as a fixup
// trigger would make convergence re-chase itself every line.
func (m *AssemblyModel) SetDollarSilently(value int32) {
	m.symbols[m.dollarName].Value = value
}

// IncrementDollar advances `$` by delta, silently.
func (m *AssemblyModel) IncrementDollar(delta int32) {
	m.SetDollarSilently(m.Dollar() + delta)
}

// --- symbol assignment -------------------------------------------------

// SetVariable, SetConstant and SetLabel are the three entry points the
// code generator uses to bind a name. Each records an AssignmentValue
// against lineIndex and runs the fixup algorithm; a kind conflict is
// appended to the model's error accumulator rather than returned,
// consistent with pass 1's "never abort on the first error" policy.
func (m *AssemblyModel) SetVariable(name ident.Name, value int32, line, lineIndex int) {
	m.setSymbol(name, value, Variable, line, lineIndex, true)
}

func (m *AssemblyModel) SetConstant(name ident.Name, value int32, line, lineIndex int) {
	m.setSymbol(name, value, Constant, line, lineIndex, true)
}

func (m *AssemblyModel) SetLabel(name ident.Name, value int32, line, lineIndex int) {
	m.setSymbol(name, value, Label, line, lineIndex, true)
}

// setSymbol is the single entry point backing every kind of symbol
// assignment, including the ones fixup triggers transitively when a
// name an UnresolvableSymbol waited on finally resolves.
func (m *AssemblyModel) setSymbol(name ident.Name, value int32, kind SymbolKind, line, lineIndex int, recordAssignment bool) {
	existing, ok := m.symbols[name]
	if ok {
		if existing.Kind != kind {
			m.errs = append(m.errs, kindConflictError(line, kind, existing.Kind, name, existing.DefinedOnLine))
			return
		}
		if kind != Variable && !m.converging {
			m.errs = append(m.errs, kindConflictError(line, kind, existing.Kind, name, existing.DefinedOnLine))
			return
		}
		existing.Value = value
		existing.DefinedOnLine = line
	} else {
		m.symbols[name] = &Symbol{Name: name, Value: value, Kind: kind, DefinedOnLine: line}
	}

	if recordAssignment {
		m.appendSourcedValue(lineIndex, &AssignmentValue{Name: name, Value: value, Kind: kind, Line: line, LineIndex: lineIndex})
	}
	m.runFixup(name, kind)
}

// --- forward references -------------------------------------------------

// RecordStorageForwardReference registers s as depending on name: the
// next time name is (re)defined, s's expressions are re-evaluated in
// place.
func (m *AssemblyModel) RecordStorageForwardReference(name ident.Name, s *Storage) {
	entry, ok := m.storageRefs[name]
	if !ok {
		entry = &storageFixupEntry{}
		m.storageRefs[name] = entry
	}
	entry.storages = append(entry.storages, s)
}

// RecordSymbolForwardReference registers that the assignment of name
// (of kind Variable or Constant, from the expression e on line) is
// still pending because e currently references at least one undefined
// name in undefineds. It is recorded once per undefined name, so
// resolving any one of them triggers a re-attempt.
func (m *AssemblyModel) RecordSymbolForwardReference(undefineds map[ident.Name]struct{}, name ident.Name, e expr.Expression, kind SymbolKind, line, lineIndex int) {
	for undef := range undefineds {
		entry, ok := m.symbolRefs[undef]
		if !ok {
			entry = &symbolFixupEntry{}
			m.symbolRefs[undef] = entry
		}
		entry.items = append(entry.items, &UnresolvableSymbol{
			Line: line, LineIndex: lineIndex, Kind: kind, Name: name, Expr: e,
		})
	}
}

// runFixup re-evaluates everything waiting on name now that it has
// (re)acquired a value of kind kind. It always runs both tables: a
// name can simultaneously be the target of storage forward references
// (e.g. `DD L1`) and symbol forward references (e.g. `X EQU L1+1`).
func (m *AssemblyModel) runFixup(name ident.Name, kind SymbolKind) {
	m.fixupStorages(name, kind)
	m.fixupSymbols(name, kind)
}

func (m *AssemblyModel) fixupStorages(name ident.Name, kind SymbolKind) {
	entry, ok := m.storageRefs[name]
	if !ok {
		return
	}
	for _, s := range entry.storages {
		for i, e := range s.Exprs {
			v, err := expr.Evaluate(e, m)
			if err != nil {
				continue
			}
			s.Data[i] = v
			if !fitsCellWidth(v, s.CellWidth) {
				m.errs = append(m.errs, dataOverflowError(s.Line, v, s.CellWidth))
			}
		}
	}
	if kind == Variable {
		delete(m.storageRefs, name)
	} else {
		entry.resolutionCount++
	}
}

func (m *AssemblyModel) fixupSymbols(name ident.Name, kind SymbolKind) {
	entry, ok := m.symbolRefs[name]
	if !ok {
		return
	}
	entry.resolutionCount++

	remaining := entry.items[:0]
	for _, u := range entry.items {
		v, err := expr.Evaluate(u.Expr, m)
		if err != nil {
			remaining = append(remaining, u)
			continue
		}
		m.setSymbol(u.Name, v, u.Kind, u.Line, u.LineIndex, true)
		if u.Kind == Constant {
			// Change-tracked: keep re-evaluating on future convergence
			// iterations in case name changes again.
			remaining = append(remaining, u)
		}
		// Variable kind: dropped, no change tracking.
	}
	entry.items = remaining
}

// CheckUnresolvedForwardReferences appends a single combined error to
// the model's accumulator if any entry in either forward-reference
// table still has a resolution count of zero — meaning the name it
// waits on was never defined at all during pass 1.
func (m *AssemblyModel) CheckUnresolvedForwardReferences() {
	linesByName := make(map[ident.Name]map[int]struct{})
	for name, entry := range m.storageRefs {
		if entry.resolutionCount > 0 {
			continue
		}
		set := linesByName[name]
		if set == nil {
			set = make(map[int]struct{})
			linesByName[name] = set
		}
		for _, s := range entry.storages {
			set[s.Line] = struct{}{}
		}
	}
	for name, entry := range m.symbolRefs {
		if entry.resolutionCount > 0 {
			continue
		}
		set := linesByName[name]
		if set == nil {
			set = make(map[int]struct{})
			linesByName[name] = set
		}
		for _, u := range entry.items {
			set[u.Line] = struct{}{}
		}
	}
	if len(linesByName) == 0 {
		return
	}
	m.errs = append(m.errs, unresolvedReferenceError(linesByName))
}

// --- storage allocation -------------------------------------------------

// AllocateStorageForLine expands embedded character literals, creates
// a Storage at the current `$`, evaluates each element, registers
// storage forward references for any that are still undefined, checks
// cell-width bounds on the ones that did evaluate, and advances `$` by
// cellWidth * len(data).
func (m *AssemblyModel) AllocateStorageForLine(line, lineIndex, cellWidth int, exprs []expr.Expression) *Storage {
	expanded := expandCharLiterals(exprs)
	s := &Storage{
		Address:   m.Dollar(),
		CellWidth: cellWidth,
		Data:      make([]int32, len(expanded)),
		Exprs:     expanded,
		Line:      line,
		LineIndex: lineIndex,
	}
	for i, e := range expanded {
		v, err := expr.Evaluate(e, m)
		if err != nil {
			if undef, ok := err.(*expr.UndefinedError); ok {
				for name := range undef.Names {
					m.RecordStorageForwardReference(name, s)
				}
				continue
			}
			m.addError(line, "%s", err.Error())
			continue
		}
		s.Data[i] = v
		if !fitsCellWidth(v, cellWidth) {
			m.addError(line, "value %d does not fit in a %d-byte cell", v, cellWidth)
		}
	}
	m.appendSourcedValue(lineIndex, s)
	m.IncrementDollar(int32(cellWidth * len(expanded)))
	return s
}

// AllocateInstructionStorageForLine records an already-encoded byte
// sequence (an indirect instruction, or a direct instruction whose
// operand was fully defined) as a byte-wide Storage and advances `$`.
func (m *AssemblyModel) AllocateInstructionStorageForLine(line, lineIndex int, bytes []byte) *Storage {
	data := make([]int32, len(bytes))
	for i, b := range bytes {
		data[i] = int32(b)
	}
	s := &Storage{
		Address:   m.Dollar(),
		CellWidth: 1,
		Data:      data,
		Exprs:     nil,
		Line:      line,
		LineIndex: lineIndex,
	}
	m.appendSourcedValue(lineIndex, s)
	m.IncrementDollar(int32(len(bytes)))
	return s
}

// ClearSourcedValuesForLineIndex discards every sourced value recorded
// against lineIndex. The convergence loop calls this before re-walking
// an interval so stale emissions from the previous iteration don't
// linger alongside the new ones.
func (m *AssemblyModel) ClearSourcedValuesForLineIndex(lineIndex int) {
	delete(m.sourcedByLine, lineIndex)
}

func (m *AssemblyModel) appendSourcedValue(lineIndex int, v SourcedValue) {
	m.sourcedByLine[lineIndex] = append(m.sourcedByLine[lineIndex], v)
}

// --- line log -------------------------------------------------------

// LogLine appends l to the ordered, append-only line log.
func (m *AssemblyModel) LogLine(l IndexedLine) {
	m.lines = append(m.lines, l)
}

// Lines returns the full ordered line log.
func (m *AssemblyModel) Lines() []IndexedLine {
	return m.lines
}

// ForeachLineSourcedValues visits every logged line in order, passing
// only the sourced values whose LineIndex matches that line's
// LineIndex (not its source line number, since macro expansion can
// repeat numbers across distinct indexed lines).
func (m *AssemblyModel) ForeachLineSourcedValues(visit func(line IndexedLine, values []SourcedValue)) {
	for _, l := range m.lines {
		visit(l, m.sourcedByLine[l.LineIndex])
	}
}

// --- bounds -------------------------------------------------------

// LowestStorageAddress and HighestStorageAddress scan every recorded
// storage lazily; ok is false if no storage has been emitted.
func (m *AssemblyModel) LowestStorageAddress() (addr int32, ok bool) {
	first := true
	for _, values := range m.sourcedByLine {
		for _, v := range values {
			s, isStorage := v.(*Storage)
			if !isStorage {
				continue
			}
			if first || s.Address < addr {
				addr = s.Address
				first = false
			}
		}
	}
	return addr, !first
}

func (m *AssemblyModel) HighestStorageAddress() (addr int32, ok bool) {
	first := true
	for _, values := range m.sourcedByLine {
		for _, v := range values {
			s, isStorage := v.(*Storage)
			if !isStorage {
				continue
			}
			end := s.Address + int32(s.CellWidth*len(s.Data))
			if first || end > addr {
				addr = end
				first = false
			}
		}
	}
	return addr, !first
}

// --- metadata -------------------------------------------------------

func (m *AssemblyModel) SetTitle(title string) { m.title = title }
func (m *AssemblyModel) Title() string         { return m.title }

func (m *AssemblyModel) SetPage(rows, cols int) {
	m.pageRows, m.pageCols = rows, cols
}
func (m *AssemblyModel) PageRows() int { return m.pageRows }
func (m *AssemblyModel) PageCols() int { return m.pageCols }

// SetProcessor records the target processor; both "TRANSPUTER" and
// "386" imply little-endian, the only byte order this assembler
// targets.
func (m *AssemblyModel) SetProcessor(name string) {
	m.processor = name
	m.littleEndian = true
}
func (m *AssemblyModel) Processor() string  { return m.processor }
func (m *AssemblyModel) LittleEndian() bool { return m.littleEndian }

func (m *AssemblyModel) SetEndSeen()  { m.endSeen = true }
func (m *AssemblyModel) EndSeen() bool { return m.endSeen }
