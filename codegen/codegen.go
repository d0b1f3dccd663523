// Package codegen drives the two-pass Transputer code generator: pass
// 1 over the parsed line stream, the forward-reference convergence
// loop for variable-length direct instructions, capture of IF1/ELSE
// blocks into Pass2Regions, and pass 2 replay of the ELSE arms.
package codegen

import (
	"github.com/devzendo/transputer-asm/encoder"
	"github.com/devzendo/transputer-asm/expr"
	"github.com/devzendo/transputer-asm/ident"
	"github.com/devzendo/transputer-asm/model"
	"github.com/devzendo/transputer-asm/parser"
	"github.com/devzendo/transputer-asm/transform"
)

// generationMode tracks where pass 1 is relative to an IF1/ELSE/ENDIF
// block.
type generationMode int

const (
	modeAssembly generationMode = iota
	modeIf1Seen
	modeElseSeen
)

// trackedDirect is a direct instruction pass 1 could not fully encode
// because its operand was undefined; the convergence loop re-attempts
// it on every iteration once all of the symbols it originally depended
// on have acquired at least a candidate value.
type trackedDirect struct {
	Stmt        parser.Direct
	CurrentSize int
	LineNumber  int
	LineIndex   int
}

// CodeGenerator drives CreateModel. DebugCodegen is stored but not read
// by any code path: it produces no diagnostic output and has no effect
// on the generated bytes.
type CodeGenerator struct {
	Model        *model.AssemblyModel
	DebugCodegen bool

	norm  *ident.Normalizer
	chain *transform.Chain
	lines []parser.Line

	mode          generationMode
	currentRegion *Pass2Region
	regions       []*Pass2Region

	converging             bool
	startConvergeDollar    int32
	startConvergeLineIndex int
	endConvergeLineIndex   int
	symbolsToConverge      map[ident.Name]struct{}
	directByLineIndex      map[int]*trackedDirect

	inPass2 bool

	lastLineNumber int
	errs           []*Error
}

// NewCodeGenerator constructs a generator with a fresh AssemblyModel
// and the default (Offset-resolving) transformer chain.
func NewCodeGenerator(norm *ident.Normalizer, debugCodegen bool) *CodeGenerator {
	return &CodeGenerator{
		Model:             model.NewAssemblyModel(norm),
		DebugCodegen:      debugCodegen,
		norm:              norm,
		chain:             transform.DefaultChain(),
		directByLineIndex: make(map[int]*trackedDirect),
	}
}

// CodeGenerationErrors returns every code generation exception
// recorded so far, in the order they occurred. Assembly model
// exceptions are reported separately, via Model.Errors().
func (g *CodeGenerator) CodeGenerationErrors() []*Error {
	out := make([]*Error, len(g.errs))
	copy(out, g.errs)
	return out
}

func (g *CodeGenerator) addError(line int, format string, args ...interface{}) {
	g.errs = append(g.errs, newError(line, format, args...))
}

// Regions returns every IF1/ELSE/ENDIF block pass 1 captured, in
// source order.
func (g *CodeGenerator) Regions() []*Pass2Region {
	return g.regions
}

// CreateModel runs pass 1 over lines, checks for unresolved forward
// references, runs pass 2 over every captured region, and returns the
// resulting model. It collects every error it finds rather than
// stopping at the first; pass 2 is the one exception.
func (g *CodeGenerator) CreateModel(lines []parser.Line) *model.AssemblyModel {
	g.lines = make([]parser.Line, len(lines))
	for _, line := range lines {
		g.processLine(line)
	}
	g.endCheck()
	g.Model.CheckUnresolvedForwardReferences()
	g.runPass2()
	return g.Model
}

// endCheck appends a terminal error if no END directive was ever seen.
func (g *CodeGenerator) endCheck() {
	if g.mode != modeAssembly {
		g.addError(g.lastLineNumber, "unterminated IF1/ELSE block: missing ENDIF")
	}
	if !g.Model.EndSeen() {
		g.addError(g.lastLineNumber, "missing END statement")
	}
}

// processLine implements one step of the pass 1 walk.
func (g *CodeGenerator) processLine(line parser.Line) {
	transformed, err := g.chain.Apply(line.Stmt, g.Model)
	if err != nil {
		g.addError(line.LineNumber, "statement transformation: %s", err)
	} else {
		line.Stmt = transformed
	}
	g.lines[line.LineIndex] = line

	g.Model.LogLine(model.IndexedLine{
		Source:    model.SourceLine{File: line.File, LineNumber: line.LineNumber},
		LineIndex: line.LineIndex,
		Label:     line.Label,
		RawText:   line.RawText,
	})

	if line.LineNumber > g.lastLineNumber {
		g.lastLineNumber = line.LineNumber
	}

	if g.mode == modeElseSeen {
		if _, isEndif := line.Stmt.(parser.Endif); !isEndif {
			g.currentRegion.Lines = append(g.currentRegion.Lines, regionLine{
				LineNumber: line.LineNumber, LineIndex: line.LineIndex,
			})
			return
		}
	}

	if d, ok := line.Stmt.(parser.Direct); ok {
		undef := expr.FindUndefineds(d.Expr, g.Model)
		if len(undef) > 0 {
			if !g.converging {
				g.converging = true
				g.startConvergeDollar = g.Model.Dollar()
				g.startConvergeLineIndex = line.LineIndex
				g.symbolsToConverge = make(map[ident.Name]struct{})
			}
			for n := range undef {
				g.symbolsToConverge[n] = struct{}{}
			}
		}
	}

	g.applyLabelAndDispatch(line)

	if g.converging && len(g.symbolsToConverge) == 0 {
		g.endConvergeLineIndex = line.LineIndex
		g.runConvergenceLoop()
		g.converging = false
	}
}

// applyLabelAndDispatch defines line's label (if any) at the current
// `$`, then dispatches its statement. Shared by pass 1, the
// convergence loop, and pass 2 replay.
func (g *CodeGenerator) applyLabelAndDispatch(line parser.Line) {
	if line.Label != "" {
		name := g.norm.NewName(line.Label)
		g.Model.SetLabel(name, g.Model.Dollar(), line.LineNumber, line.LineIndex)
		if g.converging {
			delete(g.symbolsToConverge, name)
		}
	}
	g.dispatch(line)
}

// dispatch applies the statement's semantics to the model. It is
// re-entrant: the convergence loop and pass 2 both call it again for
// lines pass 1 has already logged.
func (g *CodeGenerator) dispatch(line parser.Line) {
	if line.Stmt == nil {
		return
	}
	if _, isEnd := line.Stmt.(parser.End); !isEnd && g.Model.EndSeen() && !g.inPass2 {
		g.addError(line.LineNumber, "No statements allowed after End statement")
	}

	switch s := line.Stmt.(type) {
	case parser.Title:
		g.Model.SetTitle(s.Text)
	case parser.Page:
		g.Model.SetPage(s.Rows, s.Cols)
	case parser.Processor:
		g.Model.SetProcessor(s.Name)
	case parser.Align:
		g.dispatchAlign(line, s)
	case parser.Org:
		g.dispatchOrg(line, s)
	case parser.End:
		g.Model.SetEndSeen()
	case parser.Equ:
		g.dispatchAssignLike(line, s.Name, s.Expr, model.Constant)
	case parser.Assign:
		g.dispatchAssignLike(line, s.Name, s.Expr, model.Variable)
	case parser.Data:
		g.Model.AllocateStorageForLine(line.LineNumber, line.LineIndex, s.Width, s.Exprs)
	case parser.DataDup:
		g.dispatchDataDup(line, s)
	case parser.If1:
		g.dispatchIf1(line)
	case parser.Else:
		g.dispatchElse(line)
	case parser.Endif:
		g.dispatchEndif(line)
	case parser.Direct:
		g.dispatchDirect(line, s)
	case parser.Indirect:
		g.Model.AllocateInstructionStorageForLine(line.LineNumber, line.LineIndex, s.Bytes)
	}
}

func (g *CodeGenerator) dispatchAlign(line parser.Line, s parser.Align) {
	n, err := expr.Evaluate(s.N, g.Model)
	if err != nil {
		g.addError(line.LineNumber, "ALIGN boundary must be a defined value: %s", err)
		return
	}
	if n <= 0 {
		g.addError(line.LineNumber, "ALIGN boundary must be positive")
		return
	}
	if rem := g.Model.Dollar() % n; rem != 0 {
		g.Model.IncrementDollar(n - rem)
	}
}

func (g *CodeGenerator) dispatchOrg(line parser.Line, s parser.Org) {
	if containsCharLiteral(s.Expr) {
		g.addError(line.LineNumber, "character literal cannot be used in ORG")
		return
	}
	v, err := expr.Evaluate(s.Expr, g.Model)
	if err != nil {
		g.addError(line.LineNumber, "ORG address must be defined at this point: %s", err)
		return
	}
	g.Model.SetDollar(v, line.LineNumber, line.LineIndex)
}

func (g *CodeGenerator) dispatchAssignLike(line parser.Line, rawName string, e expr.Expression, kind model.SymbolKind) {
	if containsCharLiteral(e) {
		g.addError(line.LineNumber, "character literal cannot be used in an assignment")
		return
	}
	name := g.norm.NewName(rawName)
	v, err := expr.Evaluate(e, g.Model)
	if err == nil {
		if kind == model.Constant {
			g.Model.SetConstant(name, v, line.LineNumber, line.LineIndex)
		} else {
			g.Model.SetVariable(name, v, line.LineNumber, line.LineIndex)
		}
		if g.converging {
			delete(g.symbolsToConverge, name)
		}
		return
	}
	if undef, ok := err.(*expr.UndefinedError); ok {
		g.Model.RecordSymbolForwardReference(undef.Names, name, e, kind, line.LineNumber, line.LineIndex)
		return
	}
	g.addError(line.LineNumber, "%s", err.Error())
}

func (g *CodeGenerator) dispatchDataDup(line parser.Line, s parser.DataDup) {
	count, err := expr.Evaluate(s.Count, g.Model)
	if err != nil {
		g.addError(line.LineNumber, "DUP count must be defined: %s", err)
		return
	}
	exprs := make([]expr.Expression, count)
	for i := range exprs {
		exprs[i] = s.Elem
	}
	g.Model.AllocateStorageForLine(line.LineNumber, line.LineIndex, s.Width, exprs)
}

func (g *CodeGenerator) dispatchIf1(line parser.Line) {
	if g.mode != modeAssembly {
		g.addError(line.LineNumber, "IF1 nested inside another IF1/ELSE block")
		return
	}
	g.currentRegion = &Pass2Region{Start: g.Model.Dollar()}
	g.mode = modeIf1Seen
}

func (g *CodeGenerator) dispatchElse(line parser.Line) {
	if g.mode != modeIf1Seen {
		g.addError(line.LineNumber, "ELSE without matching IF1")
		return
	}
	g.currentRegion.End = g.Model.Dollar()
	g.mode = modeElseSeen
}

func (g *CodeGenerator) dispatchEndif(line parser.Line) {
	if g.mode != modeIf1Seen && g.mode != modeElseSeen {
		g.addError(line.LineNumber, "ENDIF without matching IF1")
		return
	}
	if g.mode == modeIf1Seen {
		g.currentRegion.End = g.Model.Dollar()
	}
	g.regions = append(g.regions, g.currentRegion)
	g.currentRegion = nil
	g.mode = modeAssembly
}

func (g *CodeGenerator) dispatchDirect(line parser.Line, s parser.Direct) {
	v, err := expr.Evaluate(s.Expr, g.Model)
	if err == nil {
		bytes := encoder.EncodeDirect(s.OpNibble, v)
		g.Model.AllocateInstructionStorageForLine(line.LineNumber, line.LineIndex, bytes)
		return
	}
	g.Model.IncrementDollar(1)
	g.directByLineIndex[line.LineIndex] = &trackedDirect{
		Stmt: s, CurrentSize: 1, LineNumber: line.LineNumber, LineIndex: line.LineIndex,
	}
}

// runConvergenceLoop implements the fixed-point walk over
// [startConvergeLineIndex, endConvergeLineIndex], re-emitting every
// line in the interval until no tracked direct instruction's encoded
// size grows. Termination is guaranteed: each tracked instruction's
// size only increases and is bounded above by 8 bytes.
func (g *CodeGenerator) runConvergenceLoop() {
	for {
		g.Model.SetDollarSilently(g.startConvergeDollar)
		g.Model.SetConverging(true)

		for idx := g.startConvergeLineIndex; idx <= g.endConvergeLineIndex; idx++ {
			g.Model.ClearSourcedValuesForLineIndex(idx)
		}

		changed := false
		for idx := g.startConvergeLineIndex; idx <= g.endConvergeLineIndex; idx++ {
			line := g.lines[idx]

			if line.Label != "" {
				name := g.norm.NewName(line.Label)
				g.Model.SetLabel(name, g.Model.Dollar(), line.LineNumber, line.LineIndex)
			}

			tracked, isTracked := g.directByLineIndex[idx]
			switch {
			case isTracked:
				v, err := expr.Evaluate(tracked.Stmt.Expr, g.Model)
				if err != nil {
					g.Model.IncrementDollar(int32(tracked.CurrentSize))
					continue
				}
				encoded := encoder.EncodeDirect(tracked.Stmt.OpNibble, v)
				if len(encoded) > tracked.CurrentSize {
					if tracked.CurrentSize >= 8 {
						g.addError(line.LineNumber, "direct instruction failed to converge within 8 bytes")
						g.Model.IncrementDollar(int32(tracked.CurrentSize))
						continue
					}
					tracked.CurrentSize++
					g.Model.IncrementDollar(int32(tracked.CurrentSize))
					changed = true
					continue
				}
				g.Model.AllocateInstructionStorageForLine(line.LineNumber, line.LineIndex, encoded)
			default:
				g.dispatch(line)
			}
		}

		g.Model.SetConverging(false)
		if !changed {
			break
		}
	}
}

// runPass2 replays every captured IF1/ELSE region's lines against its
// recorded start address, aborting on the first mismatch between the
// pass-1 and pass-2 block sizes. Replayed lines are re-dispatched after
// END has already been seen (END is itself a pass-1-only line, and an
// ELSE arm commonly follows it), so the "no statements after END" rule,
// which is a pass-1 restriction, must not fire here.
func (g *CodeGenerator) runPass2() {
	g.inPass2 = true
	defer func() { g.inPass2 = false }()
	for _, region := range g.regions {
		if len(region.Lines) == 0 {
			continue
		}
		g.Model.SetDollarSilently(region.Start)
		var lastLine int
		for _, rl := range region.Lines {
			line := g.lines[rl.LineIndex]
			lastLine = line.LineNumber
			g.applyLabelAndDispatch(line)
		}
		if g.Model.Dollar() != region.End {
			g.addError(lastLine, "Differently-sized blocks in Passes 1 and 2: Pass 1=%d byte(s); Pass 2=%d byte(s)",
				region.Pass1BlockSize(), g.Model.Dollar()-region.Start)
			return
		}
	}
}

func containsCharLiteral(e expr.Expression) bool {
	switch n := e.(type) {
	case expr.CharLiteral:
		return true
	case expr.Unary:
		return containsCharLiteral(n.Operand)
	case expr.Binary:
		return containsCharLiteral(n.Left) || containsCharLiteral(n.Right)
	default:
		return false
	}
}
