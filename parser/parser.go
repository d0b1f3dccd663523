package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devzendo/transputer-asm/expr"
)

// physLine is one line of source after INCLUDE expansion but before
// macro expansion: still tied to a single physical line number.
type physLine struct {
	Number int
	Text   string
}

func splitPhysLines(source string) []physLine {
	parts := strings.Split(source, "\n")
	out := make([]physLine, len(parts))
	for i, t := range parts {
		out[i] = physLine{Number: i + 1, Text: t}
	}
	return out
}

// Parser turns preprocessed, macro-expanded source text into the
// ordered []Line stream the code generator consumes. It owns the
// macro table (definitions are scanned out of the source on first
// use) and assigns each emitted line a fresh, sequential LineIndex —
// stable across macro expansion even when two lines share a source
// LineNumber.
type Parser struct {
	filename      string
	errors        *ErrorList
	macroTable    *MacroTable
	macroExpander *MacroExpander
	nextLineIndex int
}

// NewParser creates a parser for source text attributed to filename.
func NewParser(source, filename string) *Parser {
	mt := NewMacroTable()
	return &Parser{
		filename:      filename,
		errors:        &ErrorList{},
		macroTable:    mt,
		macroExpander: NewMacroExpander(mt),
	}
}

// Errors returns every lexical, macro-expansion, or statement-grammar
// error encountered while parsing.
func (p *Parser) Errors() *ErrorList {
	return p.errors
}

// Parse tokenizes, expands macros over, and statement-parses source,
// returning the ordered line stream ready for the transformer chain
// and code generator.
func (p *Parser) Parse(source string) []Line {
	raw := splitPhysLines(source)
	withoutDefs := p.scanMacroDefinitions(raw)
	expanded := p.expandMacros(withoutDefs, 0)

	lines := make([]Line, 0, len(expanded))
	for _, pl := range expanded {
		lines = append(lines, p.parseOneLine(pl))
	}
	return lines
}

// scanMacroDefinitions extracts every `NAME MACRO param,param` ...
// `ENDM` block, registers it in the macro table, and returns the
// remaining lines with those blocks removed.
func (p *Parser) scanMacroDefinitions(lines []physLine) []physLine {
	out := make([]physLine, 0, len(lines))
	i := 0
	for i < len(lines) {
		fields := strings.Fields(strings.TrimSpace(lines[i].Text))
		if len(fields) >= 2 && strings.EqualFold(fields[1], "MACRO") {
			name := fields[0]
			var params []string
			for _, raw := range fields[2:] {
				for _, part := range strings.Split(raw, ",") {
					part = strings.TrimSpace(part)
					if part != "" {
						params = append(params, part)
					}
				}
			}
			j := i + 1
			var body []string
			for j < len(lines) && !strings.EqualFold(strings.TrimSpace(lines[j].Text), "ENDM") {
				body = append(body, lines[j].Text)
				j++
			}
			if j >= len(lines) {
				p.errors.AddError(NewError(Position{Filename: p.filename, Line: lines[i].Number},
					ErrorMacroExpansion, fmt.Sprintf("macro %q missing ENDM", name)))
				i = j
				continue
			}
			if err := p.macroTable.Define(&Macro{
				Name: name, Parameters: params, Body: body,
				Pos: Position{Filename: p.filename, Line: lines[i].Number},
			}); err != nil {
				p.errors.AddError(NewError(Position{Filename: p.filename, Line: lines[i].Number},
					ErrorMacroExpansion, err.Error()))
			}
			i = j + 1
			continue
		}
		out = append(out, lines[i])
		i++
	}
	return out
}

// expandMacros recursively replaces every macro invocation with its
// substituted body, depth-limited independently of MacroExpander's
// own recursion guard so a self-referential macro body fails cleanly
// instead of overflowing the Go call stack.
func (p *Parser) expandMacros(lines []physLine, depth int) []physLine {
	if depth > MaxMacroNestingDepth {
		p.errors.AddError(NewError(Position{Filename: p.filename}, ErrorMacroExpansion, "macro expansion too deep (possible recursion)"))
		return nil
	}
	out := make([]physLine, 0, len(lines))
	for _, pl := range lines {
		trimmed := strings.TrimSpace(pl.Text)
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			out = append(out, pl)
			continue
		}
		if _, ok := p.macroTable.Lookup(fields[0]); !ok {
			out = append(out, pl)
			continue
		}
		argsText := strings.TrimSpace(trimmed[len(fields[0]):])
		args := splitArgs(argsText)
		body, err := p.macroExpander.Expand(fields[0], args, Position{Filename: p.filename, Line: pl.Number})
		if err != nil {
			p.errors.AddError(NewError(Position{Filename: p.filename, Line: pl.Number}, ErrorMacroExpansion, err.Error()))
			continue
		}
		sub := make([]physLine, len(body))
		for k, t := range body {
			sub[k] = physLine{Number: pl.Number, Text: t}
		}
		out = append(out, p.expandMacros(sub, depth+1)...)
	}
	return out
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// parseOneLine lexes pl, splits off an optional label, and parses the
// remaining tokens into a Statement.
func (p *Parser) parseOneLine(pl physLine) Line {
	lx := NewLexer(pl.Text, p.filename)
	var toks []Token
	for {
		t := lx.NextToken()
		if t.Type == TokenComment || t.Type == TokenNewline {
			continue
		}
		if t.Type == TokenEOF {
			break
		}
		toks = append(toks, t)
	}
	p.errors.Errors = append(p.errors.Errors, lx.Errors().Errors...)

	line := Line{
		File: p.filename, LineNumber: pl.Number, LineIndex: p.nextLineIndex, RawText: pl.Text,
	}
	p.nextLineIndex++

	if len(toks) == 0 {
		return line
	}

	rest := toks
	if len(toks) >= 2 && toks[0].Type == TokenIdentifier && toks[1].Type == TokenColon {
		line.Label = toks[0].Literal
		rest = toks[2:]
	} else if len(toks) >= 2 && toks[0].Type == TokenIdentifier && !isKeyword(toks[0].Literal) &&
		(toks[1].Type == TokenEqual || strings.EqualFold(toks[1].Literal, "EQU")) {
		stmt, err := p.parseAssignLike(toks[0].Literal, toks[1], toks[2:], pl.Number)
		if err != nil {
			p.errors.AddError(NewError(Position{Filename: p.filename, Line: pl.Number}, ErrorSyntax, err.Error()))
			return line
		}
		line.Stmt = stmt
		return line
	}

	if len(rest) == 0 {
		return line
	}

	stmt, err := p.parseStatement(rest, pl.Number)
	if err != nil {
		p.errors.AddError(NewError(Position{Filename: p.filename, Line: pl.Number}, ErrorSyntax, err.Error()))
		return line
	}
	line.Stmt = stmt
	return line
}

func (p *Parser) parseAssignLike(name string, op Token, rest []Token, lineNum int) (Statement, error) {
	e, err := p.parseExpr(rest, lineNum)
	if err != nil {
		return nil, err
	}
	if op.Type == TokenEqual {
		return Assign{Name: name, Expr: e}, nil
	}
	return Equ{Name: name, Expr: e}, nil
}

var keywordDirectives = map[string]bool{
	"TITLE": true, "PAGE": true, "PROCESSOR": true, ".TRANSPUTER": true, ".386": true,
	"ALIGN": true, "ORG": true,
	"END": true, "IF1": true, "ELSE": true, "ENDIF": true,
	"DB": true, "DW": true, "DD": true, "EQU": true,
}

// isKeyword reports whether name, case-normalized, is reserved as a
// directive or instruction mnemonic and therefore cannot double as a
// bare (colon-less) assignment target.
func isKeyword(name string) bool {
	upper := strings.ToUpper(name)
	if keywordDirectives[upper] {
		return true
	}
	if _, ok := DirectOpcode(upper); ok {
		return true
	}
	if _, ok := IndirectBytes(upper); ok {
		return true
	}
	return false
}

func (p *Parser) parseStatement(toks []Token, lineNum int) (Statement, error) {
	kw := strings.ToUpper(toks[0].Literal)
	args := toks[1:]

	switch kw {
	case "TITLE":
		return Title{Text: unquote(joinLiterals(args))}, nil

	case "PAGE":
		groups := splitTopLevelCommas(args)
		if len(groups) != 2 {
			return nil, fmt.Errorf("PAGE requires rows,cols")
		}
		rows, err := parseIntLiteral(joinLiterals(groups[0]))
		if err != nil {
			return nil, err
		}
		cols, err := parseIntLiteral(joinLiterals(groups[1]))
		if err != nil {
			return nil, err
		}
		return Page{Rows: int(rows), Cols: int(cols)}, nil

	case "PROCESSOR":
		return Processor{Name: strings.ToUpper(unquote(joinLiterals(args)))}, nil

	case ".TRANSPUTER":
		return Processor{Name: "TRANSPUTER"}, nil

	case ".386":
		return Processor{Name: "386"}, nil

	case "ALIGN":
		e, err := p.parseExpr(args, lineNum)
		if err != nil {
			return nil, err
		}
		return Align{N: e}, nil

	case "ORG":
		e, err := p.parseExpr(args, lineNum)
		if err != nil {
			return nil, err
		}
		return Org{Expr: e}, nil

	case "END":
		return End{}, nil

	case "IF1":
		return If1{}, nil

	case "ELSE":
		return Else{}, nil

	case "ENDIF":
		return Endif{}, nil

	case "DB":
		return p.parseData(1, args, lineNum)
	case "DW":
		return p.parseData(2, args, lineNum)
	case "DD":
		return p.parseData(4, args, lineNum)

	default:
		if opNibble, ok := DirectOpcode(kw); ok {
			e, err := p.parseExpr(args, lineNum)
			if err != nil {
				return nil, err
			}
			return Direct{Mnemonic: kw, OpNibble: opNibble, Expr: e}, nil
		}
		if bytes, ok := IndirectBytes(kw); ok {
			return Indirect{Mnemonic: kw, Bytes: bytes}, nil
		}
		return nil, fmt.Errorf("unknown directive or instruction %q", toks[0].Literal)
	}
}

func (p *Parser) parseData(width int, toks []Token, lineNum int) (Statement, error) {
	if len(toks) == 0 {
		return nil, fmt.Errorf("DB/DW/DD requires at least one element")
	}
	if dupIdx := findTopLevelDup(toks); dupIdx >= 0 {
		count, err := p.parseExpr(toks[:dupIdx], lineNum)
		if err != nil {
			return nil, err
		}
		rest := toks[dupIdx+1:]
		if len(rest) >= 2 && rest[0].Type == TokenLParen && rest[len(rest)-1].Type == TokenRParen {
			rest = rest[1 : len(rest)-1]
		}
		elem, err := p.parseExpr(rest, lineNum)
		if err != nil {
			return nil, err
		}
		return DataDup{Width: width, Count: count, Elem: elem}, nil
	}

	groups := splitTopLevelCommas(toks)
	exprs := make([]expr.Expression, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 && g[0].Type == TokenString {
			exprs = append(exprs, expr.CharLiteral{Chars: ProcessEscapeSequences(g[0].Literal)})
			continue
		}
		e, err := p.parseExpr(g, lineNum)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return Data{Width: width, Exprs: exprs}, nil
}

// findTopLevelDup returns the index of a "DUP" identifier token at
// paren depth 0, or -1 if none exists.
func findTopLevelDup(toks []Token) int {
	depth := 0
	for i, t := range toks {
		switch t.Type {
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
		case TokenIdentifier:
			if depth == 0 && strings.EqualFold(t.Literal, "DUP") {
				return i
			}
		}
	}
	return -1
}

// splitTopLevelCommas splits toks on commas that appear at paren
// depth 0.
func splitTopLevelCommas(toks []Token) [][]Token {
	var groups [][]Token
	depth := 0
	start := 0
	for i, t := range toks {
		switch t.Type {
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
		case TokenComma:
			if depth == 0 {
				groups = append(groups, toks[start:i])
				start = i + 1
			}
		}
	}
	groups = append(groups, toks[start:])
	return groups
}

func joinLiterals(toks []Token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.Literal
	}
	return strings.Join(parts, " ")
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// parseIntLiteral parses a lexed NUMBER token's literal text: decimal,
// 0x/0X hex, 0b/0B binary, 0o/0O octal, or MASM-style trailing-H hex.
func parseIntLiteral(s string) (int32, error) {
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return int32(uint32(v)), err
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		v, err := strconv.ParseUint(s[2:], 2, 32)
		return int32(uint32(v)), err
	case strings.HasPrefix(s, "0o") || strings.HasPrefix(s, "0O"):
		v, err := strconv.ParseUint(s[2:], 8, 32)
		return int32(uint32(v)), err
	case len(s) > 1 && (s[len(s)-1] == 'H' || s[len(s)-1] == 'h'):
		v, err := strconv.ParseUint(s[:len(s)-1], 16, 32)
		return int32(uint32(v)), err
	default:
		v, err := strconv.ParseUint(s, 10, 32)
		return int32(uint32(v)), err
	}
}
