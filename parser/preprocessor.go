package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Preprocessor handles source-file inclusion (the MASM INCLUDE
// directive). Conditional assembly is not a preprocessor concern in
// this assembler: IF1/ELSE/ENDIF is a code-generation-level two-pass
// capture mechanism (see codegen), not a textual skip, so it must
// reach the parser and code generator untouched.
type Preprocessor struct {
	includeStack []string
	baseDir      string
	errors       *ErrorList
}

// NewPreprocessor creates a new preprocessor rooted at baseDir for
// resolving relative INCLUDE paths.
func NewPreprocessor(baseDir string) *Preprocessor {
	if baseDir == "" {
		baseDir = "."
	}
	return &Preprocessor{
		includeStack: make([]string, 0),
		baseDir:      baseDir,
		errors:       &ErrorList{},
	}
}

// ProcessFile reads filename and recursively inlines every INCLUDE.
func (p *Preprocessor) ProcessFile(filename string) (string, error) {
	absPath, err := filepath.Abs(filepath.Join(p.baseDir, filename))
	if err != nil {
		return "", err
	}

	for _, included := range p.includeStack {
		if included == absPath {
			return "", fmt.Errorf("circular include detected: %s", absPath)
		}
	}

	content, err := os.ReadFile(absPath) // #nosec G304 -- user-provided include file path
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	p.includeStack = append(p.includeStack, absPath)
	defer func() {
		p.includeStack = p.includeStack[:len(p.includeStack)-1]
	}()

	return p.ProcessContent(string(content), filename)
}

// ProcessContent expands every INCLUDE directive in content, in
// place, recursively. Non-INCLUDE lines pass through unchanged.
func (p *Preprocessor) ProcessContent(content, filename string) (string, error) {
	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines))

	for lineNum, line := range lines {
		pos := Position{Filename: filename, Line: lineNum + 1, Column: 1}
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		if strings.HasPrefix(upper, "INCLUDE") && (len(trimmed) == len("INCLUDE") || trimmed[len("INCLUDE")] == ' ' || trimmed[len("INCLUDE")] == '\t') {
			includeFile := parseIncludeDirective(trimmed)
			if includeFile == "" {
				p.errors.AddError(NewError(pos, ErrorSyntax, "invalid INCLUDE directive"))
				continue
			}
			includedContent, err := p.ProcessFile(includeFile)
			if err != nil {
				p.errors.AddError(NewError(pos, ErrorFileIO, fmt.Sprintf("failed to include %s: %v", includeFile, err)))
				continue
			}
			result = append(result, includedContent)
			continue
		}

		result = append(result, line)
	}

	return strings.Join(result, "\n"), nil
}

// parseIncludeDirective parses `INCLUDE "filename"` or `INCLUDE <filename>`
// and returns the bare filename, or "" if malformed.
func parseIncludeDirective(line string) string {
	line = strings.TrimSpace(line)
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "INCLUDE") {
		return ""
	}
	arg := strings.TrimSpace(fields[1])
	if len(arg) >= 2 {
		if (arg[0] == '"' && arg[len(arg)-1] == '"') ||
			(arg[0] == '<' && arg[len(arg)-1] == '>') {
			return arg[1 : len(arg)-1]
		}
	}
	return arg
}

// Errors returns the error list
func (p *Preprocessor) Errors() *ErrorList {
	return p.errors
}

// Reset resets the preprocessor state
func (p *Preprocessor) Reset() {
	p.includeStack = nil
	p.errors = &ErrorList{}
}

// GetIncludeStack returns the current include stack.
func (p *Preprocessor) GetIncludeStack() []string {
	stack := make([]string, len(p.includeStack))
	copy(stack, p.includeStack)
	return stack
}
