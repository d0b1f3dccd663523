package parser

import (
	"os"
	"path/filepath"
)

// ParseFile reads filePath, inlines its INCLUDEs, expands its macros,
// and parses the result into an ordered line stream. Check the
// returned *Parser's Errors() for lexical and grammar diagnostics;
// check the returned *ErrorList for include-resolution diagnostics.
func ParseFile(filePath string) ([]Line, *Parser, *ErrorList, error) {
	if _, err := os.ReadFile(filePath); err != nil { // #nosec G304 -- user-provided assembly file path
		return nil, nil, nil, err
	}

	filename := filepath.Base(filePath)
	baseDir := filepath.Dir(filePath)

	pp := NewPreprocessor(baseDir)
	processed, err := pp.ProcessFile(filename)
	if err != nil {
		return nil, nil, pp.Errors(), err
	}

	p := NewParser(processed, filename)
	lines := p.Parse(processed)

	return lines, p, pp.Errors(), nil
}
