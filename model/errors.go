package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/devzendo/transputer-asm/ident"
)

// Error is an assembly model exception: a rule violation discovered
// while mutating the model (symbol kind conflict, data overflow, a
// character literal in a disallowed position, or an unresolved
// forward reference). Every Error carries the source line that caused
// it, or 0 for an end-of-pass finding with no single line.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Message)
}

func newError(line int, format string, args ...interface{}) *Error {
	return &Error{Line: line, Message: fmt.Sprintf(format, args...)}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// kindConflictError reports an attempt to redefine name with an
// incompatible kind, or to redefine an existing constant/label outside
// convergence mode.
func kindConflictError(line int, newKind, existingKind SymbolKind, name ident.Name, definedOnLine int) *Error {
	if newKind == existingKind {
		return newError(line, "%s '%s' already defined on line %d; redefinition outside convergence is not permitted",
			titleCase(newKind.String()), name.String(), definedOnLine)
	}
	return newError(line, "%s '%s' cannot override existing %s; defined on line %d",
		titleCase(newKind.String()), name.String(), existingKind.String(), definedOnLine)
}

func dataOverflowError(line int, value int32, cellWidth int) *Error {
	return newError(line, "value %d does not fit in a %d-byte cell", value, cellWidth)
}

// unresolvedReferenceError builds the combined "still unresolved at
// end of pass 1" report across both forward-reference tables: names
// sorted alphabetically (case-insensitive, via ident.Name.Key), each
// followed by the ascending, deduplicated set of lines that referenced
// it, joined with '#'.
func unresolvedReferenceError(linesByName map[ident.Name]map[int]struct{}) *Error {
	names := make([]ident.Name, 0, len(linesByName))
	for n := range linesByName {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Key() < names[j].Key() })

	var sb strings.Builder
	sb.WriteString("unresolved forward references: ")
	for i, n := range names {
		if i > 0 {
			sb.WriteString("; ")
		}
		lines := make([]int, 0, len(linesByName[n]))
		for l := range linesByName[n] {
			lines = append(lines, l)
		}
		sort.Ints(lines)
		sb.WriteString(n.String())
		sb.WriteString(": ")
		for j, l := range lines {
			if j > 0 {
				sb.WriteString("#")
			}
			fmt.Fprintf(&sb, "%d", l)
		}
	}
	return newError(0, "%s", sb.String())
}
