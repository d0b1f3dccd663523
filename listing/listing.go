package listing

import (
	"fmt"
	"strings"

	"github.com/devzendo/transputer-asm/model"
)

// WriteListing renders one address/byte/source line per logged source
// line, in source order: the address and encoded bytes of whatever
// storage the line emitted (wrapped across bytesPerLine), followed by
// the original source text. Lines that emitted nothing (labels alone,
// EQU, directives) show just their line number and text.
func WriteListing(m *model.AssemblyModel, bytesPerLine int, showSource bool) string {
	if bytesPerLine <= 0 {
		bytesPerLine = 8
	}

	var sb strings.Builder
	m.ForeachLineSourcedValues(func(line model.IndexedLine, values []model.SourcedValue) {
		bytes := collectBytes(values)
		writeListingLine(&sb, line, bytes, bytesPerLine, showSource)
	})
	return sb.String()
}

func collectBytes(values []model.SourcedValue) []byte {
	var out []byte
	for _, v := range values {
		st, ok := v.(*model.Storage)
		if !ok {
			continue
		}
		for _, cell := range st.Data {
			switch st.CellWidth {
			case 1:
				out = append(out, byte(cell))
			case 2:
				out = append(out, byte(cell), byte(cell>>8))
			case 4:
				out = append(out, byte(cell), byte(cell>>8), byte(cell>>16), byte(cell>>24))
			default:
				for i := 0; i < st.CellWidth; i++ {
					out = append(out, byte(cell>>(8*uint(i))))
				}
			}
		}
	}
	return out
}

func writeListingLine(sb *strings.Builder, line model.IndexedLine, bytes []byte, bytesPerLine int, showSource bool) {
	if len(bytes) == 0 {
		fmt.Fprintf(sb, "%6d %-20s", line.Source.LineNumber, "")
		if showSource {
			sb.WriteString(line.RawText)
		}
		sb.WriteString("\n")
		return
	}

	for offset := 0; offset < len(bytes); offset += bytesPerLine {
		end := offset + bytesPerLine
		if end > len(bytes) {
			end = len(bytes)
		}
		chunk := bytes[offset:end]

		hexParts := make([]string, len(chunk))
		for i, b := range chunk {
			hexParts[i] = fmt.Sprintf("%02X", b)
		}
		hexCol := strings.Join(hexParts, " ")

		fmt.Fprintf(sb, "%6d %-20s", line.Source.LineNumber, hexCol)
		if offset == 0 && showSource {
			sb.WriteString(line.RawText)
		}
		sb.WriteString("\n")
	}
}
