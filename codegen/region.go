package codegen

// regionLine is one line captured between ELSE and ENDIF, identified
// by both its source line number (for diagnostics) and its stable
// line index (to look up the transformed statement pass 1 stored).
type regionLine struct {
	LineNumber int
	LineIndex  int
}

// Pass2Region holds the starting address (recorded on IF1), the
// ending address (recorded on ELSE, or immediately on ENDIF if there
// was no ELSE), and the ordered lines captured between ELSE and ENDIF
// — pass 2 replays them against Start and requires the result to
// land exactly on End.
type Pass2Region struct {
	Start int32
	End   int32
	Lines []regionLine
}

// Pass1BlockSize is the number of bytes pass 1 reserved for this
// region's ELSE arm.
func (r *Pass2Region) Pass1BlockSize() int32 {
	return r.End - r.Start
}
