package forthvm

// word is the bytecode element type: wide enough for a segment reference
// (BOUND_DICTIONARY-biased) or a literal operand. Bytecodes and cells are
// deliberately different widths, mirroring the original's separate T (cell)
// and I (bytecode) type parameters.
type word = int32

// Parser flags for typed I/O opcodes. A typed I/O instruction is encoded by
// OR-ing these together with a type tag, then bit-complementing the result
// so that it is negative (the sign bit distinguishes I/O ops from
// everything else in the dispatch switch).
const (
	readDirect    word = 1 << 0
	readRepeated  word = 1 << 1
	readBigEndian word = 1 << 2
)

// readMask isolates the type tag, which starts at bit 3.
const readMask = ^(word(-1) << 7) &^ 0x7

// Type tags for typed I/O opcodes, starting at the fourth bit.
const (
	readBool word = 0x8 * (iota + 1)
	readInt8
	readInt16
	readInt32
	readInt64
	readIntN
	readUint8
	readUint16
	readUint32
	readUint64
	readUintN
	readFloat32
	readFloat64
)

// Builtin opcodes. Values in [0, boundDictionary) name a builtin
// instruction; values >= boundDictionary are segment references (biased by
// boundDictionary); negative values are typed I/O instructions (see above).
const (
	codeLiteral word = iota
	codeHalt
	codePause
	codeIf
	codeIfElse
	codeDo
	codeDoStep
	codeAgain
	codeUntil
	codeWhile
	codeExit
	codePut
	codeInc
	codeGet
	codeLenInput
	codePos
	codeEnd
	codeSeek
	codeSkip
	codeWrite
	codeLenOutput
	codeRewind
	codeI
	codeJ
	codeK
	codeDup
	codeDrop
	codeSwap
	codeOver
	codeRot
	codeNip
	codeTuck
	codeAdd
	codeSub
	codeMul
	codeDiv
	codeMod
	codeDivMod
	codeNegate
	codeAdd1
	codeSub1
	codeAbs
	codeMin
	codeMax
	codeEq
	codeNe
	codeGt
	codeGe
	codeLt
	codeLe
	codeEq0
	codeInvert
	codeAnd
	codeOr
	codeXor
	codeLshift
	codeRshift
	codeFalse
	codeTrue

	// boundDictionary is the first segment-reference value: the beginning
	// of the user-defined (and structured-control) dictionary.
	boundDictionary
)

// genericBuiltinWords maps every builtin word (other than the ones with
// their own special parsing rule, like ':' or 'if') to its opcode.
var genericBuiltinWords = map[string]word{
	"i": codeI, "j": codeJ, "k": codeK,
	"dup": codeDup, "drop": codeDrop, "swap": codeSwap, "over": codeOver,
	"rot": codeRot, "nip": codeNip, "tuck": codeTuck,
	"+": codeAdd, "-": codeSub, "*": codeMul, "/": codeDiv,
	"mod": codeMod, "/mod": codeDivMod,
	"negate": codeNegate, "1+": codeAdd1, "1-": codeSub1, "abs": codeAbs,
	"min": codeMin, "max": codeMax,
	"=": codeEq, "<>": codeNe, ">": codeGt, ">=": codeGe, "<": codeLt, "<=": codeLe,
	"0=": codeEq0, "invert": codeInvert, "and": codeAnd, "or": codeOr, "xor": codeXor,
	"lshift": codeLshift, "rshift": codeRshift,
	"false": codeFalse, "true": codeTrue,
}

var reservedWords = map[string]bool{
	"(": true, ")": true, "\\": true, "\n": true, "": true,
	":": true, ";": true, "recurse": true,
	"variable": true, "input": true, "output": true,
	"halt": true, "pause": true,
	"if": true, "then": true, "else": true,
	"do": true, "loop": true, "+loop": true,
	"begin": true, "again": true, "until": true, "while": true, "repeat": true,
	"exit": true,
	"!": true, "+!": true, "@": true,
	"len": true, "pos": true, "end": true, "seek": true, "skip": true,
	"<-": true, "stack": true, "rewind": true,
}

// Dtype names the declared element type of an output buffer.
type Dtype int

const (
	DtypeBool Dtype = iota
	DtypeInt8
	DtypeInt16
	DtypeInt32
	DtypeInt64
	DtypeUint8
	DtypeUint16
	DtypeUint32
	DtypeUint64
	DtypeFloat32
	DtypeFloat64
)

var outputDtypeWords = map[string]Dtype{
	"bool": DtypeBool,
	"int8": DtypeInt8, "int16": DtypeInt16, "int32": DtypeInt32, "int64": DtypeInt64,
	"uint8": DtypeUint8, "uint16": DtypeUint16, "uint32": DtypeUint32, "uint64": DtypeUint64,
	"float32": DtypeFloat32, "float64": DtypeFloat64,
}

func (dt Dtype) String() string {
	for name, d := range outputDtypeWords {
		if d == dt {
			return name
		}
	}
	return "unknown"
}

func isParserWord(tok string) bool {
	rest := tok
	if len(rest) != 0 && rest[0] == '#' {
		rest = rest[1:]
	}
	if len(rest) != 0 && rest[0] == '!' {
		rest = rest[1:]
	}
	if len(rest) < 3 {
		return false
	}
	switch rest[0] {
	case '?', 'b', 'h', 'i', 'q', 'n', 'B', 'H', 'I', 'Q', 'N', 'f', 'd':
		return rest[1:] == "->"
	}
	return false
}
