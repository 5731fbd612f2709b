package forthvm

import (
	"fmt"
	"strings"
)

// Decompiled reconstructs a source-like listing of the compiled program by
// walking every segment in table order. It is an introspection aid, not a
// guarantee of round-tripping the original source text verbatim: segment
// numbering and whitespace will generally differ from what was written.
func (m *Machine) Decompiled() string {
	var b strings.Builder
	names := m.segmentNames()
	for i := range m.prog.segments {
		fmt.Fprintf(&b, "segment %d%s:\n", i, names[word(i)])
		b.WriteString(m.decompiledSegment(word(i), 1))
	}
	return b.String()
}

// segmentNames maps every dictionary-defined segment back to its word
// name, for labeling in Decompiled's output.
func (m *Machine) segmentNames() map[word]string {
	out := make(map[word]string, len(m.prog.dictionary))
	for name, seg := range m.prog.dictionary {
		out[seg] = " (" + name + ")"
	}
	return out
}

func (m *Machine) decompiledSegment(seg word, indent int) string {
	var b strings.Builder
	code := m.prog.segments[seg]
	pad := strings.Repeat("  ", indent)
	for i := 0; i < len(code); {
		text, width := m.decompileAt(code, i)
		fmt.Fprintf(&b, "%s%s\n", pad, text)
		i += width
	}
	return b.String()
}

// decompileAt renders the instruction at code[i] and reports how many
// bytecode words it occupies, mirroring the positional width inference
// every instruction needs since bytecodes are not self-delimiting.
func (m *Machine) decompileAt(code []word, i int) (string, int) {
	c := code[i]
	switch {
	case c < 0:
		return m.decompileTypedIO(code, i)
	case c >= boundDictionary:
		return fmt.Sprintf("call segment %d", c-boundDictionary), 1
	}

	switch c {
	case codeLiteral:
		return fmt.Sprintf("%d", code[i+1]), 2
	case codeHalt:
		return "halt", 1
	case codePause:
		return "pause", 1
	case codeIf:
		return fmt.Sprintf("if -> segment %d then", code[i+1]-boundDictionary), 2
	case codeIfElse:
		return fmt.Sprintf("if -> segment %d else segment %d then", code[i+1]-boundDictionary, code[i+2]-boundDictionary), 3
	case codeDo:
		return fmt.Sprintf("do segment %d loop", code[i+1]-boundDictionary), 2
	case codeDoStep:
		return fmt.Sprintf("do segment %d +loop", code[i+1]-boundDictionary), 2
	case codeAgain:
		return "again", 1
	case codeUntil:
		return "until", 1
	case codeWhile:
		return fmt.Sprintf("while segment %d repeat", code[i+1]-boundDictionary), 2
	case codeExit:
		return fmt.Sprintf("exit(%d)", code[i+1]), 2
	case codePut:
		return fmt.Sprintf("%s !", m.varName(code[i+1])), 2
	case codeInc:
		return fmt.Sprintf("%s +!", m.varName(code[i+1])), 2
	case codeGet:
		return fmt.Sprintf("%s @", m.varName(code[i+1])), 2
	case codeLenInput:
		return fmt.Sprintf("%s len", m.inName(code[i+1])), 2
	case codePos:
		return fmt.Sprintf("%s pos", m.inName(code[i+1])), 2
	case codeEnd:
		return fmt.Sprintf("%s end", m.inName(code[i+1])), 2
	case codeSeek:
		return fmt.Sprintf("%s seek", m.inName(code[i+1])), 2
	case codeSkip:
		return fmt.Sprintf("%s skip", m.inName(code[i+1])), 2
	case codeWrite:
		return fmt.Sprintf("%s <- stack", m.outName(code[i+1])), 2
	case codeLenOutput:
		return fmt.Sprintf("%s len", m.outName(code[i+1])), 2
	case codeRewind:
		return fmt.Sprintf("%s rewind", m.outName(code[i+1])), 2
	}
	if name, ok := reverseGenericBuiltin[c]; ok {
		return name, 1
	}
	return fmt.Sprintf("<opcode %d>", c), 1
}

func (m *Machine) decompileTypedIO(code []word, i int) (string, int) {
	c := code[i]
	raw := ^c
	direct := raw&readDirect != 0
	repeated := raw&readRepeated != 0
	bigEndian := raw&readBigEndian != 0
	tag := raw &^ (readDirect | readRepeated | readBigEndian)

	var sb strings.Builder
	sb.WriteString(m.inName(code[i+1]))
	sb.WriteString(" ")
	if repeated {
		sb.WriteString("#")
	}
	if bigEndian {
		sb.WriteString("!")
	}
	sb.WriteString(typeLetter(tag))
	sb.WriteString("->")
	if direct {
		sb.WriteString(" ")
		sb.WriteString(m.outName(code[i+2]))
		return sb.String(), 3
	}
	sb.WriteString(" stack")
	return sb.String(), 2
}

func typeLetter(tag word) string {
	switch tag {
	case readBool:
		return "?"
	case readInt8:
		return "b"
	case readInt16:
		return "h"
	case readInt32:
		return "i"
	case readInt64:
		return "q"
	case readIntN:
		return "n"
	case readUint8:
		return "B"
	case readUint16:
		return "H"
	case readUint32:
		return "I"
	case readUint64:
		return "Q"
	case readUintN:
		return "N"
	case readFloat32:
		return "f"
	case readFloat64:
		return "d"
	}
	return "?"
}

func (m *Machine) varName(idx word) string {
	if int(idx) < len(m.prog.varNames) {
		return m.prog.varNames[idx]
	}
	return fmt.Sprintf("var#%d", idx)
}

func (m *Machine) inName(idx word) string {
	if int(idx) < len(m.prog.inNames) {
		return m.prog.inNames[idx]
	}
	return fmt.Sprintf("input#%d", idx)
}

func (m *Machine) outName(idx word) string {
	if int(idx) < len(m.prog.outs) {
		return m.prog.outs[idx].name
	}
	return fmt.Sprintf("output#%d", idx)
}

var reverseGenericBuiltin = func() map[word]string {
	out := make(map[word]string, len(genericBuiltinWords))
	for name, code := range genericBuiltinWords {
		out[code] = name
	}
	return out
}()

// CurrentInstruction renders the instruction the top recursion frame is
// about to execute, or "" if the machine is not ready or has no frames.
func (m *Machine) CurrentInstruction() string {
	if !m.isReady {
		return ""
	}
	f, ok := m.recursion.top()
	if !ok {
		return ""
	}
	seg := m.prog.segments[f.segment]
	if f.where >= len(seg) {
		return ""
	}
	text, _ := m.decompileAt(seg, f.where)
	return text
}

// CurrentBytecodePosition reports the top frame's (segment, offset), for
// callers that want raw positional introspection rather than rendered
// text.
func (m *Machine) CurrentBytecodePosition() (segment, offset int) {
	f, ok := m.recursion.top()
	if !ok {
		return -1, -1
	}
	return int(f.segment), f.where
}

// CurrentRecursionDepth reports the number of active recursion frames.
func (m *Machine) CurrentRecursionDepth() int { return m.recursion.depth() }

// Bytecodes returns the compiled program's flat bytecode array together
// with the parallel segment offsets table: segment k occupies
// bytecodes[offsets[k]:offsets[k+1]].
func (m *Machine) Bytecodes() (bytecodes []int32, offsets []int) {
	return m.prog.bytecodes()
}
