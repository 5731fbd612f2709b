package forthvm

import "fmt"

type outputDecl struct {
	name  string
	dtype Dtype
}

// program is the compiled form of a source: a flat table of segments (the
// "flat bytecodes array + parallel offsets array" of the data model,
// represented here directly as a slice of slices since nothing needs the
// flattened form until Bytecodes() is asked for it) plus the symbol tables
// the compiler built while reading the source.
type program struct {
	segments   [][]word
	dictionary map[string]word // word name -> segment index
	varNames   []string
	varIndex   map[string]int
	inNames    []string
	inIndex    map[string]int
	outs       []outputDecl
	outIndex   map[string]int
}

// bytecodes flattens the segment table into the data model's single
// bytecodes array plus parallel segment offsets.
func (p *program) bytecodes() (flat []word, offsets []int) {
	offsets = make([]int, len(p.segments)+1)
	for i, seg := range p.segments {
		offsets[i] = len(flat)
		flat = append(flat, seg...)
	}
	offsets[len(p.segments)] = len(flat)
	return flat, offsets
}

type compiler struct {
	toks []token
	pos  int
	prog *program

	// enclosingWord is the segment index of the word currently being
	// defined, or -1 outside any ':' ... ';' definition. recurse resolves
	// against it.
	enclosingWord word
}

func newCompiler(toks []token) *compiler {
	return &compiler{
		toks: toks,
		prog: &program{
			dictionary: map[string]word{},
			varIndex:   map[string]int{},
			inIndex:    map[string]int{},
			outIndex:   map[string]int{},
		},
		enclosingWord: -1,
	}
}

func compile(source string) (*program, *CompileError) {
	c := newCompiler(tokenize(source))
	c.prog.segments = append(c.prog.segments, nil) // segment 0: top level
	term, err := c.parseBody(0, 0)
	if err != nil {
		return nil, err
	}
	if term != "" {
		return nil, c.errAt(c.here(), fmt.Sprintf("unexpected %q at top level", term))
	}
	return c.prog, nil
}

func (c *compiler) here() token {
	if c.pos < len(c.toks) {
		return c.toks[c.pos]
	}
	if len(c.toks) == 0 {
		return token{Line: 1, Col: 0}
	}
	last := c.toks[len(c.toks)-1]
	return token{Line: last.Line, Col: last.Col + len(last.Text)}
}

func (c *compiler) errAt(t token, msg string) *CompileError {
	return &CompileError{Line: t.Line, Col: t.Col, Snippet: t.Text, Message: msg}
}

func (c *compiler) next() (token, bool) {
	if c.pos >= len(c.toks) {
		return token{}, false
	}
	t := c.toks[c.pos]
	c.pos++
	return t, true
}

func (c *compiler) peek() (token, bool) {
	if c.pos >= len(c.toks) {
		return token{}, false
	}
	return c.toks[c.pos], true
}

func (c *compiler) emit(seg word, code ...word) {
	c.prog.segments[seg] = append(c.prog.segments[seg], code...)
}

func (c *compiler) allocSegment() word {
	c.prog.segments = append(c.prog.segments, nil)
	return word(len(c.prog.segments) - 1)
}

func (c *compiler) isKnownName(name string) bool {
	_, isVar := c.prog.varIndex[name]
	_, isIn := c.prog.inIndex[name]
	_, isOut := c.prog.outIndex[name]
	_, isWord := c.prog.dictionary[name]
	return isVar || isIn || isOut || isWord || reservedWords[name] || isInteger(name)
}

// parseBody compiles tokens into segment seg until it reaches a structural
// terminator (";", "then", "else", "loop", "+loop", "until", "again",
// "while", "repeat") or end of input, and returns which one it saw ("" at
// EOF).
//
// exitdepth counts how many structured-control segment calls seg is nested
// inside its enclosing word's own body segment (0 for the word body itself,
// 1 for an if/do/begin body directly inside it, and so on). Since this
// port compiles if/do/begin bodies as their own segments dispatched as
// recursion-stack subroutine calls rather than in-line jumps, returning
// from the enclosing word from inside such a body means popping that
// body's own frame *plus* one frame per level of structured-control
// nesting above it: exit emits exitdepth+1.
func (c *compiler) parseBody(seg word, exitdepth int) (string, *CompileError) {
	for {
		tok, ok := c.next()
		if !ok {
			return "", nil
		}
		switch tok.Text {
		case "\n", "":
			continue
		case "(":
			if err := c.skipBalancedComment(tok); err != nil {
				return "", err
			}
			continue
		case "\\":
			c.skipLineComment()
			continue
		case ";", "then", "else", "loop", "+loop", "until", "again", "while", "repeat":
			return tok.Text, nil
		case ":":
			if err := c.parseDefinition(); err != nil {
				return "", err
			}
			continue
		case "recurse":
			if c.enclosingWord < 0 {
				return "", c.errAt(tok, "recurse used outside a word definition")
			}
			c.emit(seg, boundDictionary+c.enclosingWord)
			continue
		case "variable":
			if err := c.parseVariable(); err != nil {
				return "", err
			}
			continue
		case "input":
			if err := c.parseInput(); err != nil {
				return "", err
			}
			continue
		case "output":
			if err := c.parseOutput(); err != nil {
				return "", err
			}
			continue
		case "halt":
			c.emit(seg, codeHalt)
			continue
		case "pause":
			c.emit(seg, codePause)
			continue
		case "if":
			if err := c.parseIf(seg, exitdepth); err != nil {
				return "", err
			}
			continue
		case "do":
			if err := c.parseDo(seg, exitdepth); err != nil {
				return "", err
			}
			continue
		case "begin":
			if err := c.parseBegin(seg, exitdepth); err != nil {
				return "", err
			}
			continue
		case "exit":
			c.emit(seg, codeExit, word(exitdepth+1))
			continue
		case "!", "+!", "@":
			return "", c.errAt(tok, "variable operator with no preceding name")
		}

		if err := c.compileWordOrName(seg, tok); err != nil {
			return "", err
		}
	}
}

func (c *compiler) skipBalancedComment(open token) *CompileError {
	depth := 1
	for depth > 0 {
		t, ok := c.next()
		if !ok {
			return c.errAt(open, "unterminated comment")
		}
		switch t.Text {
		case "(":
			depth++
		case ")":
			depth--
		}
	}
	return nil
}

func (c *compiler) skipLineComment() {
	for {
		t, ok := c.next()
		if !ok || t.Text == "\n" {
			return
		}
	}
}

func (c *compiler) parseDefinition() *CompileError {
	nameTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected a name after ':'")
	}
	name := nameTok.Text
	if reservedWords[name] || isInteger(name) {
		return c.errAt(nameTok, "word name is reserved or looks like a number")
	}
	if _, exists := c.prog.dictionary[name]; exists {
		return c.errAt(nameTok, "word already defined")
	}
	seg := c.allocSegment()
	c.prog.dictionary[name] = seg

	savedEnclosing := c.enclosingWord
	c.enclosingWord = seg
	term, err := c.parseBody(seg, 0)
	c.enclosingWord = savedEnclosing
	if err != nil {
		return err
	}
	if term != ";" {
		return c.errAt(c.here(), "word definition not closed with ';'")
	}
	return nil
}

func (c *compiler) parseVariable() *CompileError {
	nameTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected a name after 'variable'")
	}
	if c.isKnownName(nameTok.Text) {
		return c.errAt(nameTok, "name already in use")
	}
	c.prog.varIndex[nameTok.Text] = len(c.prog.varNames)
	c.prog.varNames = append(c.prog.varNames, nameTok.Text)
	return nil
}

func (c *compiler) parseInput() *CompileError {
	nameTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected a name after 'input'")
	}
	if c.isKnownName(nameTok.Text) {
		return c.errAt(nameTok, "name already in use")
	}
	c.prog.inIndex[nameTok.Text] = len(c.prog.inNames)
	c.prog.inNames = append(c.prog.inNames, nameTok.Text)
	return nil
}

func (c *compiler) parseOutput() *CompileError {
	nameTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected a name after 'output'")
	}
	if c.isKnownName(nameTok.Text) {
		return c.errAt(nameTok, "name already in use")
	}
	dtypeTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected a dtype after output name")
	}
	dtype, known := outputDtypeWords[dtypeTok.Text]
	if !known {
		return c.errAt(dtypeTok, "output dtype not recognized")
	}
	c.prog.outIndex[nameTok.Text] = len(c.prog.outs)
	c.prog.outs = append(c.prog.outs, outputDecl{name: nameTok.Text, dtype: dtype})
	return nil
}

// parseIf handles both "if ... then" and "if ... else ... then". Both
// branches are one segment-call level deeper than seg, so they parse at
// exitdepth+1.
func (c *compiler) parseIf(seg word, exitdepth int) *CompileError {
	consequent := c.allocSegment()
	term, err := c.parseBody(consequent, exitdepth+1)
	if err != nil {
		return err
	}
	switch term {
	case "then":
		c.emit(seg, codeIf, boundDictionary+consequent)
		return nil
	case "else":
		alternate := c.allocSegment()
		term2, err := c.parseBody(alternate, exitdepth+1)
		if err != nil {
			return err
		}
		if term2 != "then" {
			return c.errAt(c.here(), "'if/else' not closed with 'then'")
		}
		c.emit(seg, codeIfElse, boundDictionary+consequent, boundDictionary+alternate)
		return nil
	default:
		return c.errAt(c.here(), "'if' not closed with 'then' or 'else'")
	}
}

// parseDo handles "do ... loop" and "do ... +loop"; isStep is resolved
// from the terminator actually found, not the caller, since both share
// the same opening keyword. The body is one segment-call level deeper
// than seg, so it parses at exitdepth+1.
func (c *compiler) parseDo(seg word, exitdepth int) *CompileError {
	body := c.allocSegment()
	term, err := c.parseBody(body, exitdepth+1)
	if err != nil {
		return err
	}
	switch term {
	case "loop":
		c.emit(seg, codeDo, boundDictionary+body)
	case "+loop":
		c.emit(seg, codeDoStep, boundDictionary+body)
	default:
		return c.errAt(c.here(), "'do' not closed with 'loop' or '+loop'")
	}
	return nil
}

// parseBegin handles the three begin-loop forms: "begin ... again",
// "begin ... until", and "begin ... while ... repeat". Both the loop body
// and the while form's postcondition body are one segment-call level
// deeper than seg, so they parse at exitdepth+1.
func (c *compiler) parseBegin(seg word, exitdepth int) *CompileError {
	body := c.allocSegment()
	term, err := c.parseBody(body, exitdepth+1)
	if err != nil {
		return err
	}
	switch term {
	case "again":
		c.emit(body, codeAgain)
		c.emit(seg, boundDictionary+body)
	case "until":
		c.emit(body, codeUntil)
		c.emit(seg, boundDictionary+body)
	case "while":
		post := c.allocSegment()
		term2, err := c.parseBody(post, exitdepth+1)
		if err != nil {
			return err
		}
		if term2 != "repeat" {
			return c.errAt(c.here(), "'begin/while' not closed with 'repeat'")
		}
		c.emit(body, codeWhile, boundDictionary+post)
		c.emit(seg, boundDictionary+body)
	default:
		return c.errAt(c.here(), "'begin' not closed with 'again', 'until', or 'repeat'")
	}
	return nil
}

// compileWordOrName resolves a single non-keyword token: a variable
// access, an input/output action, a typed parser word, a dictionary word,
// a generic builtin, or an integer literal.
func (c *compiler) compileWordOrName(seg word, tok token) *CompileError {
	name := tok.Text

	if idx, ok := c.prog.varIndex[name]; ok {
		return c.compileVariableAccess(seg, tok, idx)
	}
	if idx, ok := c.prog.inIndex[name]; ok {
		return c.compileInputAction(seg, tok, idx)
	}
	if idx, ok := c.prog.outIndex[name]; ok {
		return c.compileOutputNameAction(seg, tok, idx)
	}
	if segIdx, ok := c.prog.dictionary[name]; ok {
		c.emit(seg, boundDictionary+segIdx)
		return nil
	}
	if code, ok := genericBuiltinWords[name]; ok {
		if err := c.checkDoDepth(tok, code); err != nil {
			return err
		}
		c.emit(seg, code)
		return nil
	}
	if isInteger(name) {
		c.emit(seg, codeLiteral, word(parseInteger(name)))
		return nil
	}
	return c.errAt(tok, "unrecognized word or wrong context for word")
}

// checkDoDepth performs no check: the compiler does not track do-loop
// nesting, so i/j/k are accepted in any context, inside or outside a do
// loop. The engine raises ErrStackUnderflow at run time when i/j/k execute
// with fewer active do loops than they reach for.
func (c *compiler) checkDoDepth(tok token, code word) *CompileError {
	return nil
}

func (c *compiler) compileVariableAccess(seg word, nameTok token, idx int) *CompileError {
	opTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected '!', '+!', or '@' after variable name")
	}
	switch opTok.Text {
	case "!":
		c.emit(seg, codePut, word(idx))
	case "+!":
		c.emit(seg, codeInc, word(idx))
	case "@":
		c.emit(seg, codeGet, word(idx))
	default:
		return c.errAt(opTok, "expected '!', '+!', or '@' after variable name")
	}
	_ = nameTok
	return nil
}

func (c *compiler) compileInputAction(seg word, nameTok token, idx int) *CompileError {
	actionTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected an action after input name")
	}
	switch actionTok.Text {
	case "len":
		c.emit(seg, codeLenInput, word(idx))
		return nil
	case "pos":
		c.emit(seg, codePos, word(idx))
		return nil
	case "end":
		c.emit(seg, codeEnd, word(idx))
		return nil
	case "seek":
		c.emit(seg, codeSeek, word(idx))
		return nil
	case "skip":
		c.emit(seg, codeSkip, word(idx))
		return nil
	}
	if isParserWord(actionTok.Text) {
		return c.compileParserWord(seg, actionTok, idx)
	}
	return c.errAt(actionTok, "unrecognized input action")
}

// compileParserWord handles the "[#][!]{type}->" family. flagsAndTag are
// bit-complemented at the end so the resulting bytecode is negative,
// distinguishing typed I/O from every other opcode kind.
func (c *compiler) compileParserWord(seg word, tok token, inputIdx int) *CompileError {
	rest := tok.Text
	var flags word
	if rest[0] == '#' {
		flags |= readRepeated
		rest = rest[1:]
	}
	if rest[0] == '!' {
		flags |= readBigEndian
		rest = rest[1:]
	}
	typeLetter := rest[0]
	var tag word
	switch typeLetter {
	case '?':
		tag = readBool
	case 'b':
		tag = readInt8
	case 'h':
		tag = readInt16
	case 'i':
		tag = readInt32
	case 'q':
		tag = readInt64
	case 'n':
		tag = readIntN
	case 'B':
		tag = readUint8
	case 'H':
		tag = readUint16
	case 'I':
		tag = readUint32
	case 'Q':
		tag = readUint64
	case 'N':
		tag = readUintN
	case 'f':
		tag = readFloat32
	case 'd':
		tag = readFloat64
	default:
		return c.errAt(tok, "unrecognized type letter in parser word")
	}

	destTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected 'stack' or an output name after parser word")
	}
	if destTok.Text == "stack" {
		code := ^(flags | tag)
		c.emit(seg, code, word(inputIdx))
		return nil
	}
	outIdx, known := c.prog.outIndex[destTok.Text]
	if !known {
		return c.errAt(destTok, "expected 'stack' or a declared output name")
	}
	code := ^(flags | readDirect | tag)
	c.emit(seg, code, word(inputIdx), word(outIdx))
	return nil
}

func (c *compiler) compileOutputNameAction(seg word, nameTok token, idx int) *CompileError {
	actionTok, ok := c.next()
	if !ok {
		return c.errAt(c.here(), "expected an action after output name")
	}
	switch actionTok.Text {
	case "len":
		c.emit(seg, codeLenOutput, word(idx))
		return nil
	case "rewind":
		c.emit(seg, codeRewind, word(idx))
		return nil
	case "<-":
		stackTok, ok := c.next()
		if !ok || stackTok.Text != "stack" {
			return c.errAt(c.here(), "expected 'stack' after '<-'")
		}
		c.emit(seg, codeWrite, word(idx))
		return nil
	}
	return c.errAt(actionTok, "unrecognized output action")
}
