package forthvm

import (
	"encoding/binary"
	"math"
)

// dispatchLoop is the machine's single execution primitive: every one of
// Run/Step/Resume/Call funnels through it. It executes instructions,
// starting from the current top recursion frame, until one of:
//
//   - the recursion stack depth falls to targetDepth (the caller's own
//     frame, or 0 for a top-level Run/Resume) — normal completion of the
//     bounded call;
//   - a 'pause' instruction is dispatched — the machine stays ready, just
//     suspended, for a later Resume/Step;
//   - singleStep is true and one instruction has been dispatched;
//   - halt or a runtime error latches the machine.
func (m *Machine) dispatchLoop(targetDepth int, singleStep bool) error {
	for m.recursion.depth() > targetDepth {
		f, ok := m.recursion.top()
		if !ok {
			break
		}
		seg := m.prog.segments[f.segment]

		if f.where >= len(seg) {
			m.recursion.pop()
			m.onSegmentReturn()
			continue
		}

		code := seg[f.where]
		f.where++

		switch {
		case code < 0:
			if err := m.dispatchTypedIO(f, seg, code); err != nil {
				rerr := asRuntimeError(err)
				m.latch(rerr)
				return rerr
			}
		case code >= boundDictionary:
			target := code - boundDictionary
			if rerr := m.recursion.push(frame{segment: target, where: 0}); rerr != ErrNone {
				m.latch(rerr)
				return rerr
			}
		default:
			done, err := m.dispatchBuiltin(f, seg, code)
			if err != nil {
				rerr := asRuntimeError(err)
				m.latch(rerr)
				return rerr
			}
			if done {
				m.counts.instructions++
				return nil
			}
		}
		m.counts.instructions++

		if singleStep {
			return nil
		}
	}
	if targetDepth == 0 && m.recursion.depth() == 0 {
		m.currentError = ErrDone
		m.isReady = false
	}
	return nil
}

// onSegmentReturn runs whenever a frame's segment is exhausted and the
// frame is popped: it advances any do-loop whose body just returned, and
// resets a resetOnReturn frame beneath a just-finished while-postcondition
// body instead of letting it pop too.
func (m *Machine) onSegmentReturn() {
	depth := m.recursion.depth()

	if top, ok := m.recursion.top(); ok && top.resetOnReturn {
		top.resetOnReturn = false
		top.where = 0
		return
	}

	df := m.doLoops.top()
	if df == nil || df.absDepth != depth {
		return
	}
	if df.isStep {
		step, rerr := m.stack.pop()
		if rerr != ErrNone {
			m.latch(rerr)
			return
		}
		df.i += step
	} else {
		df.i++
	}
	if df.i < df.stop {
		if rerr := m.recursion.push(frame{segment: df.bodySeg, where: 0}); rerr != ErrNone {
			m.latch(rerr)
		}
		return
	}
	m.doLoops.pop()
}

// asRuntimeError coerces any error dispatch produced into the closed
// RuntimeError enum. Every dispatch path in this file already returns a
// RuntimeError value; the fallback exists only to keep a stray future
// error type from panicking the dispatch loop instead of latching cleanly.
func asRuntimeError(err error) RuntimeError {
	if rerr, ok := err.(RuntimeError); ok {
		return rerr
	}
	return ErrStackOverflow
}

func nativeByteOrder() binary.ByteOrder {
	return binary.LittleEndian
}

func orderFor(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return nativeByteOrder()
}

func dtypeSize(tag word) int {
	switch tag {
	case readBool, readInt8, readUint8:
		return 1
	case readInt16, readUint16:
		return 2
	case readInt32, readUint32, readFloat32:
		return 4
	case readInt64, readUint64, readFloat64, readIntN, readUintN:
		return 8
	}
	return 0
}

func (m *Machine) dispatchTypedIO(f *frame, seg []word, code word) error {
	raw := ^code
	direct := raw&readDirect != 0
	repeated := raw&readRepeated != 0
	bigEndian := raw&readBigEndian != 0
	tag := raw &^ (readDirect | readRepeated | readBigEndian)

	inputIdx := seg[f.where]
	f.where++
	var outputIdx word = -1
	if direct {
		outputIdx = seg[f.where]
		f.where++
	}

	in := m.inputs[m.prog.inNames[inputIdx]]
	order := orderFor(bigEndian)
	size := dtypeSize(tag)

	var count int64 = 1
	if repeated {
		n, rerr := m.stack.pop()
		if rerr != ErrNone {
			return rerr
		}
		count = n
	}

	raw2, err := in.Read(int(count) * size)
	if err != nil {
		if rerr, ok := err.(RuntimeError); ok {
			return rerr
		}
		return ErrReadBeyond
	}
	m.counts.reads += int64(len(raw2))

	if direct {
		out := m.outputs[outputIdx]
		if err := out.appendBytes(raw2, count, order); err != nil {
			return err
		}
		m.counts.writes += count
		return nil
	}

	return m.pushTyped(raw2, count, size, tag, order)
}

func (m *Machine) pushTyped(raw []byte, count int64, size int, tag word, order binary.ByteOrder) error {
	for i := int64(0); i < count; i++ {
		chunk := raw[i*int64(size) : (i+1)*int64(size)]
		v, rerr := decodeCell(chunk, tag, order)
		if rerr != ErrNone {
			return rerr
		}
		if rerr := m.stack.push(v); rerr != ErrNone {
			return rerr
		}
	}
	return nil
}

func decodeCell(b []byte, tag word, order binary.ByteOrder) (int64, RuntimeError) {
	switch tag {
	case readBool:
		if b[0] != 0 {
			return -1, ErrNone
		}
		return 0, ErrNone
	case readInt8:
		return int64(int8(b[0])), ErrNone
	case readUint8:
		return int64(b[0]), ErrNone
	case readInt16:
		return int64(int16(order.Uint16(b))), ErrNone
	case readUint16:
		return int64(order.Uint16(b)), ErrNone
	case readInt32:
		return int64(int32(order.Uint32(b))), ErrNone
	case readUint32:
		return int64(order.Uint32(b)), ErrNone
	case readIntN:
		return int64(order.Uint64(b)), ErrNone
	case readUintN:
		return int64(order.Uint64(b)), ErrNone
	case readInt64:
		return int64(order.Uint64(b)), ErrNone
	case readUint64:
		return int64(order.Uint64(b)), ErrNone
	case readFloat32:
		return int64(math.Float32frombits(order.Uint32(b))), ErrNone
	case readFloat64:
		return int64(math.Float64frombits(order.Uint64(b))), ErrNone
	}
	return 0, ErrNone
}

// flooredDiv implements Euclidean-adjacent floored division: the quotient
// always rounds toward negative infinity, not toward zero.
func flooredDiv(a, b int64) int64 {
	q := a / b
	if q*b != a && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// euclidMod implements the matching floored modulo: the result always
// shares sign with the divisor's magnitude convention used by the
// original (b + a%b) % b, i.e. it is always in [0, |b|) for positive b.
func euclidMod(a, b int64) int64 {
	return ((a%b)+b)%b
}

func boolInt(b bool) int64 {
	if b {
		return -1
	}
	return 0
}

func (m *Machine) dispatchBuiltin(f *frame, seg []word, code word) (done bool, err error) {
	switch code {
	case codeLiteral:
		v := seg[f.where]
		f.where++
		if rerr := m.stack.push(int64(v)); rerr != ErrNone {
			return false, rerr
		}

	case codeHalt:
		m.currentError = ErrUserHalt
		m.isReady = false
		m.logfn("halt")
		return true, nil

	case codePause:
		m.logfn("pause")
		return true, nil

	case codeIf:
		target := seg[f.where]
		f.where++
		pred, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		if pred != 0 {
			if rerr := m.recursion.push(frame{segment: target - boundDictionary, where: 0}); rerr != ErrNone {
				return false, rerr
			}
		}

	case codeIfElse:
		consequent := seg[f.where]
		alternate := seg[f.where+1]
		f.where += 2
		pred, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		target := alternate
		if pred != 0 {
			target = consequent
		}
		if rerr := m.recursion.push(frame{segment: target - boundDictionary, where: 0}); rerr != ErrNone {
			return false, rerr
		}

	case codeDo, codeDoStep:
		body := seg[f.where]
		f.where++
		limit, start, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		if start >= limit {
			// pre-test: a loop that would never run its body is never
			// entered, matching the check the original does before the
			// first iteration rather than after it.
			break
		}
		m.doLoops.push(doFrame{
			i: start, stop: limit,
			absDepth: m.recursion.depth(),
			bodySeg:  body - boundDictionary,
			isStep:   code == codeDoStep,
		})
		if rerr := m.recursion.push(frame{segment: body - boundDictionary, where: 0}); rerr != ErrNone {
			return false, rerr
		}

	case codeAgain:
		f.where = 0

	case codeUntil:
		pred, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		if pred == 0 {
			f.where = 0
		}

	case codeWhile:
		post := seg[f.where]
		f.where++
		pred, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		if pred == 0 {
			f.where = len(seg)
		} else {
			f.resetOnReturn = true
			if rerr := m.recursion.push(frame{segment: post - boundDictionary, where: 0}); rerr != ErrNone {
				return false, rerr
			}
		}

	case codeExit:
		howMany := int(seg[f.where])
		f.where++
		for i := 0; i < howMany; i++ {
			if _, ok := m.recursion.pop(); !ok {
				break
			}
		}
		m.doLoops.pruneBelow(m.recursion.depth())

	case codePut:
		idx := seg[f.where]
		f.where++
		v, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		m.variables[idx] = v

	case codeInc:
		idx := seg[f.where]
		f.where++
		v, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		m.variables[idx] += v

	case codeGet:
		idx := seg[f.where]
		f.where++
		if rerr := m.stack.push(m.variables[idx]); rerr != ErrNone {
			return false, rerr
		}

	case codeLenInput:
		idx := seg[f.where]
		f.where++
		in := m.inputs[m.prog.inNames[idx]]
		if rerr := m.stack.push(in.Len()); rerr != ErrNone {
			return false, rerr
		}

	case codePos:
		idx := seg[f.where]
		f.where++
		in := m.inputs[m.prog.inNames[idx]]
		if rerr := m.stack.push(in.Pos()); rerr != ErrNone {
			return false, rerr
		}

	case codeEnd:
		idx := seg[f.where]
		f.where++
		in := m.inputs[m.prog.inNames[idx]]
		if rerr := m.stack.push(boolInt(in.End())); rerr != ErrNone {
			return false, rerr
		}

	case codeSeek:
		idx := seg[f.where]
		f.where++
		pos, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		in := m.inputs[m.prog.inNames[idx]]
		if serr := in.Seek(pos); serr != nil {
			return false, ErrSeekBeyond
		}

	case codeSkip:
		idx := seg[f.where]
		f.where++
		n, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		in := m.inputs[m.prog.inNames[idx]]
		if serr := in.Skip(n); serr != nil {
			return false, ErrSkipBeyond
		}

	case codeWrite:
		idx := seg[f.where]
		f.where++
		v, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		if werr := m.outputs[idx].appendFromStack(v); werr != nil {
			return false, werr
		}
		m.counts.writes++

	case codeLenOutput:
		idx := seg[f.where]
		f.where++
		if rerr := m.stack.push(m.outputs[idx].Len()); rerr != ErrNone {
			return false, rerr
		}

	case codeRewind:
		idx := seg[f.where]
		f.where++
		n, rerr := m.stack.pop()
		if rerr != ErrNone {
			return false, rerr
		}
		if werr := m.outputs[idx].Rewind(n); werr != nil {
			return false, ErrRewindBeyond
		}

	case codeI:
		df := m.doLoops.at(0)
		if df == nil {
			return false, ErrStackUnderflow
		}
		if rerr := m.stack.push(df.i); rerr != ErrNone {
			return false, rerr
		}
	case codeJ:
		df := m.doLoops.at(1)
		if df == nil {
			return false, ErrStackUnderflow
		}
		if rerr := m.stack.push(df.i); rerr != ErrNone {
			return false, rerr
		}
	case codeK:
		df := m.doLoops.at(2)
		if df == nil {
			return false, ErrStackUnderflow
		}
		if rerr := m.stack.push(df.i); rerr != ErrNone {
			return false, rerr
		}

	case codeDup:
		v, rerr := m.stack.peek()
		if rerr != ErrNone {
			return false, rerr
		}
		if rerr := m.stack.push(v); rerr != ErrNone {
			return false, rerr
		}
	case codeDrop:
		if _, rerr := m.stack.pop(); rerr != ErrNone {
			return false, rerr
		}
	case codeSwap:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		if rerr := m.stack.push(b); rerr != ErrNone {
			return false, rerr
		}
		if rerr := m.stack.push(a); rerr != ErrNone {
			return false, rerr
		}
	case codeOver:
		if m.stack.len() < 2 {
			return false, ErrStackUnderflow
		}
		v := m.stack.cells[len(m.stack.cells)-2]
		if rerr := m.stack.push(v); rerr != ErrNone {
			return false, rerr
		}
	case codeRot:
		if m.stack.len() < 3 {
			return false, ErrStackUnderflow
		}
		n := len(m.stack.cells)
		a, b, c := m.stack.cells[n-3], m.stack.cells[n-2], m.stack.cells[n-1]
		m.stack.cells[n-3], m.stack.cells[n-2], m.stack.cells[n-1] = b, c, a
	case codeNip:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		_ = a
		if rerr := m.stack.push(b); rerr != ErrNone {
			return false, rerr
		}
	case codeTuck:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		if rerr := m.stack.push(b); rerr != ErrNone {
			return false, rerr
		}
		if rerr := m.stack.push(a); rerr != ErrNone {
			return false, rerr
		}
		if rerr := m.stack.push(b); rerr != ErrNone {
			return false, rerr
		}

	case codeAdd:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(a + b)
	case codeSub:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(a - b)
	case codeMul:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(a * b)
	case codeDiv:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		if b == 0 {
			return false, ErrDivisionByZero
		}
		m.stack.push(flooredDiv(a, b))
	case codeMod:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		if b == 0 {
			return false, ErrDivisionByZero
		}
		m.stack.push(euclidMod(a, b))
	case codeDivMod:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		if b == 0 {
			return false, ErrDivisionByZero
		}
		m.stack.push(euclidMod(a, b))
		m.stack.push(flooredDiv(a, b))

	case codeNegate:
		v, rerr := m.stack.peek()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.pokeTop(-v)
	case codeAdd1:
		v, rerr := m.stack.peek()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.pokeTop(v + 1)
	case codeSub1:
		v, rerr := m.stack.peek()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.pokeTop(v - 1)
	case codeAbs:
		v, rerr := m.stack.peek()
		if rerr != ErrNone {
			return false, rerr
		}
		if v < 0 {
			v = -v
		}
		m.stack.pokeTop(v)

	case codeMin:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		if a < b {
			m.stack.push(a)
		} else {
			m.stack.push(b)
		}
	case codeMax:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		if a > b {
			m.stack.push(a)
		} else {
			m.stack.push(b)
		}

	case codeEq:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(boolInt(a == b))
	case codeNe:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(boolInt(a != b))
	case codeGt:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(boolInt(a > b))
	case codeGe:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(boolInt(a >= b))
	case codeLt:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(boolInt(a < b))
	case codeLe:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(boolInt(a <= b))
	case codeEq0:
		v, rerr := m.stack.peek()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.pokeTop(boolInt(v == 0))

	case codeInvert:
		v, rerr := m.stack.peek()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.pokeTop(^v)
	case codeAnd:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(a & b)
	case codeOr:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(a | b)
	case codeXor:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(a ^ b)
	case codeLshift:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(a << uint(b))
	case codeRshift:
		a, b, rerr := m.stack.pop2()
		if rerr != ErrNone {
			return false, rerr
		}
		m.stack.push(a >> uint(b))

	case codeFalse:
		if rerr := m.stack.push(0); rerr != ErrNone {
			return false, rerr
		}
	case codeTrue:
		if rerr := m.stack.push(-1); rerr != ErrNone {
			return false, rerr
		}
	}
	return false, nil
}
