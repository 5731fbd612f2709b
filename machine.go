package forthvm

import (
	"fmt"

	"github.com/gocolumnar/forthvm/internal/panicerr"
)

// Machine is a compiled program together with all of its mutable runtime
// state: stacks, variables, inputs, outputs, and the sticky current error.
// A Machine is not safe for concurrent use; the execution model is
// single-threaded and cooperative (see Run/Step/Resume/Call).
type Machine struct {
	prog *program

	stackMax           int
	recursionMax       int
	outputInitialSize  int64
	outputResizeFactor float64
	logf               func(mess string, args ...interface{})

	stack     *dataStack
	recursion *recursionStack
	doLoops   *doStack
	variables []int64

	inputs    map[string]InputStream
	outputs   []typedOutput
	outByName map[string]int

	began        bool
	isReady      bool
	currentError RuntimeError
	counts       counters
}

// New tokenizes and compiles source, returning a *CompileError if it is
// malformed. The returned Machine is not yet ready to run; call Begin to
// supply inputs and start a session.
func New(source string, opts ...Option) (*Machine, error) {
	prog, cerr := compile(source)
	if cerr != nil {
		return nil, cerr
	}
	m := &Machine{prog: prog}
	m.apply(opts...)
	m.resetState()
	return m, nil
}

func (m *Machine) logfn(mess string, args ...interface{}) {
	if m.logf != nil {
		m.logf(mess, args...)
	}
}

func (m *Machine) resetState() {
	m.stack = newDataStack(m.stackMax)
	m.recursion = newRecursionStack(m.recursionMax)
	m.doLoops = newDoStack()
	m.variables = make([]int64, len(m.prog.varNames))
	m.isReady = false
	m.currentError = ErrNone
	m.counts.reset()
}

// Reset clears all runtime state (stacks, variables, outputs, inputs, the
// sticky error) so the Machine can be used for a fresh Begin. The compiled
// program itself is untouched.
func (m *Machine) Reset() {
	m.resetState()
	m.began = false
	m.inputs = nil
	m.outputs = nil
	m.outByName = nil
	m.logfn("reset")
}

// IsReady reports whether Begin has been called and the machine has not
// yet halted, errored, or run to completion.
func (m *Machine) IsReady() bool { return m.isReady }

// IsDone reports whether the machine has no more instructions to execute:
// either it finished normally, or it is latched on a sticky error.
func (m *Machine) IsDone() bool {
	return !m.isReady && m.currentError != ErrNone
}

// CurrentError reports the machine's sticky error, or ErrNone if it is
// healthy.
func (m *Machine) CurrentError() RuntimeError { return m.currentError }

// Stack returns a snapshot of the data stack, bottom first.
func (m *Machine) Stack() []int64 { return m.stack.snapshot() }

// Variable returns the current value of a declared variable by name.
func (m *Machine) Variable(name string) (int64, bool) {
	idx, ok := m.prog.varIndex[name]
	if !ok {
		return 0, false
	}
	return m.variables[idx], true
}

// VariableNames returns every variable name the program declared, in
// declaration order.
func (m *Machine) VariableNames() []string { return m.prog.varNames }

// OutputNames returns every output name the program declared, in
// declaration order.
func (m *Machine) OutputNames() []string {
	names := make([]string, len(m.prog.outs))
	for i, decl := range m.prog.outs {
		names[i] = decl.name
	}
	return names
}

// Output returns the named declared output buffer, if one exists and
// Begin has run.
func (m *Machine) Output(name string) (OutputBuffer, bool) {
	idx, ok := m.outByName[name]
	if !ok || m.outputs == nil {
		return nil, false
	}
	return m.outputs[idx], true
}

// Begin allocates fresh output buffers, binds the supplied named input
// streams, and readies the machine to Run/Step starting from the
// top-level segment. inputs must provide every name the program declared
// with `input`; extra names are accepted.
func (m *Machine) Begin(inputs map[string]InputStream) error {
	for _, name := range m.prog.inNames {
		if _, ok := inputs[name]; !ok {
			return fmt.Errorf("forthvm: missing input %q", name)
		}
	}
	m.resetState()
	m.inputs = inputs

	m.outputs = make([]typedOutput, len(m.prog.outs))
	m.outByName = make(map[string]int, len(m.prog.outs))
	for i, decl := range m.prog.outs {
		m.outputs[i] = newOutput(decl.dtype, m.outputInitialSize, m.outputResizeFactor)
		m.outByName[decl.name] = i
	}

	m.recursion.push(frame{segment: 0, where: 0})
	m.began = true
	m.isReady = true
	m.logfn("begin")
	return nil
}

// Run begins a fresh session over inputs and executes to completion
// (halt, error, or falling off the top-level segment).
func (m *Machine) Run(inputs map[string]InputStream) error {
	if err := m.Begin(inputs); err != nil {
		return err
	}
	return m.resume(false)
}

// notReadyError reports why the machine can't currently execute: either
// it never began a session, or its previously-latched sticky error (done,
// halted, or a runtime error) still stands until Reset.
func (m *Machine) notReadyError() error {
	if !m.began {
		return ErrNotReady
	}
	return m.currentError
}

// Resume continues a previously paused or begun session to completion.
func (m *Machine) Resume() error {
	if !m.isReady {
		return m.notReadyError()
	}
	return m.resume(false)
}

// Step executes exactly one instruction and returns.
func (m *Machine) Step() error {
	if !m.isReady {
		return m.notReadyError()
	}
	return m.resume(true)
}

// Call pushes a fresh call to the named dictionary word as a nested
// session bounded at the current recursion depth, and runs it to
// completion. It is typically used after Begin and before Resume, or after
// a pause, to invoke a word directly.
func (m *Machine) Call(name string) error {
	if !m.isReady {
		return m.notReadyError()
	}
	seg, ok := m.prog.dictionary[name]
	if !ok {
		return fmt.Errorf("forthvm: no such word %q", name)
	}
	targetDepth := m.recursion.depth()
	if rerr := m.recursion.push(frame{segment: seg, where: 0}); rerr != ErrNone {
		m.latch(rerr)
		return rerr
	}
	return m.runUntilDepth(targetDepth, false)
}

func (m *Machine) resume(singleStep bool) error {
	return m.runUntilDepth(0, singleStep)
}

// runUntilDepth is the sole entry point into dispatchLoop. It is wrapped in
// panicerr.Recover so that a programmer error deep in the dispatch switch
// (an index-out-of-range from a corrupted bytecode table, say) surfaces as
// an error from Run/Step/Resume/Call rather than crashing the host process.
// This is a defensive outer boundary only: halt and the sticky RuntimeError
// set are plain control flow, never panics.
func (m *Machine) runUntilDepth(targetDepth int, singleStep bool) error {
	var runErr error
	m.counts.timed(func() {
		runErr = panicerr.Recover("forthvm.dispatch", func() error {
			return m.dispatchLoop(targetDepth, singleStep)
		})
	})
	return runErr
}

// latch records err as the machine's sticky current error and marks it
// not ready, matching every other halting path through dispatchLoop.
func (m *Machine) latch(err RuntimeError) {
	m.currentError = err
	m.isReady = false
}
