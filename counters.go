package forthvm

import "time"

// counters tallies the machine's §4.7 instrumentation: instructions
// executed, bytes read, output elements written, and wall-clock time spent
// inside Run/Step/Resume/Call.
type counters struct {
	instructions int64
	reads        int64
	writes       int64
	nanoseconds  int64
}

func (c *counters) reset() {
	*c = counters{}
}

// timed runs f, accumulating its wall-clock duration into nanoseconds.
func (c *counters) timed(f func()) {
	start := time.Now()
	f()
	c.nanoseconds += time.Since(start).Nanoseconds()
}

// CountInstructions reports the number of instructions dispatched since
// the last Begin, Reset, or CountReset.
func (m *Machine) CountInstructions() int64 { return m.counts.instructions }

// CountReads reports the number of input bytes consumed since the last
// Begin, Reset, or CountReset.
func (m *Machine) CountReads() int64 { return m.counts.reads }

// CountWrites reports the number of output elements appended since the
// last Begin, Reset, or CountReset.
func (m *Machine) CountWrites() int64 { return m.counts.writes }

// CountNanoseconds reports wall-clock time spent executing since the last
// Begin, Reset, or CountReset.
func (m *Machine) CountNanoseconds() int64 { return m.counts.nanoseconds }

// CountReset zeroes every counter without otherwise disturbing machine
// state.
func (m *Machine) CountReset() { m.counts.reset() }
