package forthvm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocolumnar/forthvm"
)

func mustRun(t *testing.T, source string, inputs map[string]forthvm.InputStream) *forthvm.Machine {
	t.Helper()
	m, err := forthvm.New(source)
	require.NoError(t, err)
	if inputs == nil {
		inputs = map[string]forthvm.InputStream{}
	}
	err = m.Run(inputs)
	require.NoError(t, err)
	return m
}

func TestLiteralArithmetic(t *testing.T) {
	m := mustRun(t, "2 3 + 4 *", nil)
	assert.Equal(t, []int64{20}, m.Stack())
}

func TestFlooredDivision(t *testing.T) {
	m := mustRun(t, "-7 2 /", nil)
	assert.Equal(t, []int64{-4}, m.Stack())
}

func TestEuclideanModulo(t *testing.T) {
	m := mustRun(t, "-7 2 mod", nil)
	assert.Equal(t, []int64{1}, m.Stack())
}

func TestDoLoopSum(t *testing.T) {
	m := mustRun(t, "0 10 0 do i + loop", nil)
	assert.Equal(t, []int64{45}, m.Stack())
}

func TestTypedReadToOutput(t *testing.T) {
	source := `
input x
output out int32

5 x #i-> out
`
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = 0
	}
	// five little-endian int32s: 1,2,3,4,5
	for i := int32(0); i < 5; i++ {
		v := i + 1
		off := int(i) * 4
		raw[off] = byte(v)
	}
	m := mustRun(t, source, map[string]forthvm.InputStream{
		"x": forthvm.NewByteInput(raw),
	})
	out, ok := m.Output("out")
	require.True(t, ok)
	assert.Equal(t, int64(5), out.Len())
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, forthvm.Snapshot(out).([]int32))
}

func TestPauseResume(t *testing.T) {
	m, err := forthvm.New("1 pause 2 pause 3")
	require.NoError(t, err)
	require.NoError(t, m.Begin(map[string]forthvm.InputStream{}))

	require.NoError(t, m.Resume())
	assert.Equal(t, []int64{1}, m.Stack())
	assert.True(t, m.IsReady())

	require.NoError(t, m.Resume())
	assert.Equal(t, []int64{1, 2}, m.Stack())
	assert.True(t, m.IsReady())

	require.NoError(t, m.Resume())
	assert.Equal(t, []int64{1, 2, 3}, m.Stack())
	assert.True(t, m.IsDone())
}

func TestHaltIsStickyNotPanic(t *testing.T) {
	m, err := forthvm.New("1 halt 2")
	require.NoError(t, err)
	require.NoError(t, m.Run(map[string]forthvm.InputStream{}))
	assert.Equal(t, forthvm.ErrUserHalt, m.CurrentError())
	assert.Equal(t, []int64{1}, m.Stack())

	// The sticky error latches until Reset.
	err = m.Resume()
	assert.Equal(t, forthvm.ErrUserHalt, err)
	m.Reset()
	assert.Equal(t, forthvm.ErrNone, m.CurrentError())
}

func TestStackUnderflowIsARuntimeError(t *testing.T) {
	m, err := forthvm.New("+")
	require.NoError(t, err)
	err = m.Run(map[string]forthvm.InputStream{})
	assert.Equal(t, forthvm.ErrStackUnderflow, err)
}

func TestDivisionByZero(t *testing.T) {
	m, err := forthvm.New("1 0 /")
	require.NoError(t, err)
	err = m.Run(map[string]forthvm.InputStream{})
	assert.Equal(t, forthvm.ErrDivisionByZero, err)
}

func TestVariablePutGetInc(t *testing.T) {
	source := `
variable v
5 v !
3 v +!
v @
`
	m := mustRun(t, source, nil)
	assert.Equal(t, []int64{8}, m.Stack())
	v, ok := m.Variable("v")
	require.True(t, ok)
	assert.Equal(t, int64(8), v)
}

func TestIfThenElse(t *testing.T) {
	m := mustRun(t, "1 if 42 else 99 then", nil)
	assert.Equal(t, []int64{42}, m.Stack())

	m2 := mustRun(t, "0 if 42 else 99 then", nil)
	assert.Equal(t, []int64{99}, m2.Stack())
}

func TestWordDefinitionAndRecursion(t *testing.T) {
	source := `
: countdown dup 0 = if drop else 1 - recurse then ;
5 countdown
`
	m := mustRun(t, source, nil)
	assert.Equal(t, []int64{}, m.Stack())
}

func TestBeginUntil(t *testing.T) {
	source := `
variable n
0 n !
begin
  n @ 1+ n !
  n @ 5 =
until
n @
`
	m := mustRun(t, source, nil)
	assert.Equal(t, []int64{5}, m.Stack())
}

func TestExitUnwindsPastNestedStructuredControl(t *testing.T) {
	source := `
: foo
  5 0 do
    i 3 = if exit then
    i 100 + loop ;
99 foo
`
	m := mustRun(t, source, nil)
	assert.Equal(t, []int64{99, 100, 101, 102}, m.Stack())
}

func TestDoLoopPreTestsBounds(t *testing.T) {
	m := mustRun(t, "99 5 5 do i + loop", nil)
	assert.Equal(t, []int64{99}, m.Stack())
}

func TestTypedReadNativeWidth(t *testing.T) {
	raw := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	m := mustRun(t, "input x\nx n-> stack", map[string]forthvm.InputStream{
		"x": forthvm.NewByteInput(raw),
	})
	assert.Equal(t, []int64{0x0102030405060708}, m.Stack())
}

func TestTypedReadNativeWidthUnsignedBigEndian(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	m := mustRun(t, "input x\nx !N-> stack", map[string]forthvm.InputStream{
		"x": forthvm.NewByteInput(raw),
	})
	assert.Equal(t, []int64{0x0102030405060708}, m.Stack())
}

func TestCompileErrorReportsPosition(t *testing.T) {
	_, err := forthvm.New("1 2 bogusword")
	require.Error(t, err)
	cerr, ok := err.(*forthvm.CompileError)
	require.True(t, ok)
	assert.Equal(t, "bogusword", cerr.Snippet)
}
