package forthvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompiledRendersSegmentsAndWords(t *testing.T) {
	m, err := New(": double dup + ; 3 double")
	require.NoError(t, err)
	out := m.Decompiled()
	assert.Contains(t, out, "segment 0:")
	assert.Contains(t, out, "(double)")
	assert.Contains(t, out, "dup")
	assert.Contains(t, out, "+")
}

func TestDecompiledTypedIOWord(t *testing.T) {
	m, err := New("input x output out int32 3 x #i-> out")
	require.NoError(t, err)
	out := m.Decompiled()
	assert.True(t, strings.Contains(out, "x #i-> out"), out)
}

func TestCurrentInstructionTracksExecution(t *testing.T) {
	m, err := New("1 2 +")
	require.NoError(t, err)
	require.NoError(t, m.Begin(nil))

	assert.Equal(t, "1", m.CurrentInstruction())
	require.NoError(t, m.Step())
	assert.Equal(t, "2", m.CurrentInstruction())
	require.NoError(t, m.Step())
	assert.Equal(t, "+", m.CurrentInstruction())
}

func TestBytecodesMatchesProgram(t *testing.T) {
	m, err := New("1 2 +")
	require.NoError(t, err)
	flat, offsets := m.Bytecodes()
	assert.Equal(t, []int32{codeLiteral, 1, codeLiteral, 2, codeAdd}, flat)
	assert.Equal(t, []int{0, len(flat)}, offsets)
}
