package forthvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRejectsUnknownOutputDtype(t *testing.T) {
	_, err := compile("output out weird")
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "output dtype not recognized")
}

func TestCompileRejectsDuplicateWord(t *testing.T) {
	_, err := compile(": foo 1 ; : foo 2 ;")
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "already defined")
}

func TestCompileRejectsRecurseOutsideDefinition(t *testing.T) {
	_, err := compile("recurse")
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "outside a word definition")
}

func TestCompileBalancedComment(t *testing.T) {
	prog, err := compile("1 ( this (nested) comment is skipped ) 2 +")
	require.Nil(t, err)
	flat, offsets := prog.bytecodes()
	assert.Equal(t, []int32{codeLiteral, 1, codeLiteral, 2, codeAdd}, flat)
	assert.Equal(t, []int{0, len(flat)}, offsets)
}

func TestCompileLineComment(t *testing.T) {
	prog, err := compile("1 \\ ignored to end of line\n2")
	require.Nil(t, err)
	flat, _ := prog.bytecodes()
	assert.Equal(t, []int32{codeLiteral, 1, codeLiteral, 2}, flat)
}

func TestCompileVariableDeclaration(t *testing.T) {
	prog, err := compile("variable x x @")
	require.Nil(t, err)
	assert.Equal(t, []string{"x"}, prog.varNames)
	flat, _ := prog.bytecodes()
	assert.Equal(t, []int32{codeGet, 0}, flat)
}

func TestCompileOutputDeclaration(t *testing.T) {
	prog, err := compile("output samples float64")
	require.Nil(t, err)
	require.Len(t, prog.outs, 1)
	assert.Equal(t, "samples", prog.outs[0].name)
	assert.Equal(t, DtypeFloat64, prog.outs[0].dtype)
}
