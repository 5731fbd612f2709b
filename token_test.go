package forthvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeTracksLineAndCol(t *testing.T) {
	toks := tokenize("2 3 +\n4 *")
	require := []struct {
		text string
		line int
		col  int
	}{
		{"2", 1, 0},
		{"3", 1, 2},
		{"+", 1, 4},
		{"\n", 1, 5},
		{"4", 2, 0},
		{"*", 2, 2},
	}
	assert.Len(t, toks, len(require))
	for i, want := range require {
		assert.Equal(t, want.text, toks[i].Text, "token %d text", i)
		assert.Equal(t, want.line, toks[i].Line, "token %d line", i)
		assert.Equal(t, want.col, toks[i].Col, "token %d col", i)
	}
}

func TestTokenizeSkipsOtherWhitespace(t *testing.T) {
	toks := tokenize("1\t\r 2")
	assert.Len(t, toks, 2)
	assert.Equal(t, "1", toks[0].Text)
	assert.Equal(t, "2", toks[1].Text)
}

func TestIsInteger(t *testing.T) {
	cases := map[string]bool{
		"0":      true,
		"42":     true,
		"-7":     true,
		"+3":     true,
		"0x1F":   true,
		"0xg1":   false,
		"":       false,
		"-":      false,
		"12abc":  false,
		"1.5":    false,
	}
	for in, want := range cases {
		assert.Equal(t, want, isInteger(in), "isInteger(%q)", in)
	}
}

func TestParseIntegerHex(t *testing.T) {
	assert.Equal(t, int64(31), parseInteger("0x1F"))
	assert.Equal(t, int64(-31), parseInteger("-0x1F"))
	assert.Equal(t, int64(42), parseInteger("42"))
}
