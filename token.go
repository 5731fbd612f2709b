package forthvm

import "strings"

// token is a single whitespace-delimited word from the source, or a
// standalone "\n" marking a line break. Line is 1-based, Col is the
// 0-based column of the token's first byte on its line.
type token struct {
	Text string
	Line int
	Col  int
}

// isSpace reports whether b is ASCII whitespace other than newline: the
// tokenizer treats newline as a token of its own so that comment and
// definition rules can see line boundaries.
func isSpace(b byte) bool {
	switch b {
	case ' ', '\r', '\t', '\v', '\f':
		return true
	}
	return false
}

// tokenize splits source into tokens, tracking (line, col) of each.
func tokenize(source string) []token {
	var toks []token
	line, col := 1, 0
	i := 0
	n := len(source)
	for i < n {
		c := source[i]
		switch {
		case c == '\n':
			toks = append(toks, token{Text: "\n", Line: line, Col: col})
			line++
			col = 0
			i++
		case isSpace(c):
			i++
			col++
		default:
			start := i
			startCol := col
			for i < n && source[i] != '\n' && !isSpace(source[i]) {
				i++
				col++
			}
			toks = append(toks, token{Text: source[start:i], Line: line, Col: startCol})
		}
	}
	return toks
}

// isInteger reports whether s parses as a decimal or 0x-prefixed hex
// integer literal, matching the original's is_integer.
func isInteger(s string) bool {
	if s == "" {
		return false
	}
	rest := s
	if rest[0] == '-' || rest[0] == '+' {
		rest = rest[1:]
	}
	if rest == "" {
		return false
	}
	if len(rest) > 2 && (strings.HasPrefix(rest, "0x") || strings.HasPrefix(rest, "0X")) {
		rest = rest[2:]
		if rest == "" {
			return false
		}
		for _, r := range rest {
			if !isHexDigit(byte(r)) {
				return false
			}
		}
		return true
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func parseInteger(s string) int64 {
	neg := false
	rest := s
	if rest[0] == '-' || rest[0] == '+' {
		neg = rest[0] == '-'
		rest = rest[1:]
	}
	var v int64
	if len(rest) > 2 && (strings.HasPrefix(rest, "0x") || strings.HasPrefix(rest, "0X")) {
		for _, r := range rest[2:] {
			v = v*16 + int64(hexDigitValue(byte(r)))
		}
	} else {
		for _, r := range rest {
			v = v*10 + int64(r-'0')
		}
	}
	if neg {
		v = -v
	}
	return v
}

func hexDigitValue(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	default:
		return int(b-'A') + 10
	}
}
