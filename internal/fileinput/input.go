// Package fileinput loads a queue of named byte sources for a CLI: each
// source becomes one whole in-memory buffer, addressed by the name it was
// given on the command line rather than by file position, since the
// engine's InputStream contract reads over a fixed buffer rather than a
// stream of runes.
package fileinput

import (
	"fmt"
	"io"
	"os"
)

// Named is one source: Name is the identifier a forthvm program declares
// with `input NAME`, and Path is where its bytes come from.
type Named struct {
	Name string
	Path string
}

// ParseFlag splits a "-input name=path" flag value into a Named source.
func ParseFlag(spec string) (Named, error) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			return Named{Name: spec[:i], Path: spec[i+1:]}, nil
		}
	}
	return Named{}, fmt.Errorf("fileinput: expected name=path, got %q", spec)
}

// Load reads every named source's file into memory and returns their
// contents keyed by name. It stops at the first read error.
func Load(sources []Named) (map[string][]byte, error) {
	out := make(map[string][]byte, len(sources))
	for _, src := range sources {
		data, err := readFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("fileinput: reading %q for input %q: %w", src.Path, src.Name, err)
		}
		out[src.Name] = data
	}
	return out, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
