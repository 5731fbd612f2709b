// Command forthvm compiles and runs a forthvm source program against zero
// or more named binary input files, printing its resulting stack,
// variables, and output buffers.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gocolumnar/forthvm"
	"github.com/gocolumnar/forthvm/internal/fileinput"
	"github.com/gocolumnar/forthvm/internal/flushio"
	"github.com/gocolumnar/forthvm/internal/logio"
	"github.com/gocolumnar/forthvm/internal/panicerr"
)

type inputFlags []fileinput.Named

func (f *inputFlags) String() string { return fmt.Sprint([]fileinput.Named(*f)) }

func (f *inputFlags) Set(spec string) error {
	named, err := fileinput.ParseFlag(spec)
	if err != nil {
		return err
	}
	*f = append(*f, named)
	return nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func main() {
	var (
		timeout    time.Duration
		trace      bool
		step       bool
		decompile  bool
		inputSpecs inputFlags
	)
	flag.DurationVar(&timeout, "timeout", 0, "stop the run after this long")
	flag.BoolVar(&trace, "trace", false, "log machine lifecycle events to stderr")
	flag.BoolVar(&step, "step", false, "single-step, printing each instruction")
	flag.BoolVar(&decompile, "decompile", false, "print the compiled program and exit")
	flag.Var(&inputSpecs, "input", "named binary input as name=path (repeatable)")
	flag.Parse()

	if err := run(flag.Args(), timeout, trace, step, decompile, inputSpecs); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %+v\n", err)
		os.Exit(1)
	}
}

func run(args []string, timeout time.Duration, trace, step, decompile bool, inputSpecs inputFlags) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: forthvm [flags] <source.forth>")
	}

	return panicerr.Recover("forthvm", func() error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var opts []forthvm.Option
		logger := &logio.Logger{}
		if trace {
			logger.SetOutput(nopWriteCloser{os.Stderr})
			opts = append(opts, forthvm.WithLogf(logger.Leveledf("TRACE")))
		}

		m, err := forthvm.New(string(source), opts...)
		if err != nil {
			return err
		}

		// stdout is buffered for the lifetime of the run (step traces can be
		// one Fprintln per instruction) and flushed once at the end, rather
		// than trusting the terminal/pipe to not block on every small write.
		out := flushio.NewWriteFlusher(os.Stdout)
		defer out.Flush()

		if decompile {
			fmt.Fprint(out, m.Decompiled())
			return nil
		}

		ctx := context.Background()
		if timeout != 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		inputs, err := loadInputs(ctx, inputSpecs)
		if err != nil {
			return err
		}

		if err := m.Begin(inputs); err != nil {
			return err
		}

		if err := drive(ctx, m, step, out); err != nil {
			out.Flush()
			return err
		}

		report(m, out)
		return nil
	})
}

// loadInputs reads every named input file concurrently: each is an
// independent, order-insensitive unit of I/O, so an errgroup fans them out
// and reports the first failure. Reads already started are not cancelled.
func loadInputs(ctx context.Context, specs inputFlags) (map[string]forthvm.InputStream, error) {
	if len(specs) == 0 {
		return map[string]forthvm.InputStream{}, nil
	}

	g, _ := errgroup.WithContext(ctx)
	data := make([][]byte, len(specs))
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			buf, err := os.ReadFile(spec.Path)
			if err != nil {
				return fmt.Errorf("reading %q for input %q: %w", spec.Path, spec.Name, err)
			}
			data[i] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inputs := make(map[string]forthvm.InputStream, len(specs))
	for i, spec := range specs {
		inputs[spec.Name] = forthvm.NewByteInput(data[i])
	}
	return inputs, nil
}

// drive runs m to completion, either by calling Resume again after every
// pause or, when -step is set, one instruction at a time with its own text
// printed as it goes.
// Either way ctx is checked between top-level actions so -timeout can cut
// a run short between instructions rather than mid-instruction.
func drive(ctx context.Context, m *forthvm.Machine, step bool, out flushio.WriteFlusher) error {
	for !m.IsDone() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if step {
			text := m.CurrentInstruction()
			if err := m.Step(); err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			continue
		}

		if err := m.Resume(); err != nil {
			return err
		}
		if m.CurrentError() == forthvm.ErrUserHalt {
			break
		}
		if !m.IsReady() {
			break
		}
		// Resume returned because the program paused; loop to resume again.
	}
	switch m.CurrentError() {
	case forthvm.ErrNone, forthvm.ErrDone, forthvm.ErrUserHalt:
		return nil
	default:
		return m.CurrentError()
	}
}

func report(m *forthvm.Machine, out flushio.WriteFlusher) {
	fmt.Fprintf(out, "stack: %v\n", m.Stack())
	for _, name := range m.VariableNames() {
		v, _ := m.Variable(name)
		fmt.Fprintf(out, "variable %s: %d\n", name, v)
	}
	for _, name := range m.OutputNames() {
		buf, _ := m.Output(name)
		fmt.Fprintf(out, "output %s (%s, len %d): %v\n", name, buf.Dtype(), buf.Len(), forthvm.Snapshot(buf))
	}
}
