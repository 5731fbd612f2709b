package forthvm

// Option configures a Machine at construction time, following the same
// functional-options shape used throughout this codebase's CLI and
// library surfaces.
type Option interface {
	apply(m *Machine)
}

type optionFunc func(m *Machine)

func (f optionFunc) apply(m *Machine) { f(m) }

// WithStackDepth bounds the data stack. Zero or negative keeps the default.
func WithStackDepth(max int) Option {
	return optionFunc(func(m *Machine) {
		if max > 0 {
			m.stackMax = max
		}
	})
}

// WithRecursionDepth bounds nested segment calls.
func WithRecursionDepth(max int) Option {
	return optionFunc(func(m *Machine) {
		if max > 0 {
			m.recursionMax = max
		}
	})
}

// WithOutputInitialSize sets the initial capacity every output buffer is
// allocated with in Begin.
func WithOutputInitialSize(n int64) Option {
	return optionFunc(func(m *Machine) {
		if n > 0 {
			m.outputInitialSize = n
		}
	})
}

// WithOutputResizeFactor sets the geometric growth factor every output
// buffer grows by.
func WithOutputResizeFactor(factor float64) Option {
	return optionFunc(func(m *Machine) {
		if factor > 1 {
			m.outputResizeFactor = factor
		}
	})
}

// WithLogf installs a logging callback invoked at notable lifecycle
// events (begin, halt, reset). A nil logf (the default) disables logging.
func WithLogf(logf func(mess string, args ...interface{})) Option {
	return optionFunc(func(m *Machine) {
		m.logf = logf
	})
}

var defaultOptions = []Option{
	WithStackDepth(1024),
	WithRecursionDepth(256),
	WithOutputInitialSize(1024),
	WithOutputResizeFactor(1.5),
}

func (m *Machine) apply(opts ...Option) {
	for _, opt := range defaultOptions {
		opt.apply(m)
	}
	for _, opt := range opts {
		opt.apply(m)
	}
}
