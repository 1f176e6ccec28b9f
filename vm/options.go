package vm

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/ribbit-vm/ribvm/internal/flushio"
)

// Option configures an Interp before it runs, following the same
// flatten-and-apply functional-options shape used throughout this stack:
// each concrete option is its own unexported type, Options normalizes a
// variadic list of them into one, and New applies defaultOptions first so
// every field has a sane zero behavior before the caller's opts run.
type Option interface{ apply(i *Interp) }

var defaultOptions = Options(
	withInput(bytes.NewReader(nil)),
	withOutput(ioutil.Discard),
)

func Options(opts ...Option) Option {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(*Interp) {}

type options []Option

func (opts options) apply(i *Interp) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(i)
		}
	}
}

// WithInput sets the byte stream getchar reads from.
func WithInput(r io.Reader) Option { return withInput(r) }

// WithOutput sets the byte stream putchar writes to; it is wrapped in a
// flusher so putchar's "flush after every write" requirement holds
// regardless of what kind of writer is passed in.
func WithOutput(w io.Writer) Option { return withOutput(w) }

// WithLogf supplies a sink for trace and diagnostic lines (step traces, GC
// heap-size brackets, arity-mismatch reports); nil (the default) discards
// them silently.
func WithLogf(logfn func(mess string, args ...interface{})) Option { return withLogfn(logfn) }

// WithTrace enables per-instruction step tracing.
func WithTrace(on bool) Option { return traceOption(on) }

// WithHeapTrace enables GC heap-size bracket tracing, independent of
// per-instruction tracing.
func WithHeapTrace(on bool) Option { return heapTraceOption(on) }

// WithMemLimit caps the heap at limit cells, past which the interpreter
// fails with a fatal error instead of growing further. A limit of 0 (the
// default) means unbounded.
func WithMemLimit(limit uint) Option { return memLimitOption(limit) }

type inputOption struct{ io.Reader }
type outputOption struct{ io.Writer }
type withLogfn func(mess string, args ...interface{})
type traceOption bool
type heapTraceOption bool
type memLimitOption uint

func withInput(r io.Reader) inputOption   { return inputOption{r} }
func withOutput(w io.Writer) outputOption { return outputOption{w} }

func (o inputOption) apply(i *Interp) { i.in = o.Reader }

func (o outputOption) apply(i *Interp) { i.out = flushio.NewWriteFlusher(o.Writer) }

func (f withLogfn) apply(i *Interp) { i.logfn = f }

func (t traceOption) apply(i *Interp) { i.trace = bool(t) }

func (t heapTraceOption) apply(i *Interp) { i.traceHeap = bool(t) }

func (m memLimitOption) apply(i *Interp) { i.memLimit = uint(m) }
