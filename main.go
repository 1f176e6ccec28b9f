/* Command ribvm decodes and runs a rib bytecode program: a compact graph of
three-field cells describing symbols, procedures and the instruction stream
that operates on them, in the style of the Ribbit Scheme VM. Decoding builds
the initial heap, symbol table and stack from a base-46 encoded string; the
interpreter loop then dispatches call, set, get, const, if and halt
instructions against it, triggering a compacting copying collection whenever
the heap doubles past its last recorded size.

By default the binary runs an embedded demonstration program; pass
-program <file> to run an encoded program read from disk instead, or feed
that program's own input on stdin (getchar and putchar speak directly to
stdin/stdout).
*/
package main

import (
	"context"
	"flag"
	"io/ioutil"
	"os"
	"time"

	"github.com/ribbit-vm/ribvm/internal/flushio"
	"github.com/ribbit-vm/ribvm/internal/logio"
	"github.com/ribbit-vm/ribvm/vm"
)

// defaultProgram is the scenario from spec.md's worked decode example: it
// exercises the symbol table, a handful of instructions and a clean halt.
const defaultProgram = `);'u?>vD?>vRD?>vRA?>vRA?>vR:?>vR=!(:lkm!':lkv6y`

func main() { os.Exit(run()) }

// run does the actual work and returns a process exit code, so that deferred
// cleanup (dump output, log unwrapping, context cancellation) always fires
// before the process exits -- os.Exit itself never runs a defer.
func run() int {
	var (
		memLimit  uint
		timeout   time.Duration
		trace     bool
		heapTrace bool
		dump      bool
		program   string
		tee       string
	)
	flag.UintVar(&memLimit, "mem-limit", 0, "cap the heap at this many live cells (0 means unbounded)")
	flag.DurationVar(&timeout, "timeout", 0, "specify a time limit")
	flag.BoolVar(&trace, "trace", false, "enable per-instruction trace logging")
	flag.BoolVar(&heapTrace, "heap-trace", false, "log heap size after each collection")
	flag.BoolVar(&dump, "dump", false, "print a heap/stack dump after execution")
	flag.StringVar(&program, "program", "", "path to an encoded program (default: the embedded demo program)")
	flag.StringVar(&tee, "tee", "", "additionally copy every putchar byte to this file")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer log.Close()

	source := defaultProgram
	if program != "" {
		b, err := ioutil.ReadFile(program)
		if err != nil {
			log.Errorf("%v", err)
			return vm.ExitRuntimeError
		}
		source = string(b)
	}

	out := flushio.NewWriteFlusher(os.Stdout)
	if tee != "" {
		f, err := os.Create(tee)
		if err != nil {
			log.Errorf("%v", err)
			return vm.ExitRuntimeError
		}
		defer f.Close()
		out = flushio.WriteFlushers(out, flushio.NewWriteFlusher(f))
	}

	i := vm.New(
		vm.WithLogf(log.Leveledf("TRACE")),
		vm.WithMemLimit(memLimit),
		vm.WithInput(os.Stdin),
		vm.WithOutput(out),
		vm.WithTrace(trace),
		vm.WithHeapTrace(heapTrace),
	)

	if dump {
		lw := &logio.Writer{Logf: log.Leveledf("DUMP")}
		defer lw.Close()
		defer i.Dump(lw)
	}

	if err := i.Load(source); err != nil {
		log.Errorf("%v", err)
		return vm.ExitRuntimeError
	}

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := i.Run(ctx)
	log.ErrorIf(err)
	return vm.ExitCode(err)
}
