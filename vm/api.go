package vm

import (
	"context"
	"errors"

	"github.com/ribbit-vm/ribvm/internal/panicerr"
)

// New builds an Interp with defaultOptions applied first, then opts. Call
// Load before Run.
func New(opts ...Option) *Interp {
	var i Interp
	defaultOptions.apply(&i)
	Options(opts...).apply(&i)
	return &i
}

// Run executes the loaded program to completion: a halt instruction, a call
// to the exit primitive, or a fatal error. It recovers goroutine panics and
// abnormal exits through panicerr the way every other entry point into this
// stack does, and treats an exit code of 0 as a clean, non-error return.
func (i *Interp) Run(ctx context.Context) error {
	err := panicerr.Recover("vm", func() error {
		return i.run(ctx)
	})
	if err == nil {
		return nil
	}
	var fe FatalError
	if errors.As(err, &fe) && fe.Code == ExitOK {
		return nil
	}
	return err
}

// ExitCode extracts the process exit code a Run error carries, or 0 if err
// is nil, or 1 for an error that isn't a FatalError (an unexpected panic
// recovered by panicerr, for instance).
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var fe FatalError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ExitRuntimeError
}
