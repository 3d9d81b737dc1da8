package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrProgramTooLarge is returned by Load. The VM is left as it was.
	ErrProgramTooLarge = errors.New("program too large")

	ErrOutOfBounds         = errors.New("memory access out of bounds")
	ErrStackOverflow       = errors.New("stack overflow")
	ErrStackUnderflow      = errors.New("stack underflow")
	ErrUnimplementedOpcode = errors.New("unimplemented opcode")
)

// Fault is the error returned by Step when an instruction cannot be
// executed. It wraps one of the sentinel errors above.
type Fault struct {
	Err    error
	PC     uint16 // address of the faulting instruction
	Opcode uint16 // zero when the fetch itself failed

	// Address is the start of the rejected memory access when Err is
	// ErrOutOfBounds, zero otherwise.
	Address uint16
}

func newFault(err error, pc, opcode uint16) *Fault {
	f := &Fault{
		Err:    err,
		PC:     pc,
		Opcode: opcode,
	}

	var be *boundsError
	if errors.As(err, &be) {
		f.Address = be.addr
	}

	return f
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at 0x%04x (opcode 0x%04X): %v", f.PC, f.Opcode, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err is (or wraps) a VM fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
