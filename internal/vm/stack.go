package vm

import "fmt"

// boundsError is an ErrOutOfBounds that remembers the rejected access.
type boundsError struct {
	addr uint16
	n    int
}

func (e *boundsError) Error() string {
	return fmt.Sprintf("%v: 0x%04x+%d", ErrOutOfBounds, e.addr, e.n)
}

func (e *boundsError) Unwrap() error {
	return ErrOutOfBounds
}

func (vm *VM) push(addr uint16) error {
	if int(vm.sp) >= StackSize {
		return fmt.Errorf("%w: depth %d", ErrStackOverflow, vm.sp)
	}

	vm.stack[vm.sp] = addr
	vm.sp++
	return nil
}

func (vm *VM) pop() (uint16, error) {
	if vm.sp == 0 {
		return 0, ErrStackUnderflow
	}

	vm.sp--
	return vm.stack[vm.sp], nil
}

// checkRange fails unless [addr, addr+n) lies inside memory.
func checkRange(addr uint16, n int) error {
	if int(addr)+n > MemorySize {
		return &boundsError{addr: addr, n: n}
	}
	return nil
}
