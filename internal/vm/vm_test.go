package vm

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func newTestVM(opts ...Option) *VM {
	opts = append([]Option{WithRand(rand.NewPCG(1, 2))}, opts...)
	return New(opts...)
}

// machineState is the observable state of a VM, without the construction
// options.
type machineState struct {
	memory      [MemorySize]uint8
	registers   [RegisterCount]uint8
	stack       [StackSize]uint16
	sp          uint16
	pc          uint16
	index       uint16
	delayTimer  uint8
	soundTimer  uint8
	gfx         Display
	keypad      [KeyCount]bool
	awaitingKey bool
	halted      bool
}

func stateOf(vm *VM) machineState {
	return machineState{
		memory:      vm.memory,
		registers:   vm.registers,
		stack:       vm.stack,
		sp:          vm.sp,
		pc:          vm.pc,
		index:       vm.index,
		delayTimer:  vm.delayTimer,
		soundTimer:  vm.soundTimer,
		gfx:         vm.gfx,
		keypad:      vm.keypad,
		awaitingKey: vm.awaitingKey,
		halted:      vm.fault != nil,
	}
}

func TestNew(t *testing.T) {
	vm := newTestVM()

	assert.Equal(t, ProgramStart, vm.PC())
	assert.Equal(t, uint16(0), vm.Index())
	assert.Equal(t, uint16(0), vm.StackPointer())
	assert.Equal(t, 0, vm.gfx.Lit())
	assert.False(t, vm.AwaitingKey())
	assert.False(t, vm.Halted())
	assert.True(t, vm.Dirty())

	for i, b := range chip8Font {
		assert.Equal(t, b, vm.memory[i])
	}
	for i := len(chip8Font); i < MemorySize; i++ {
		if vm.memory[i] != 0 {
			t.Fatalf("memory at 0x%04x not cleared", i)
		}
	}
}

func TestResetMatchesNew(t *testing.T) {
	fresh := newTestVM()
	vm := newTestVM()

	assert.NoError(t, vm.Load([]byte{0x60, 0x12, 0x22, 0x08, 0xF0, 0x0A}))
	vm.KeyDown(Key3)
	vm.registers[4] = 9
	vm.index = 0x300
	vm.delayTimer = 10
	vm.soundTimer = 20
	vm.gfx[5] = true
	assert.NoError(t, vm.push(0x222))
	assert.NoError(t, vm.Step())
	assert.NoError(t, vm.Step())

	vm.Reset()
	assert.Equal(t, stateOf(fresh), stateOf(vm))

	// a halted machine resets too
	vm.memory[ProgramStart] = 0xFF
	vm.memory[ProgramStart+1] = 0xFF
	assert.True(t, vm.Step() != nil)
	vm.Reset()
	assert.Equal(t, stateOf(fresh), stateOf(vm))
}

func TestLoad(t *testing.T) {
	vm := newTestVM()
	program := []byte{0x12, 0x34, 0xAB}

	assert.NoError(t, vm.Load(program))
	assert.Equal(t, uint8(0x12), vm.memory[0x200])
	assert.Equal(t, uint8(0x34), vm.memory[0x201])
	assert.Equal(t, uint8(0xAB), vm.memory[0x202])

	vm.Reset()
	assert.NoError(t, vm.Load(make([]byte, MaxProgramSize)))

	vm.Reset()
	err := vm.Load(make([]byte, MaxProgramSize+1))
	assert.True(t, errors.Is(err, ErrProgramTooLarge))
	assert.Equal(t, stateOf(newTestVM()), stateOf(vm))
}

func TestStackRoundTrip(t *testing.T) {
	vm := newTestVM()
	vm.sp = 3
	before := vm.StackPointer()

	addrs := []uint16{0x200, 0x2F0, 0x310, 0xABC}
	for _, a := range addrs {
		assert.NoError(t, vm.push(a))
	}

	for i := len(addrs) - 1; i >= 0; i-- {
		a, err := vm.pop()
		assert.NoError(t, err)
		assert.Equal(t, addrs[i], a)
	}

	assert.Equal(t, before, vm.StackPointer())
}

func TestStackLimits(t *testing.T) {
	vm := newTestVM()

	_, err := vm.pop()
	assert.True(t, errors.Is(err, ErrStackUnderflow))

	for i := 0; i < StackSize; i++ {
		assert.NoError(t, vm.push(uint16(i)))
	}
	assert.True(t, errors.Is(vm.push(0x123), ErrStackOverflow))
	assert.Equal(t, uint16(StackSize), vm.StackPointer())
}

func TestFetch(t *testing.T) {
	vm := newTestVM()
	assert.NoError(t, vm.Load([]byte{0xAB, 0xCD, 0xFF, 0xFF}))
	memory := vm.memory

	op, err := vm.fetchOpcode()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xABCD), op)
	assert.Equal(t, ProgramStart+2, vm.PC())

	op, err = vm.fetchOpcode()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xFFFF), op)
	assert.Equal(t, ProgramStart+4, vm.PC())

	assert.True(t, memory == vm.memory)
}

func TestFetchOutOfBounds(t *testing.T) {
	vm := newTestVM()
	vm.pc = MemorySize - 1

	err := vm.Step()
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	assert.True(t, vm.Halted())
	assert.Equal(t, uint16(MemorySize-1), vm.Fault().PC)
	assert.Equal(t, uint16(MemorySize-1), vm.Fault().Address)

	// a fetch from the last full word is fine
	vm.Reset()
	vm.pc = MemorySize - 2
	assert.NoError(t, vm.Step())
	assert.Equal(t, uint16(MemorySize), vm.PC())
	assert.True(t, errors.Is(vm.Step(), ErrOutOfBounds))
}

func TestFaultHaltsMachine(t *testing.T) {
	vm := newTestVM()
	assert.NoError(t, vm.Load([]byte{0x60, 0x01, 0x5A, 0xB1}))

	assert.NoError(t, vm.Step())
	err := vm.Step()

	var fault *Fault
	assert.True(t, errors.As(err, &fault))
	assert.True(t, errors.Is(err, ErrUnimplementedOpcode))
	assert.True(t, IsFault(err))
	assert.Equal(t, uint16(0x5AB1), fault.Opcode)
	assert.Equal(t, ProgramStart+2, fault.PC)
	assert.Equal(t, uint16(0), fault.Address)
	assert.Equal(t, ProgramStart+2, vm.PC())

	// stays halted
	assert.True(t, errors.Is(vm.Step(), ErrUnimplementedOpcode))
	assert.Equal(t, ProgramStart+2, vm.PC())
}

func TestAdvanceTimers(t *testing.T) {
	vm := newTestVM()
	vm.delayTimer = 3
	vm.soundTimer = 1

	vm.AdvanceTimers()
	assert.Equal(t, uint8(2), vm.DelayTimer())
	assert.Equal(t, uint8(0), vm.SoundTimer())

	for i := 0; i < 10; i++ {
		vm.AdvanceTimers()
	}
	assert.Equal(t, uint8(0), vm.DelayTimer())
	assert.Equal(t, uint8(0), vm.SoundTimer())
}

func TestKeys(t *testing.T) {
	vm := newTestVM()

	vm.KeyDown(KeyA)
	assert.True(t, vm.IsKeyDown(KeyA))
	vm.KeyUp(KeyA)
	assert.False(t, vm.IsKeyDown(KeyA))

	var keys [KeyCount]bool
	keys[KeyF] = true
	vm.SetKeys(keys)
	assert.True(t, vm.IsKeyDown(KeyF))
	assert.Equal(t, "F", KeyF.String())
}

func TestStepProgram(t *testing.T) {
	// draws the glyph for 7 at (2, 3), then loops forever
	program := []byte{
		0x60, 0x07, // mov v0, 7
		0xF0, 0x29, // font v0
		0x61, 0x02, // mov v1, 2
		0x62, 0x03, // mov v2, 3
		0xD1, 0x25, // sprite v1, v2, 5
		0x12, 0x0A, // jmp 0x20a
	}

	vm := newTestVM()
	assert.NoError(t, vm.Load(program))

	for i := 0; i < 10; i++ {
		assert.NoError(t, vm.Step())
	}

	assert.Equal(t, uint16(0x20A), vm.PC())
	assert.Equal(t, uint8(0), vm.Register(0xF))

	// top row of the 7 glyph is 0xF0
	d := vm.Display()
	for x := 0; x < 8; x++ {
		assert.Equal(t, x < 4, d.Pixel(2+x, 3))
	}
	assert.Equal(t, 4+1+1+1+1, d.Lit())
}
