package vm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	MaxProgramSize  = MemorySize - int(ProgramStart)
	InstructionSize = 2
)

type VM struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    uint16            // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	gfx      Display        // Graphics buffer
	keypad   [KeyCount]bool // Keypad
	drawFlag bool           // Indicates a draw has occurred

	// Fx0A state: the register receiving the key and the keys that were
	// already held when the wait began
	awaitingKey bool
	awaitReg    uint8
	awaitHeld   [KeyCount]bool

	// keys that went down since the wait began, kept even if released
	// before the next Step
	keyEdges [KeyCount]bool

	fault *Fault

	quirks Quirks
	rng    *rand.Rand
}

// Option configures a VM at construction time. Options survive Reset.
type Option func(*VM)

// WithQuirks selects the behavior of the ambiguous instructions.
func WithQuirks(q Quirks) Option {
	return func(vm *VM) {
		vm.quirks = q
	}
}

// WithRand sets the source used by Cxkk. Tests use a fixed seed.
func WithRand(src rand.Source) Option {
	return func(vm *VM) {
		vm.rng = rand.New(src)
	}
}

// New returns a VM with the font loaded and everything else zeroed.
func New(opts ...Option) *VM {
	vm := &VM{
		quirks: ModernQuirks,
	}

	for _, opt := range opts {
		opt(vm)
	}

	if vm.rng == nil {
		seed := uint64(time.Now().UnixNano())
		vm.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	vm.Reset()
	return vm
}

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

func (k Key) String() string {
	return fmt.Sprintf("%X", uint8(k)&0x0F)
}

// Reset returns the VM to the state New produces. Quirks and the random
// source are construction options and are kept.
func (vm *VM) Reset() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0

	// Clear the display
	vm.gfx.clear()
	vm.drawFlag = true

	// Clear the stack, keypad, and V registers
	vm.stack = [StackSize]uint16{}
	vm.keypad = [KeyCount]bool{}
	vm.registers = [RegisterCount]uint8{}

	// Clear memory and load font set
	vm.memory = [MemorySize]uint8{}
	copy(vm.memory[FontStart:], chip8Font[:])

	// Reset timers
	vm.delayTimer = 0
	vm.soundTimer = 0

	vm.awaitingKey = false
	vm.awaitReg = 0
	vm.awaitHeld = [KeyCount]bool{}
	vm.keyEdges = [KeyCount]bool{}

	vm.fault = nil
}

// Load copies a program into memory at ProgramStart. A program that does
// not fit is rejected and memory is left untouched.
func (vm *VM) Load(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrProgramTooLarge, len(program), MaxProgramSize)
	}

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))
	copy(vm.memory[ProgramStart:], program)
	return nil
}

// KeyDown marks a key as held.
func (vm *VM) KeyDown(key Key) {
	key &= 0x0F
	if !vm.keypad[key] {
		vm.keyEdges[key] = true
	}
	vm.keypad[key] = true
}

// KeyUp marks a key as released.
func (vm *VM) KeyUp(key Key) {
	vm.keypad[key&0x0F] = false
}

// SetKeys replaces the whole keypad state.
func (vm *VM) SetKeys(keys [KeyCount]bool) {
	for i, down := range keys {
		if down && !vm.keypad[i] {
			vm.keyEdges[i] = true
		}
	}
	vm.keypad = keys
}

// IsKeyDown reports whether key is held.
func (vm *VM) IsKeyDown(key Key) bool {
	return vm.keypad[key&0x0F]
}

// Step executes a single instruction. While the VM waits for a key (Fx0A)
// it only checks the keypad. A fault halts the VM; Step keeps returning the
// same fault until Reset.
func (vm *VM) Step() error {
	if vm.fault != nil {
		return vm.fault
	}

	if vm.awaitingKey {
		vm.pollKey()
		return nil
	}

	pc := vm.pc
	opcode, err := vm.fetchOpcode()
	if err != nil {
		return vm.halt(err, pc, 0)
	}

	if err := vm.executeOpcode(pc, opcode); err != nil {
		vm.pc = pc
		return vm.halt(err, pc, opcode)
	}

	return nil
}

func (vm *VM) halt(err error, pc, opcode uint16) error {
	vm.fault = newFault(err, pc, opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("halt", "pc", fmt.Sprintf("0x%04x", pc), "opcode", fmt.Sprintf("0x%04x", opcode), "err", err)
	}

	return vm.fault
}

// AdvanceTimers applies one 60Hz timer tick.
func (vm *VM) AdvanceTimers() {
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		vm.soundTimer--
	}
}

func (vm *VM) fetchOpcode() (uint16, error) {
	if err := checkRange(vm.pc, InstructionSize); err != nil {
		return 0, err
	}

	hi := vm.memory[vm.pc]
	lo := vm.memory[vm.pc+1]
	vm.pc += InstructionSize

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode, nil
}

// pollKey completes an Fx0A wait. A key counts if it went down after the
// wait began, even when it was released again before this Step.
func (vm *VM) pollKey() {
	for i := range vm.keypad {
		pressed := vm.keyEdges[i] || (vm.keypad[i] && !vm.awaitHeld[i])

		if !vm.keypad[i] {
			vm.awaitHeld[i] = false
		}

		if pressed {
			vm.registers[vm.awaitReg] = uint8(i)
			vm.awaitingKey = false
			vm.keyEdges = [KeyCount]bool{}
			return
		}
	}
}

// PC returns the program counter.
func (vm *VM) PC() uint16 { return vm.pc }

// Index returns the index register.
func (vm *VM) Index() uint16 { return vm.index }

// Register returns Vx. Only the low nibble of x is used.
func (vm *VM) Register(x uint8) uint8 { return vm.registers[x&0x0F] }

// StackPointer returns the number of return addresses on the stack.
func (vm *VM) StackPointer() uint16 { return vm.sp }

func (vm *VM) DelayTimer() uint8 { return vm.delayTimer }

// SoundTimer returns the sound timer. The host plays audio while it is
// non-zero.
func (vm *VM) SoundTimer() uint8 { return vm.soundTimer }

// Display returns a copy of the framebuffer.
func (vm *VM) Display() Display { return vm.gfx }

// Dirty reports whether the display changed since the last ClearDirty.
func (vm *VM) Dirty() bool { return vm.drawFlag }

func (vm *VM) ClearDirty() { vm.drawFlag = false }

// AwaitingKey reports whether execution is suspended by Fx0A.
func (vm *VM) AwaitingKey() bool { return vm.awaitingKey }

// Halted reports whether a fault stopped execution.
func (vm *VM) Halted() bool { return vm.fault != nil }

// Fault returns the fault that halted the VM, or nil.
func (vm *VM) Fault() *Fault { return vm.fault }

// Quirks returns the quirk profile the VM was built with.
func (vm *VM) Quirks() Quirks { return vm.quirks }
