package vm

import (
	"context"
	"fmt"
	"log/slog"
)

// executeOpcode runs an already fetched opcode. pc has been advanced past it;
// at is the address it was fetched from.
func (vm *VM) executeOpcode(at, opcode uint16) error {
	instr := decode(opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", at),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", instr.Name(opcode),
		)
	}

	return instr.Execute(vm, opcode)
}

type instruction struct {
	Name    func(opcode uint16) string
	Execute func(vm *VM, opcode uint16) error
}

// Operand fields of an opcode
func opX(opcode uint16) uint8    { return uint8((opcode & 0x0F00) >> 8) }
func opY(opcode uint16) uint8    { return uint8((opcode & 0x00F0) >> 4) }
func opN(opcode uint16) uint8    { return uint8(opcode & 0x000F) }
func opKK(opcode uint16) uint8   { return uint8(opcode & 0x00FF) }
func opNNN(opcode uint16) uint16 { return opcode & 0x0FFF }

// decode maps every opcode to exactly one instruction. Opcodes that are not
// part of the instruction set decode to unknownInstruction.
func decode(opcode uint16) instruction {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode {
		case 0x0000:
			// 0000 - No operation
			return nopInstruction

		case 0x00E0:
			// 00E0 - Clear screen
			return clsInstruction

		case 0x00EE:
			// 00EE - Return from subroutine
			return rtsInstruction
		}

	case 0x1000:
		// 1NNN - Jumps to address NNN
		return jmpInstruction

	case 0x2000:
		// 2NNN - Calls subroutine at NNN
		return jsrInstruction

	case 0x3000:
		// 3XNN - Skips the next instruction if VX equals NN
		return skeq1Instruction

	case 0x4000:
		// 4XNN - Skips the next instruction if VX does not equal NN
		return skne1Instruction

	case 0x5000:
		// 5XY0 - Skips the next instruction if VX equals VY
		if opN(opcode) == 0 {
			return skeq2Instruction
		}

	case 0x6000:
		// 6XNN - Sets VX to NN
		return mov1Instruction

	case 0x7000:
		// 7XNN - Adds NN to VX, no carry
		return add1Instruction

	case 0x8000:
		// 8XY_
		switch opN(opcode) {
		case 0x0:
			// 8XY0 - Sets VX to the value of VY
			return mov2Instruction

		case 0x1:
			// 8XY1 - Sets VX to (VX OR VY)
			return orInstruction

		case 0x2:
			// 8XY2 - Sets VX to (VX AND VY)
			return andInstruction

		case 0x3:
			// 8XY3 - Sets VX to (VX XOR VY)
			return xorInstruction

		case 0x4:
			// 8XY4 - Adds VY to VX. VF is set to 1 when there's a carry, and to 0 when there isn't.
			return add2Instruction

		case 0x5:
			// 8XY5 - VY is subtracted from VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return subInstruction

		case 0x6:
			// 8XY6 - Shifts right by one. VF is set to the bit shifted out.
			return shrInstruction

		case 0x7:
			// 8XY7 - Sets VX to VY minus VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return rsbInstruction

		case 0xE:
			// 8XYE - Shifts left by one. VF is set to the bit shifted out.
			return shlInstruction
		}

	case 0x9000:
		// 9XY0 - Skips the next instruction if VX doesn't equal VY
		if opN(opcode) == 0 {
			return skne2Instruction
		}

	case 0xA000:
		// ANNN - Sets I to the address NNN
		return mviInstruction

	case 0xB000:
		// BNNN - Jumps to the address NNN plus V0
		return jmiInstruction

	case 0xC000:
		// CXNN - Sets VX to a random number, masked by NN
		return randInstruction

	case 0xD000:
		// DXYN - Draws an 8xN sprite read from I at (VX, VY). VF is set
		// to 1 if any lit pixel is turned off.
		return spriteInstruction

	case 0xE000:
		switch opKK(opcode) {
		case 0x9E:
			// EX9E - Skips the next instruction if the key stored in VX is pressed
			return skprInstruction

		case 0xA1:
			// EXA1 - Skips the next instruction if the key stored in VX isn't pressed
			return skupInstruction
		}

	case 0xF000:
		switch opKK(opcode) {
		case 0x07:
			// FX07 - Sets VX to the value of the delay timer
			return gdelayInstruction

		case 0x0A:
			// FX0A - A key press is awaited, and then stored in VX
			return keyInstruction

		case 0x15:
			// FX15 - Sets the delay timer to VX
			return sdelayInstruction

		case 0x18:
			// FX18 - Sets the sound timer to VX
			return ssoundInstruction

		case 0x1E:
			// FX1E - Adds VX to I
			return adiInstruction

		case 0x29:
			// FX29 - Sets I to the location of the font glyph for the
			// digit in VX
			return fontInstruction

		case 0x33:
			// FX33 - Stores the BCD representation of VX at I, I+1, I+2
			return bcdInstruction

		case 0x55:
			// FX55 - Stores V0 to VX in memory starting at address I
			return strInstruction

		case 0x65:
			// FX65 - Reads memory starting at address I into V0...VX
			return ldrInstruction
		}
	}

	return unknownInstruction
}

// skipIf advances past the next instruction when cond holds.
func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += InstructionSize
	}
}

// setFlagged writes VF and then VX. Both values are computed from the
// operands before either write, so when X is F the result wins.
func (vm *VM) setFlagged(vX uint8, result uint8, flag uint8) {
	vm.registers[0x0F] = flag
	vm.registers[vX] = result
}

func boolFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var (
	// 0000	nop
	nopInstruction = instruction{
		Name: func(opcode uint16) string {
			return "nop"
		},
		Execute: func(vm *VM, opcode uint16) error {
			return nil
		},
	}

	// 00E0	cls	Clear the screen
	clsInstruction = instruction{
		Name: func(opcode uint16) string {
			return "cls"
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.gfx.clear()
			vm.drawFlag = true
			return nil
		},
	}

	// 00EE	rts	return from subroutine call
	rtsInstruction = instruction{
		Name: func(opcode uint16) string {
			return "rts"
		},
		Execute: func(vm *VM, opcode uint16) error {
			addr, err := vm.pop()
			if err != nil {
				return err
			}
			vm.pc = addr
			return nil
		},
	}

	// 1xxx	jmp xxx	jump to address xxx
	jmpInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("jmp 0x%04x", opNNN(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.pc = opNNN(opcode)
			return nil
		},
	}

	// 2xxx	jsr xxx	jump to subroutine at address xxx
	jsrInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("jsr 0x%04x", opNNN(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			if err := vm.push(vm.pc); err != nil {
				return err
			}
			vm.pc = opNNN(opcode)
			return nil
		},
	}

	// 3rxx	skeq vr,xx	skip if register r = constant
	skeq1Instruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("skeq v%x, %d", opX(opcode), opKK(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.skipIf(vm.registers[opX(opcode)] == opKK(opcode))
			return nil
		},
	}

	// 4rxx	skne vr,xx	skip if register r <> constant
	skne1Instruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("skne v%x, %d", opX(opcode), opKK(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.skipIf(vm.registers[opX(opcode)] != opKK(opcode))
			return nil
		},
	}

	// 5ry0	skeq vr,vy	skip if register r = register y
	skeq2Instruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("skeq v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.skipIf(vm.registers[opX(opcode)] == vm.registers[opY(opcode)])
			return nil
		},
	}

	// 6rxx	mov vr,xx	move constant to register r
	mov1Instruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("mov v%x, %d", opX(opcode), opKK(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.registers[opX(opcode)] = opKK(opcode)
			return nil
		},
	}

	// 7rxx	add vr,xx	add constant to register r	No carry generated
	add1Instruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("add v%x, %d", opX(opcode), opKK(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.registers[opX(opcode)] += opKK(opcode)
			return nil
		},
	}

	// 8ry0	mov vr,vy	move register vy into vr
	mov2Instruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("mov v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.registers[opX(opcode)] = vm.registers[opY(opcode)]
			return nil
		},
	}

	// 8ry1	or rx,ry	or register vy into register vx
	orInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("or v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.logic(opcode, func(x, y uint8) uint8 { return x | y })
			return nil
		},
	}

	// 8ry2	and rx,ry	and register vy into register vx
	andInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("and v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.logic(opcode, func(x, y uint8) uint8 { return x & y })
			return nil
		},
	}

	// 8ry3	xor rx,ry	exclusive or register ry into register rx
	xorInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("xor v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.logic(opcode, func(x, y uint8) uint8 { return x ^ y })
			return nil
		},
	}

	// 8ry4	add vr,vy	add register vy to vr,carry in vf
	add2Instruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("add v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := opX(opcode)
			x := vm.registers[vX]
			y := vm.registers[opY(opcode)]

			sum := uint16(x) + uint16(y)
			vm.setFlagged(vX, uint8(sum), boolFlag(sum > 0xFF))
			return nil
		},
	}

	// 8ry5	sub vr,vy	subtract register vy from vr, vf set to 0 if it borrows
	subInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("sub v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := opX(opcode)
			x := vm.registers[vX]
			y := vm.registers[opY(opcode)]

			vm.setFlagged(vX, x-y, boolFlag(x >= y))
			return nil
		},
	}

	// 8ry6	shr vr	shift right, bit 0 goes into register vf
	shrInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("shr v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := opX(opcode)
			src := vm.shiftSource(opcode)

			vm.setFlagged(vX, src>>1, src&0x1)
			return nil
		},
	}

	// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr, vf set to 0 if it borrows
	rsbInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("rsb v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := opX(opcode)
			x := vm.registers[vX]
			y := vm.registers[opY(opcode)]

			vm.setFlagged(vX, y-x, boolFlag(y >= x))
			return nil
		},
	}

	// 8rye	shl vr	shift left, bit 7 goes into register vf
	shlInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("shl v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := opX(opcode)
			src := vm.shiftSource(opcode)

			vm.setFlagged(vX, src<<1, src>>7)
			return nil
		},
	}

	// 9ry0	skne vr,vy	skip if register r <> register y
	skne2Instruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("skne v%x, v%x", opX(opcode), opY(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.skipIf(vm.registers[opX(opcode)] != vm.registers[opY(opcode)])
			return nil
		},
	}

	// axxx	mvi xxx	Load index register with constant xxx
	mviInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("mvi 0x%04x", opNNN(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.index = opNNN(opcode)
			return nil
		},
	}

	// bxxx	jmi xxx	Jump to address xxx+register v0
	jmiInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("jmi 0x%04x", opNNN(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			offset := vm.registers[0]
			if vm.quirks.JumpUsesVX {
				offset = vm.registers[opX(opcode)]
			}
			vm.pc = opNNN(opcode) + uint16(offset)
			return nil
		},
	}

	// crxx	rand vr,xx	vr = random byte masked by xx
	randInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("rand v%x, %d", opX(opcode), opKK(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			x := uint8(vm.rng.UintN(256))
			vm.registers[opX(opcode)] = x & opKK(opcode)
			return nil
		},
	}

	// drys	sprite rx,ry,s	Draw sprite at screen location rx,ry height s
	// Sprites stored in memory at location in index register, 8 bits wide.
	// Wraps around the screen.
	// If when drawn, clears a pixel, vf is set to 1 otherwise it is zero.
	// All drawing is xor drawing (e.g. it toggles the screen pixels)
	spriteInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("sprite v%x, v%x, %d", opX(opcode), opY(opcode), opN(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			height := int(opN(opcode))
			if err := checkRange(vm.index, height); err != nil {
				return err
			}

			xLocation := int(vm.registers[opX(opcode)])
			yLocation := int(vm.registers[opY(opcode)])
			rows := vm.memory[vm.index : int(vm.index)+height]

			collision := vm.gfx.drawSprite(xLocation, yLocation, rows)

			vm.registers[0x0F] = boolFlag(collision)
			vm.drawFlag = true
			return nil
		},
	}

	// ek9e	skpr k	skip if key (register rk) pressed
	skprInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("skpr v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			key := Key(vm.registers[opX(opcode)])
			vm.skipIf(vm.IsKeyDown(key))
			return nil
		},
	}

	// eka1	skup k	skip if key (register rk) not pressed
	skupInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("skup v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			key := Key(vm.registers[opX(opcode)])
			vm.skipIf(!vm.IsKeyDown(key))
			return nil
		},
	}

	// fr07	gdelay vr	get delay timer into vr
	gdelayInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("gdelay v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.registers[opX(opcode)] = vm.delayTimer
			return nil
		},
	}

	// fr0a	key vr	wait for keypress, put key in register vr
	//
	// Execution is suspended until a key that was not already held goes
	// down. Step polls the keypad while suspended.
	keyInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("key v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.awaitingKey = true
			vm.awaitReg = opX(opcode)
			vm.awaitHeld = vm.keypad
			vm.keyEdges = [KeyCount]bool{}
			return nil
		},
	}

	// fr15	sdelay vr	set the delay timer to vr
	sdelayInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("sdelay v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.delayTimer = vm.registers[opX(opcode)]
			return nil
		},
	}

	// fr18	ssound vr	set the sound timer to vr
	ssoundInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("ssound v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.soundTimer = vm.registers[opX(opcode)]
			return nil
		},
	}

	// fr1e	adi vr	add register vr to the index register
	adiInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("adi v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.index += uint16(vm.registers[opX(opcode)])
			return nil
		},
	}

	// fr29	font vr	point I to the sprite for hexadecimal character in vr	Sprite is 5 bytes high
	fontInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("font v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.index = fontAddr(vm.registers[opX(opcode)])
			return nil
		},
	}

	// fr33	bcd vr	store the bcd representation of register vr at location I,I+1,I+2	Doesn't change I
	bcdInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("bcd v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			if err := checkRange(vm.index, 3); err != nil {
				return err
			}

			x := vm.registers[opX(opcode)]
			vm.memory[vm.index] = x / 100
			vm.memory[vm.index+1] = (x / 10) % 10
			vm.memory[vm.index+2] = x % 10
			return nil
		},
	}

	// fr55	str v0-vr	store registers v0-vr at location I onwards
	strInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("str v0-v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			n := uint16(opX(opcode))
			if err := checkRange(vm.index, int(n)+1); err != nil {
				return err
			}

			for i := uint16(0); i <= n; i++ {
				vm.memory[vm.index+i] = vm.registers[i]
			}

			if vm.quirks.LoadStoreIncrementsI {
				vm.index += n + 1
			}
			return nil
		},
	}

	// fr65	ldr v0-vr	load registers v0-vr from location I onwards
	ldrInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("ldr v0-v%x", opX(opcode))
		},
		Execute: func(vm *VM, opcode uint16) error {
			n := uint16(opX(opcode))
			if err := checkRange(vm.index, int(n)+1); err != nil {
				return err
			}

			for i := uint16(0); i <= n; i++ {
				vm.registers[i] = vm.memory[vm.index+i]
			}

			if vm.quirks.LoadStoreIncrementsI {
				vm.index += n + 1
			}
			return nil
		},
	}

	unknownInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("unknown 0x%04X", opcode)
		},
		Execute: func(vm *VM, opcode uint16) error {
			return fmt.Errorf("%w 0x%04X", ErrUnimplementedOpcode, opcode)
		},
	}
)

// logic runs one of the 8xy1/8xy2/8xy3 bitwise operations.
func (vm *VM) logic(opcode uint16, op func(x, y uint8) uint8) {
	vX := opX(opcode)
	result := op(vm.registers[vX], vm.registers[opY(opcode)])

	if vm.quirks.LogicResetsVF {
		vm.setFlagged(vX, result, 0)
		return
	}
	vm.registers[vX] = result
}

func (vm *VM) shiftSource(opcode uint16) uint8 {
	if vm.quirks.ShiftUsesVY {
		return vm.registers[opY(opcode)]
	}
	return vm.registers[opX(opcode)]
}
