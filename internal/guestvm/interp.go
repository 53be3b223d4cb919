// interp.go - fetch/decode/execute loop (component C)
//
// Ported from the teacher's cpu_step/AGAIN double-inclusion trick
// (cpu.go in the original source, cpu_x86.go's baseOps dispatch table
// in the Go teacher): rather than textually re-including this file
// with a macro redefined, the 32-bit and 16-bit operand-width variants
// are two ordinary Go functions, step32 and step16, each implementing
// the same opcode switch at its own width and tail-calling the other
// on the 0x66 operand-size prefix. Address size is always 32-bit,
// independent of the current operand width - modrm.go has no width
// parameter at all.

package guestvm

import "fmt"

// Interrupt/step result sentinels. Any other value 0..255 is a
// dispatchable interrupt vector (e.g. 0x80 for int 0x80).
const (
	IntNone      = -1
	IntUndefined = -2
)

// ErrUndefinedOpcode is surfaced by the run loop (not by Step itself)
// when a step returns IntUndefined, so a caller driving this module
// from a command-line entry point gets a typed error instead of an
// opaque sentinel leaking out of the package.
type ErrUndefinedOpcode struct {
	Opcode byte
	EIP    uint32
}

func (e *ErrUndefinedOpcode) Error() string {
	return fmt.Sprintf("undefined opcode 0x%02x at eip=0x%08x", e.Opcode, e.EIP)
}

// Step executes exactly one instruction at the CPU's current EIP,
// always starting at the 32-bit operand width (the primary
// interpreter in the source's terms). It returns IntNone to keep
// running, IntUndefined for an illegal encoding, or an interrupt
// vector 0..255 to dispatch.
func (c *CPU) Step() (int, error) {
	trace("step eip=0x%08x", c.EIP)
	return c.step32()
}

func (c *CPU) step32() (int, error) {
	opcode, err := c.fetch8()
	if err != nil {
		return 0, err
	}

	switch {
	case opcode >= 0x50 && opcode <= 0x57:
		// v is read before push32 mutates ESP, so push esp naturally
		// stores the pre-decrement value - no special case needed.
		v := c.getReg32(opcode & 7)
		return IntNone, c.push32(v)

	case opcode == 0x66:
		return c.step16()

	case opcode == 0x83:
		_, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		imm8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		v, err := c.readRM32(rm)
		if err != nil {
			return 0, err
		}
		v -= uint32(int32(int8(imm8)))
		return IntNone, c.writeRM32(rm, v)

	case opcode == 0x88:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		return IntNone, c.writeRM8(rm, c.getReg8(regField))

	case opcode == 0x89:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		return IntNone, c.writeRM32(rm, c.getReg32(regField))

	case opcode == 0x8A:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		v, err := c.readRM8(rm)
		if err != nil {
			return 0, err
		}
		c.setReg8(regField, v)
		return IntNone, nil

	case opcode == 0x8B:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		v, err := c.readRM32(rm)
		if err != nil {
			return 0, err
		}
		c.setReg32(regField, v)
		return IntNone, nil

	case opcode == 0x8D:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		if rm.kind == modReg {
			return IntUndefined, nil
		}
		c.setReg32(regField, rm.addr)
		return IntNone, nil

	case opcode == 0xA1:
		addr, err := c.fetch32()
		if err != nil {
			return 0, err
		}
		v, err := memRead32(c.Mem, addr)
		if err != nil {
			return 0, err
		}
		c.setReg32(RegEAX, v)
		return IntNone, nil

	case opcode >= 0xB8 && opcode <= 0xBF:
		imm, err := c.fetch32()
		if err != nil {
			return 0, err
		}
		c.setReg32(opcode&7, imm)
		return IntNone, nil

	case opcode == 0xC6:
		_, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		imm8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		return IntNone, c.writeRM8(rm, imm8)

	case opcode == 0xC7:
		_, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		imm, err := c.fetch32()
		if err != nil {
			return 0, err
		}
		return IntNone, c.writeRM32(rm, imm)

	case opcode == 0xCD:
		imm8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		return int(imm8), nil

	default:
		return IntUndefined, nil
	}
}

// step16 is the 16-bit operand-width instantiation of the same
// opcode set, entered via the 0x66 prefix in step32 and itself
// tail-calling step32 on a nested 0x66 (two consecutive prefixes
// restore the original width, matching the source's AGAIN-generated
// pair of mutually-recursive cpu_step32/cpu_step16).
func (c *CPU) step16() (int, error) {
	opcode, err := c.fetch8()
	if err != nil {
		return 0, err
	}

	switch {
	case opcode >= 0x50 && opcode <= 0x57:
		v := c.getReg16(opcode & 7)
		return IntNone, c.push16(v)

	case opcode == 0x66:
		return c.step32()

	case opcode == 0x83:
		_, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		imm8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		v, err := c.readRM16(rm)
		if err != nil {
			return 0, err
		}
		v -= uint16(int16(int8(imm8)))
		return IntNone, c.writeRM16(rm, v)

	case opcode == 0x88:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		return IntNone, c.writeRM8(rm, c.getReg8(regField))

	case opcode == 0x89:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		return IntNone, c.writeRM16(rm, c.getReg16(regField))

	case opcode == 0x8A:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		v, err := c.readRM8(rm)
		if err != nil {
			return 0, err
		}
		c.setReg8(regField, v)
		return IntNone, nil

	case opcode == 0x8B:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		v, err := c.readRM16(rm)
		if err != nil {
			return 0, err
		}
		c.setReg16(regField, v)
		return IntNone, nil

	case opcode == 0x8D:
		regField, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		if rm.kind == modReg {
			return IntUndefined, nil
		}
		c.setReg16(regField, uint16(rm.addr))
		return IntNone, nil

	case opcode == 0xA1:
		// The source always stores the full 32-bit eax here even in
		// 16-bit mode; this module honors W and stores into ax, per
		// the corrected reading documented in SPEC_FULL.md §9.
		addr, err := c.fetch32()
		if err != nil {
			return 0, err
		}
		v, err := memRead32(c.Mem, addr)
		if err != nil {
			return 0, err
		}
		c.setReg16(RegEAX, uint16(v))
		return IntNone, nil

	case opcode >= 0xB8 && opcode <= 0xBF:
		imm, err := c.fetch16()
		if err != nil {
			return 0, err
		}
		c.setReg16(opcode&7, imm)
		return IntNone, nil

	case opcode == 0xC6:
		_, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		imm8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		return IntNone, c.writeRM8(rm, imm8)

	case opcode == 0xC7:
		_, rm, err := c.decodeModRM()
		if err != nil {
			return 0, err
		}
		imm, err := c.fetch16()
		if err != nil {
			return 0, err
		}
		return IntNone, c.writeRM16(rm, imm)

	case opcode == 0xCD:
		imm8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		return int(imm8), nil

	default:
		return IntUndefined, nil
	}
}
