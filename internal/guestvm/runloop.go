// runloop.go - run loop and syscall dispatch (component D, §4.5)
//
// Drives CPU.Step() to completion, routing int 0x80 to the socketcall
// path (the only syscall this module implements is the legacy
// multiplexed socketcall number) and every other interrupt vector to a
// pluggable TrapHandler, so a host embedding this module can still
// wire up the rest of the syscall table without this package knowing
// about it.

package guestvm

import "errors"

// Linux i386 syscall numbers this run loop recognizes directly.
const (
	sysSocketcall = 102
)

// TrapHandler is invoked for any interrupt vector the run loop doesn't
// own itself. Returning an error stops the run loop.
type TrapHandler func(c *CPU, vector int) error

// ErrExit is returned by a TrapHandler (or can be returned from Run's
// caller-supplied handler) to stop the run loop without it being
// treated as a failure.
var ErrExit = errors.New("guest requested exit")

// Run drives the fetch/decode/execute loop until Step reports an
// undefined opcode, a memory fault, or the trap handler returns
// ErrExit. fds is the FD table the socketcall dispatch borrows from.
func Run(c *CPU, fds *FdTable, trap TrapHandler) error {
	for {
		start := c.EIP
		vector, err := c.Step()
		if err != nil {
			return err
		}
		switch vector {
		case IntNone:
			continue
		case IntUndefined:
			op, _ := memRead8(c.Mem, start)
			for a := start + 1; op == 0x66 && a < c.EIP; a++ {
				op, _ = memRead8(c.Mem, a)
			}
			return &ErrUndefinedOpcode{Opcode: op, EIP: start}
		default:
			if err := dispatchInterrupt(c, fds, vector, trap); err != nil {
				if errors.Is(err, ErrExit) {
					return nil
				}
				return err
			}
		}
	}
}

// dispatchInterrupt handles int 0x80 (the only syscall vector this
// module understands on its own) and defers everything else to trap.
func dispatchInterrupt(c *CPU, fds *FdTable, vector int, trap TrapHandler) error {
	if vector != 0x80 {
		if trap == nil {
			return nil
		}
		return trap(c, vector)
	}

	syscallNum := c.getReg32(RegEAX)
	if syscallNum != sysSocketcall {
		if trap == nil {
			c.setReg32(RegEAX, uint32(_ENOSYS))
			return nil
		}
		return trap(c, vector)
	}

	sub := c.getReg32(RegEBX)
	argvAddr := c.getReg32(RegECX)

	var args [6]uint32
	arity := 0
	if h, ok := socketcallTable[sub]; ok {
		arity = h.arity
	}
	for i := 0; i < arity; i++ {
		v, err := memRead32(c.Mem, argvAddr+uint32(i*4))
		if err != nil {
			c.setReg32(RegEAX, uint32(int32(_EFAULT)))
			return nil
		}
		args[i] = v
	}

	result := Socketcall(fds, c.Mem, sub, args)
	c.setReg32(RegEAX, uint32(result))
	return nil
}
