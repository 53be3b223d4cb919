// main.go - guestmon: an interactive single-step monitor
//
// A command-line register/breakpoint inspector in the style of the
// teacher's Machine Monitor (debug_commands.go's ParseCommand/
// ParseAddress, debug_cpu_x86.go's register dump), scaled down to the
// eight general-purpose registers this module's CPU models. Uses
// golang.org/x/term for a raw-mode line-editing prompt rather than a
// bare bufio.Scanner, the way a real interactive monitor earns its
// keep (history, ^C handling) instead of reimplementing line editing.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/guestvm/x86run/internal/guestvm"
)

// monitorCommand is a parsed command name plus arguments - the
// teacher's MonitorCommand, trimmed to what this monitor needs.
type monitorCommand struct {
	name string
	args []string
}

func parseCommand(input string) monitorCommand {
	input = strings.TrimSpace(input)
	if input == "" {
		return monitorCommand{}
	}
	parts := strings.Fields(input)
	return monitorCommand{name: strings.ToLower(parts[0]), args: parts[1:]}
}

// parseAddress accepts $hex, 0xhex, bare hex, or #decimal, mirroring
// the teacher's ParseAddress formats.
func parseAddress(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, "#") {
		v, err := strconv.ParseUint(s[1:], 10, 32)
		return uint32(v), err == nil
	}
	if strings.HasPrefix(s, "$") {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		return uint32(v), err == nil
	}
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err == nil
}

func main() {
	loadAddr := flag.Uint("load-addr", 0x10000, "address to load the program image at")
	entry := flag.Uint("entry", 0x10000, "initial EIP")
	memSize := flag.Uint("mem", 16<<20, "guest address space size in bytes")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: guestmon [options] program.bin")
		os.Exit(1)
	}

	image, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	mem := guestvm.NewFlatMemory(uint32(*memSize))
	if err := mem.Load(uint32(*loadAddr), image); err != nil {
		fmt.Fprintf(os.Stderr, "error loading program: %v\n", err)
		os.Exit(1)
	}
	cpu := guestvm.NewCPU(mem)
	cpu.EIP = uint32(*entry)
	cpu.Regs[guestvm.RegESP] = uint32(*memSize)
	fds := guestvm.NewFdTable()

	breakpoints := make(map[uint32]bool)

	stdinFD := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFD) {
		oldState, err := term.MakeRaw(stdinFD)
		if err == nil {
			defer term.Restore(stdinFD, oldState)
		}
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "(guestmon) ")

	printRegisters(t, cpu)
	for {
		line, err := t.ReadLine()
		if err != nil {
			return
		}
		cmd := parseCommand(line)
		switch cmd.name {
		case "":
			continue
		case "q", "quit":
			return
		case "r", "regs":
			printRegisters(t, cpu)
		case "s", "step":
			n := 1
			if len(cmd.args) == 1 {
				if v, err := strconv.Atoi(cmd.args[0]); err == nil {
					n = v
				}
			}
			for i := 0; i < n; i++ {
				if !step(t, cpu) {
					break
				}
			}
			printRegisters(t, cpu)
		case "c", "cont":
			for {
				if breakpoints[cpu.EIP] {
					fmt.Fprintf(t, "breakpoint hit at eip=0x%08x\n", cpu.EIP)
					break
				}
				if !step(t, cpu) {
					break
				}
			}
			printRegisters(t, cpu)
		case "b", "break":
			if len(cmd.args) != 1 {
				fmt.Fprintln(t, "usage: break <addr>")
				continue
			}
			addr, ok := parseAddress(cmd.args[0])
			if !ok {
				fmt.Fprintln(t, "bad address")
				continue
			}
			breakpoints[addr] = true
			fmt.Fprintf(t, "breakpoint set at 0x%08x\n", addr)
		case "socketcall":
			syscallNum := cpu.Regs[guestvm.RegEAX]
			fmt.Fprintf(t, "eax=%d (socketcall dispatch happens inside run loop, not from the monitor)\n", syscallNum)
			_ = fds
		default:
			fmt.Fprintf(t, "unknown command %q\n", cmd.name)
		}
	}
}

// step executes one instruction, printing and returning false on a
// terminal condition (undefined opcode or fault). An interrupt is
// printed but not dispatched, and stepping continues past it.
func step(t *term.Terminal, cpu *guestvm.CPU) bool {
	vector, err := cpu.Step()
	if err != nil {
		fmt.Fprintf(t, "fault: %v\n", err)
		return false
	}
	switch vector {
	case guestvm.IntNone:
		return true
	case guestvm.IntUndefined:
		fmt.Fprintf(t, "undefined opcode at eip=0x%08x\n", cpu.EIP)
		return false
	default:
		fmt.Fprintf(t, "interrupt 0x%02x at eip=0x%08x (not dispatched by the monitor)\n", vector, cpu.EIP)
		return true
	}
}

func printRegisters(w io.Writer, cpu *guestvm.CPU) {
	for i, name := range guestvm.RegNames32 {
		fmt.Fprintf(w, "%-4s=0x%08x  ", strings.ToUpper(name), cpu.Regs[i])
		if i%4 == 3 {
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "\nEIP =0x%08x\n", cpu.EIP)
}
