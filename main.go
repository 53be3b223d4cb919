// main.go - guestrun entry point (§4.10)
//
// Loads a flat 32-bit x86 binary image, wires up a CPU, an FD table,
// and the socketcall dispatcher, and drives the run loop. Follows the
// teacher's flag.FlagSet CLI idiom (cmd/ie32to64/main.go) rather than
// a third-party CLI framework, since the teacher never reaches for one
// anywhere in its own cmd/ tree.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/guestvm/x86run/internal/guestvm"
)

func main() {
	memSize := flag.Uint("mem", 16<<20, "guest address space size in bytes")
	loadAddr := flag.Uint("load-addr", 0x10000, "address to load the program image at")
	entry := flag.Uint("entry", 0x10000, "initial EIP")
	stackTop := flag.Uint("stack", 0, "initial ESP (default: top of guest memory)")
	trace := flag.Bool("trace", false, "enable instruction and syscall tracing")
	ctrlSocket := flag.String("ctrl-socket", "", "if set, expose a read-only register/trace control socket at this path")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: guestrun [options] program.bin\n\nInterprets a flat 32-bit x86 program image, translating its socket\nsyscalls to the host.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	image, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	guestvm.SetTrace(*trace)

	mem := guestvm.NewFlatMemory(uint32(*memSize))
	if err := mem.Load(uint32(*loadAddr), image); err != nil {
		fmt.Fprintf(os.Stderr, "error loading program: %v\n", err)
		os.Exit(1)
	}

	cpu := guestvm.NewCPU(mem)
	cpu.EIP = uint32(*entry)
	if *stackTop != 0 {
		cpu.Regs[guestvm.RegESP] = uint32(*stackTop)
	} else {
		cpu.Regs[guestvm.RegESP] = uint32(*memSize)
	}

	fds := guestvm.NewFdTable()

	if *ctrlSocket != "" {
		ctrl, err := guestvm.NewControlServer(*ctrlSocket, cpu)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		ctrl.Start()
		defer ctrl.Stop()
	}

	if err := guestvm.Run(cpu, fds, nil); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
