package guestvm

import "testing"

func TestRunStopsOnUndefinedOpcode(t *testing.T) {
	cpu := newCPUWithCode(0xB8, 0x01, 0x00, 0x00, 0x00, 0x0F) // mov eax,1 ; undefined
	fds := NewFdTable()
	err := Run(cpu, fds, nil)
	if err == nil {
		t.Fatal("expected an ErrUndefinedOpcode")
	}
	if _, ok := err.(*ErrUndefinedOpcode); !ok {
		t.Fatalf("err = %T, want *ErrUndefinedOpcode", err)
	}
}

// TestRunDispatchesSocketcallToEAX builds the exact instruction stream
// the run loop's int 0x80 handler expects - eax carries the syscall
// number (102, socketcall), ebx the subfunction, ecx the argv pointer
// - and confirms dispatchInterrupt routes it through to a real
// socket() call, storing the new fd index back into EAX.
func TestRunDispatchesSocketcallToEAX(t *testing.T) {
	const argv = 0x100
	mem := NewFlatMemory(4096)
	memWrite32(mem, argv+0, PF_INET_)
	memWrite32(mem, argv+4, SOCK_STREAM_)
	memWrite32(mem, argv+8, 0)

	var prog []byte
	prog = append(prog, 0xB8, 0x66, 0x00, 0x00, 0x00) // mov eax, 102 (socketcall)
	prog = append(prog, 0xBB, 0x01, 0x00, 0x00, 0x00) // mov ebx, 1 (SYS_SOCKET)
	prog = append(prog, 0xB9, byte(argv), byte(argv>>8), byte(argv>>16), byte(argv>>24)) // mov ecx, argv
	prog = append(prog, 0xCD, 0x80)                                                      // int 0x80
	mem.WriteBytes(0, prog)

	cpu := NewCPU(mem)
	fds := NewFdTable()

	var vector int
	for i := 0; i < 3; i++ {
		v, err := cpu.Step()
		if err != nil {
			t.Fatal(err)
		}
		vector = v
	}
	v, err := cpu.Step()
	if err != nil {
		t.Fatal(err)
	}
	vector = v
	if vector != 0x80 {
		t.Fatalf("vector = %d, want 0x80", vector)
	}

	if err := dispatchInterrupt(cpu, fds, vector, nil); err != nil {
		t.Fatal(err)
	}
	if result := int32(cpu.getReg32(RegEAX)); result < 0 {
		t.Fatalf("socket() returned errno %d", result)
	}
}
