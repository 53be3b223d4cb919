package guestvm

import "testing"

func TestStepMovImmToRegisterFixesDuplicateIndexBug(t *testing.T) {
	// 0xBD = mov ebp, imm32; the source's known bug routed 0xBD/0xBE/0xBF
	// all through ebx. opcode&7 must select ebp here, not ebx.
	cpu := newCPUWithCode(0xBD, 0x01, 0x00, 0x00, 0x00)
	vector, err := cpu.Step()
	if err != nil || vector != IntNone {
		t.Fatalf("Step() = (%d, %v), want (IntNone, nil)", vector, err)
	}
	if cpu.getReg32(RegEBP) != 1 {
		t.Fatalf("EBP = %d, want 1", cpu.getReg32(RegEBP))
	}
	if cpu.getReg32(RegEBX) != 0 {
		t.Fatalf("EBX = %d, want 0 (must not alias EBP's immediate)", cpu.getReg32(RegEBX))
	}
}

func TestStepMovEaxMoffsIn16BitModeStoresOnlyAX(t *testing.T) {
	mem := NewFlatMemory(4096)
	mem.WriteBytes(0, []byte{0x66, 0xA1, 0x10, 0x00, 0x00, 0x00})
	mem.WriteBytes(0x10, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	cpu := NewCPU(mem)
	cpu.setReg32(RegEAX, 0xAAAAAAAA)
	vector, err := cpu.Step()
	if err != nil || vector != IntNone {
		t.Fatalf("Step() = (%d, %v), want (IntNone, nil)", vector, err)
	}
	if got := cpu.getReg32(RegEAX); got != 0xAAAAFFFF {
		t.Fatalf("EAX = 0x%08x, want upper half preserved at 0xaaaaffff", got)
	}
}

func TestStepPushRegister(t *testing.T) {
	cpu := newCPUWithCode(0x50) // push eax
	cpu.Regs[RegESP] = 0x100
	cpu.setReg32(RegEAX, 0x42)
	vector, err := cpu.Step()
	if err != nil || vector != IntNone {
		t.Fatalf("Step() = (%d, %v), want (IntNone, nil)", vector, err)
	}
	if cpu.Regs[RegESP] != 0xFC {
		t.Fatalf("ESP = 0x%x, want 0xfc", cpu.Regs[RegESP])
	}
	v, err := memRead32(cpu.Mem, 0xFC)
	if err != nil || v != 0x42 {
		t.Fatalf("stack top = (%d, %v), want (0x42, nil)", v, err)
	}
}

func TestStepPushESPStoresPreDecrementValue(t *testing.T) {
	cpu := newCPUWithCode(0x54) // push esp
	cpu.Regs[RegESP] = 0x200
	if _, err := cpu.Step(); err != nil {
		t.Fatal(err)
	}
	v, err := memRead32(cpu.Mem, 0x1FC)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x200 {
		t.Fatalf("push esp stored %d, want the pre-decrement value 0x200", v)
	}
}

func TestStepLeaRejectsRegisterOperand(t *testing.T) {
	// 0x8D with mod=11 is illegal (lea requires a memory operand).
	cpu := newCPUWithCode(0x8D, 0xC0)
	vector, err := cpu.Step()
	if err != nil {
		t.Fatal(err)
	}
	if vector != IntUndefined {
		t.Fatalf("Step() vector = %d, want IntUndefined", vector)
	}
}

func TestStepLeaComputesAddressWithoutReadingMemory(t *testing.T) {
	// lea eax, [ebx+4] -> mod=01,reg=000,rm=011 (0x43), disp8=4
	cpu := newCPUWithCode(0x8D, 0x43, 0x04)
	cpu.setReg32(RegEBX, 0x1000)
	vector, err := cpu.Step()
	if err != nil || vector != IntNone {
		t.Fatalf("Step() = (%d, %v), want (IntNone, nil)", vector, err)
	}
	if got := cpu.getReg32(RegEAX); got != 0x1004 {
		t.Fatalf("EAX = 0x%x, want 0x1004", got)
	}
}

func TestStepSubImm8SignExtends(t *testing.T) {
	// 0x83 /5 sub r/m32, imm8: sub eax, -1 (0xFF) should add 1.
	cpu := newCPUWithCode(0x83, 0xE8, 0xFF) // mod=11,reg=101,rm=000 (eax)
	cpu.setReg32(RegEAX, 10)
	vector, err := cpu.Step()
	if err != nil || vector != IntNone {
		t.Fatalf("Step() = (%d, %v), want (IntNone, nil)", vector, err)
	}
	if got := cpu.getReg32(RegEAX); got != 11 {
		t.Fatalf("EAX = %d, want 11 (sub eax,-1)", got)
	}
}

func TestStepIntReturnsVector(t *testing.T) {
	cpu := newCPUWithCode(0xCD, 0x80)
	vector, err := cpu.Step()
	if err != nil {
		t.Fatal(err)
	}
	if vector != 0x80 {
		t.Fatalf("Step() vector = 0x%x, want 0x80", vector)
	}
}

func TestStepUndefinedOpcode(t *testing.T) {
	cpu := newCPUWithCode(0x0F) // not in this module's opcode set
	vector, err := cpu.Step()
	if err != nil {
		t.Fatal(err)
	}
	if vector != IntUndefined {
		t.Fatalf("Step() vector = %d, want IntUndefined", vector)
	}
}

func TestStepDoubled66PrefixRestoresWidth(t *testing.T) {
	// 0x66 0x66 0xB8 imm32 -> back to 32-bit mov eax, imm32.
	cpu := newCPUWithCode(0x66, 0x66, 0xB8, 0x78, 0x56, 0x34, 0x12)
	vector, err := cpu.Step()
	if err != nil || vector != IntNone {
		t.Fatalf("Step() = (%d, %v), want (IntNone, nil)", vector, err)
	}
	if got := cpu.getReg32(RegEAX); got != 0x12345678 {
		t.Fatalf("EAX = 0x%x, want 0x12345678", got)
	}
}
