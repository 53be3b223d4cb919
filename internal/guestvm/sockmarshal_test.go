package guestvm

import (
	"encoding/binary"
	"testing"

	"golang.org/x/sys/unix"
)

func TestGuestSockaddrRoundTripInet4(t *testing.T) {
	mem := NewFlatMemory(4096)
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], PF_INET_)
	binary.BigEndian.PutUint16(buf[2:4], 8080)
	copy(buf[4:8], []byte{127, 0, 0, 1})
	if err := mem.WriteBytes(0, buf); err != nil {
		t.Fatal(err)
	}

	sa, errno := guestSockaddrRead(mem, 0, 16)
	if errno != 0 {
		t.Fatalf("guestSockaddrRead returned errno %d", errno)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("sa = %T, want *unix.SockaddrInet4", sa)
	}
	if in4.Port != 8080 || in4.Addr != [4]byte{127, 0, 0, 1} {
		t.Fatalf("got %+v, want port=8080 addr=127.0.0.1", in4)
	}

	if err := mem.WriteBytes(100, make([]byte, 4)); err != nil {
		t.Fatal(err)
	}
	memWrite32(mem, 104, 16)
	if errno := guestSockaddrWrite(mem, 200, 104, sa); errno != 0 {
		t.Fatalf("guestSockaddrWrite returned errno %d", errno)
	}
	written := make([]byte, 16)
	mem.ReadBytes(200, written)
	if binary.BigEndian.Uint16(written[2:4]) != 8080 {
		t.Fatalf("round-tripped port = %d, want 8080", binary.BigEndian.Uint16(written[2:4]))
	}
}

func TestGuestSockaddrReadRejectsAFLocal(t *testing.T) {
	mem := NewFlatMemory(64)
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], PF_LOCAL_)
	mem.WriteBytes(0, buf)
	_, errno := guestSockaddrRead(mem, 0, 16)
	if errno != int32(_ENOENT) {
		t.Fatalf("errno = %d, want _ENOENT (%d)", errno, _ENOENT)
	}
}

func TestGuestSockaddrReadRejectsOversizeLength(t *testing.T) {
	mem := NewFlatMemory(4096)
	_, errno := guestSockaddrRead(mem, 0, maxSockaddrLen+1)
	if errno != int32(_EINVAL) {
		t.Fatalf("errno = %d, want _EINVAL (%d)", errno, _EINVAL)
	}
}

func TestGuestReadIovecsRejectsOversizeTotal(t *testing.T) {
	mem := NewFlatMemory(64)
	memWrite32(mem, 0, 1000)               // iov_base
	memWrite32(mem, 4, maxIovecBytes+1) // iov_len
	_, errno := guestReadIovecs(mem, 0, 1)
	if errno != int32(_EMSGSIZE) {
		t.Fatalf("errno = %d, want _EMSGSIZE (%d)", errno, _EMSGSIZE)
	}
}

func TestGatherScatterIovecsRoundTrip(t *testing.T) {
	mem := NewFlatMemory(4096)
	mem.WriteBytes(100, []byte("hello "))
	mem.WriteBytes(200, []byte("world"))
	memWrite32(mem, 0, 100)
	memWrite32(mem, 4, 6)
	memWrite32(mem, 8, 200)
	memWrite32(mem, 12, 5)

	iovecs, errno := guestReadIovecs(mem, 0, 2)
	if errno != 0 {
		t.Fatal(errno)
	}
	gathered, errno := gatherIovecs(mem, iovecs)
	if errno != 0 {
		t.Fatal(errno)
	}
	if string(gathered) != "hello world" {
		t.Fatalf("gathered = %q, want %q", gathered, "hello world")
	}

	dst1, dst2 := make([]byte, 64), make([]byte, 64)
	mem.WriteBytes(300, dst1)
	mem.WriteBytes(400, dst2)
	memWrite32(mem, 0, 300)
	memWrite32(mem, 4, 6)
	memWrite32(mem, 8, 400)
	memWrite32(mem, 12, 5)
	iovecs2, errno := guestReadIovecs(mem, 0, 2)
	if errno != 0 {
		t.Fatal(errno)
	}
	n, errno := scatterIovecs(mem, iovecs2, gathered)
	if errno != 0 {
		t.Fatal(errno)
	}
	if n != 11 {
		t.Fatalf("scatterIovecs distributed %d bytes, want 11", n)
	}
	out := make([]byte, 6)
	mem.ReadBytes(300, out)
	if string(out) != "hello " {
		t.Fatalf("first iovec destination = %q, want %q", out, "hello ")
	}
}

func TestGuestReadMsghdrRejectsOversizeControl(t *testing.T) {
	mem := NewFlatMemory(64)
	memWrite32(mem, 20, maxControlLen+1) // control_len field
	_, errno := guestReadMsghdr(mem, 0)
	if errno != int32(_EMSGSIZE) {
		t.Fatalf("errno = %d, want _EMSGSIZE (%d)", errno, _EMSGSIZE)
	}
}
