// sockmarshal.go - guest sockaddr/msghdr marshalling (component F)
//
// Translates the guest's wire-format sockaddr and msghdr structures
// (§6) to and from golang.org/x/sys/unix's Sockaddr and host iovec/
// control-buffer representations. Every guest-supplied length is
// capped before any allocation happens, since Go has no VLAs and a
// hostile or buggy guest must not be able to force an unbounded
// allocation the way a raw C malloc(guest_len) would permit.

package guestvm

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// Size caps for guest-controlled lengths, per SPEC_FULL.md §6.
const (
	maxSockaddrLen = 128
	maxIovecBytes  = 4 << 20
	maxControlLen  = 4096
)

// guestSockaddrRead reads a guest sockaddr at addr/length len and
// returns the equivalent unix.Sockaddr - the source's sockaddr_read.
// AF_LOCAL is deliberately unsupported (guest Unix-domain paths are
// not addressable on the host in this module's model) and reported as
// ENOENT per SPEC_FULL.md §4.3 and DESIGN.md's AF_LOCAL resolution; any
// other unrecognized family is EINVAL.
func guestSockaddrRead(mem GuestMemory, addr uint32, length uint32) (unix.Sockaddr, int32) {
	if length < 2 || length > maxSockaddrLen {
		return nil, int32(_EINVAL)
	}
	buf := make([]byte, length)
	if err := mem.ReadBytes(addr, buf); err != nil {
		return nil, int32(_EFAULT)
	}
	family := binary.LittleEndian.Uint16(buf[0:2])
	switch int(family) {
	case PF_INET_:
		if length < 8 {
			return nil, int32(_EINVAL)
		}
		sa := &unix.SockaddrInet4{
			Port: int(binary.BigEndian.Uint16(buf[2:4])),
		}
		copy(sa.Addr[:], buf[4:8])
		return sa, 0
	case PF_INET6_:
		if length < 28 {
			return nil, int32(_EINVAL)
		}
		sa := &unix.SockaddrInet6{
			Port: int(binary.BigEndian.Uint16(buf[2:4])),
		}
		copy(sa.Addr[:], buf[8:24])
		return sa, 0
	case PF_LOCAL_:
		return nil, int32(_ENOENT)
	default:
		return nil, int32(_EINVAL)
	}
}

// guestSockaddrWrite encodes a host unix.Sockaddr into the guest
// buffer at addr, honoring the guest's declared buffer length lenAddr
// points at (the classic sockaddr/socklen_t in/out pair) - the
// source's sockaddr_write. If the guest buffer is too small the result
// is truncated and the full required length is still written back to
// lenAddr, matching real getsockname/accept semantics.
func guestSockaddrWrite(mem GuestMemory, addr uint32, lenAddr uint32, sa unix.Sockaddr) int32 {
	var encoded []byte
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		encoded = make([]byte, 16)
		binary.LittleEndian.PutUint16(encoded[0:2], uint16(sockFamilyFromReal(unix.AF_INET)))
		binary.BigEndian.PutUint16(encoded[2:4], uint16(v.Port))
		copy(encoded[4:8], v.Addr[:])
	case *unix.SockaddrInet6:
		encoded = make([]byte, 28)
		binary.LittleEndian.PutUint16(encoded[0:2], uint16(sockFamilyFromReal(unix.AF_INET6)))
		binary.BigEndian.PutUint16(encoded[2:4], uint16(v.Port))
		copy(encoded[8:24], v.Addr[:])
	default:
		return int32(_EINVAL)
	}

	guestLen, err := memRead32(mem, lenAddr)
	if err != nil {
		return int32(_EFAULT)
	}
	if guestLen > maxSockaddrLen {
		guestLen = maxSockaddrLen
	}
	toCopy := encoded
	if uint32(len(toCopy)) > guestLen {
		toCopy = toCopy[:guestLen]
	}
	if len(toCopy) > 0 {
		if err := mem.WriteBytes(addr, toCopy); err != nil {
			return int32(_EFAULT)
		}
	}
	if err := memWrite32(mem, lenAddr, uint32(len(encoded))); err != nil {
		return int32(_EFAULT)
	}
	return 0
}

// guestIovec is one element of a guest iovec array, after bounds
// checking, ready to be read into or written from a host []byte.
type guestIovec struct {
	base uint32
	len  uint32
}

// guestReadIovecs reads a guest iovec array (iov_base/iov_len pairs,
// 8 bytes each in the 32-bit ABI) at addr and returns the individual
// entries with the total bounded to maxIovecBytes - the scatter/gather
// half of the source's msghdr handling.
func guestReadIovecs(mem GuestMemory, addr uint32, count uint32) ([]guestIovec, int32) {
	if count > 1024 {
		return nil, int32(_EMSGSIZE)
	}
	out := make([]guestIovec, 0, count)
	var total uint64
	for i := uint32(0); i < count; i++ {
		entryAddr := addr + i*8
		base, err := memRead32(mem, entryAddr)
		if err != nil {
			return nil, int32(_EFAULT)
		}
		length, err := memRead32(mem, entryAddr+4)
		if err != nil {
			return nil, int32(_EFAULT)
		}
		total += uint64(length)
		if total > maxIovecBytes {
			return nil, int32(_EMSGSIZE)
		}
		out = append(out, guestIovec{base: base, len: length})
	}
	return out, 0
}

// gatherIovecs copies every guest iovec entry into one contiguous host
// buffer, for the write side of sendmsg.
func gatherIovecs(mem GuestMemory, iovecs []guestIovec) ([]byte, int32) {
	var total uint32
	for _, iov := range iovecs {
		total += iov.len
	}
	buf := make([]byte, 0, total)
	for _, iov := range iovecs {
		if iov.len == 0 {
			continue
		}
		chunk := make([]byte, iov.len)
		if err := mem.ReadBytes(iov.base, chunk); err != nil {
			return nil, int32(_EFAULT)
		}
		buf = append(buf, chunk...)
	}
	return buf, 0
}

// scatterIovecs distributes data from one contiguous host buffer back
// across the guest iovec entries, for the read side of recvmsg, and
// returns the number of bytes actually distributed.
func scatterIovecs(mem GuestMemory, iovecs []guestIovec, data []byte) (int, int32) {
	n := 0
	for _, iov := range iovecs {
		if len(data) == 0 {
			break
		}
		chunk := iov.len
		if uint32(len(data)) < chunk {
			chunk = uint32(len(data))
		}
		if chunk == 0 {
			continue
		}
		if err := mem.WriteBytes(iov.base, data[:chunk]); err != nil {
			return n, int32(_EFAULT)
		}
		data = data[chunk:]
		n += int(chunk)
	}
	return n, 0
}

// guestMsghdr mirrors the guest's 32-bit struct msghdr layout.
type guestMsghdr struct {
	Name       uint32
	NameLen    uint32
	Iov        uint32
	IovLen     uint32
	Control    uint32
	ControlLen uint32
	Flags      uint32
}

// guestReadMsghdr reads a msghdr structure out of guest memory at addr.
func guestReadMsghdr(mem GuestMemory, addr uint32) (guestMsghdr, int32) {
	var hdr guestMsghdr
	fields := []*uint32{&hdr.Name, &hdr.NameLen, &hdr.Iov, &hdr.IovLen, &hdr.Control, &hdr.ControlLen, &hdr.Flags}
	for i, f := range fields {
		v, err := memRead32(mem, addr+uint32(i*4))
		if err != nil {
			return guestMsghdr{}, int32(_EFAULT)
		}
		*f = v
	}
	if hdr.ControlLen > maxControlLen {
		return guestMsghdr{}, int32(_EMSGSIZE)
	}
	return hdr, 0
}

// guestWriteMsgFlags writes the translated msg_flags field back into a
// msghdr after recvmsg returns.
func guestWriteMsgFlags(mem GuestMemory, addr uint32, flags uint32) int32 {
	if err := memWrite32(mem, addr+24, flags); err != nil {
		return int32(_EFAULT)
	}
	return 0
}
