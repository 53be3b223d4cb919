// sockcalls.go - socket syscall handlers (component G)
//
// One function per socketcall(2) subfunction, each translating guest
// arguments through sockabi.go/sockmarshal.go and issuing the real
// syscall via golang.org/x/sys/unix. Every handler returns a guest
// result: a non-negative value on success, a negated guest errno (via
// errnoMap) on failure - exactly what the run loop stores into EAX.

package guestvm

import "golang.org/x/sys/unix"

// sysSocket implements socket(family, type, protocol). Per the
// source's sys_socket: a SOCK_RAW/IPPROTO_RAW request is substituted
// with IPPROTO_ICMP ("this hack makes mtr work"), an AF_INET/DGRAM
// socket gets IP_STRIPHDR on hosts where that matters, and the
// (possibly substituted) protocol is recorded into the Fd's
// sockrestart state (the restart-retry policy does not read it).
func sysSocket(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	family := sockFamilyToReal(args[0])
	if family < 0 {
		return int32(_EAFNOSUPPORT)
	}
	typ := sockTypeToReal(args[1])
	if typ < 0 {
		return int32(_EPROTONOSUPPORT)
	}
	protocol := int32(args[2])
	if args[1] == SOCK_RAW_ && protocol == IPPROTO_RAW_ {
		protocol = IPPROTO_ICMP_
	}
	realFD, err := unix.Socket(family, typ, int(protocol))
	if err != nil {
		return errnoMap(err)
	}
	stripIPHeaderIfNeeded(realFD, family, typ)
	fd := sockFdCreate(realFD)
	fd.SockRestart.proto = protocol
	return int32(fds.FInstall(fd, 0))
}

// sysBind implements bind(fd, addr, addrlen).
func sysBind(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	sa, errno := guestSockaddrRead(mem, args[1], args[2])
	if errno != 0 {
		return errno
	}
	if err := unix.Bind(fd.RealFD, sa); err != nil {
		return errnoMap(err)
	}
	return 0
}

// sysConnect implements connect(fd, addr, addrlen).
func sysConnect(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	sa, errno := guestSockaddrRead(mem, args[1], args[2])
	if errno != 0 {
		return errno
	}
	if err := unix.Connect(fd.RealFD, sa); err != nil {
		return errnoMap(err)
	}
	return 0
}

// sysListen implements listen(fd, backlog) and marks the Fd eligible
// for the accept-restart protocol.
func sysListen(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	if err := unix.Listen(fd.RealFD, int(args[1])); err != nil {
		return errnoMap(err)
	}
	sockrestartBeginListen(fd)
	return 0
}

// sysAccept implements accept(fd, addr, addrlen), retrying a blocking
// accept() interrupted by EINTR per the socket-restart helper's policy
// (§4.3). If the guest-supplied address buffer can't be written back,
// the accepted connection is closed and -EFAULT returned rather than
// leaking an Fd the guest never learns the index of.
func sysAccept(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}

	sockrestartBeginListenWait(fd)
	defer sockrestartEndListenWait(fd)

	var realFD int
	var sa unix.Sockaddr
	for {
		var err error
		realFD, sa, err = unix.Accept(fd.RealFD)
		if err == unix.EINTR && sockrestartShouldRestartListenWait(fd) {
			continue
		}
		if err != nil {
			return errnoMap(err)
		}
		break
	}

	newFD := sockFdCreate(realFD)
	index := fds.FInstall(newFD, 0)

	if args[1] != 0 {
		if errno := guestSockaddrWrite(mem, args[1], args[2], sa); errno != 0 {
			fds.SysClose(index)
			return int32(_EFAULT)
		}
	}
	return int32(index)
}

// sysGetsockname implements getsockname(fd, addr, addrlen).
func sysGetsockname(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	sa, err := unix.Getsockname(fd.RealFD)
	if err != nil {
		return errnoMap(err)
	}
	return guestSockaddrWrite(mem, args[1], args[2], sa)
}

// sysGetpeername implements getpeername(fd, addr, addrlen).
func sysGetpeername(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	sa, err := unix.Getpeername(fd.RealFD)
	if err != nil {
		return errnoMap(err)
	}
	return guestSockaddrWrite(mem, args[1], args[2], sa)
}

// sysSocketpair implements socketpair(family, type, protocol, fds[2]).
// On the half-installed failure path (second FInstall can't fail in
// this module's table, but a write-back failure can) both new fds are
// closed in reverse order before returning, rather than leaking one.
func sysSocketpair(fdt *FdTable, mem GuestMemory, args [6]uint32) int32 {
	family := sockFamilyToReal(args[0])
	if family < 0 {
		return int32(_EAFNOSUPPORT)
	}
	typ := sockTypeToReal(args[1])
	if typ < 0 {
		return int32(_EPROTONOSUPPORT)
	}
	pair, err := unix.Socketpair(family, typ, int(args[2]))
	if err != nil {
		return errnoMap(err)
	}

	var cleanups []func()
	runCleanups := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	fd0 := sockFdCreate(pair[0])
	idx0 := fdt.FInstall(fd0, 0)
	cleanups = append(cleanups, func() { fdt.SysClose(idx0) })

	fd1 := sockFdCreate(pair[1])
	idx1 := fdt.FInstall(fd1, 0)
	cleanups = append(cleanups, func() { fdt.SysClose(idx1) })

	if err := memWrite32(mem, args[3], uint32(idx0)); err != nil {
		runCleanups()
		return int32(_EFAULT)
	}
	if err := memWrite32(mem, args[3]+4, uint32(idx1)); err != nil {
		runCleanups()
		return int32(_EFAULT)
	}
	return 0
}

// sysSendto implements send/sendto(fd, buf, len, flags[, addr, addrlen]).
func sysSendto(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	if args[2] > maxIovecBytes {
		return int32(_EMSGSIZE)
	}
	buf := make([]byte, args[2])
	if err := mem.ReadBytes(args[1], buf); err != nil {
		return int32(_EFAULT)
	}
	flags := sockFlagsToReal(args[3])

	var err error
	if args[4] != 0 {
		var sa unix.Sockaddr
		var errno int32
		sa, errno = guestSockaddrRead(mem, args[4], args[5])
		if errno != 0 {
			return errno
		}
		err = unix.Sendto(fd.RealFD, buf, flags, sa)
	} else {
		err = unix.Sendto(fd.RealFD, buf, flags, nil)
	}
	if err != nil {
		return errnoMap(err)
	}
	return int32(len(buf))
}

// sysRecvfrom implements recv/recvfrom(fd, buf, len, flags[, addr, addrlen]).
func sysRecvfrom(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	if args[2] > maxIovecBytes {
		return int32(_EMSGSIZE)
	}
	buf := make([]byte, args[2])
	flags := sockFlagsToReal(args[3])
	n, from, err := unix.Recvfrom(fd.RealFD, buf, flags)
	if err != nil {
		return errnoMap(err)
	}
	if err := mem.WriteBytes(args[1], buf[:n]); err != nil {
		return int32(_EFAULT)
	}
	if args[4] != 0 && from != nil {
		if errno := guestSockaddrWrite(mem, args[4], args[5], from); errno != 0 {
			return errno
		}
	}
	return int32(n)
}

// sysShutdown implements shutdown(fd, how).
func sysShutdown(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	if err := unix.Shutdown(fd.RealFD, int(args[1])); err != nil {
		return errnoMap(err)
	}
	return 0
}

// sysSetsockopt implements setsockopt(fd, level, optname, optval, optlen).
// ICMP6_FILTER and IP_MTU_DISCOVER are accepted and silently discarded
// (no-op compatibility shims): neither has a meaningful host-portable
// translation and real guests only ever set-and-forget them.
func sysSetsockopt(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	guestLevel, guestOpt := args[1], args[2]

	if guestLevel == IPPROTO_ICMPV6_ && guestOpt == ICMP6_FILTER_ {
		return 0
	}
	if guestLevel == IPPROTO_IP_ && guestOpt == IP_MTU_DISCOVER_ {
		return 0
	}

	level := sockLevelToReal(guestLevel)
	if level < 0 {
		return int32(_EINVAL)
	}
	opt := sockOptToReal(guestOpt, guestLevel)
	if opt < 0 {
		return int32(_EINVAL)
	}
	if args[4] != 4 {
		return int32(_EINVAL)
	}
	val, err := memRead32(mem, args[3])
	if err != nil {
		return int32(_EFAULT)
	}
	if err := unix.SetsockoptInt(fd.RealFD, level, opt, int(val)); err != nil {
		return errnoMap(err)
	}
	return 0
}

// sysGetsockopt implements getsockopt(fd, level, optname, optval, optlen).
// SO_TYPE is translated back through sockTypeFromReal so the guest
// sees its own ABI's SOCK_* numbering rather than the host's.
func sysGetsockopt(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	guestLevel, guestOpt := args[1], args[2]
	level := sockLevelToReal(guestLevel)
	if level < 0 {
		return int32(_EINVAL)
	}
	opt := sockOptToReal(guestOpt, guestLevel)
	if opt < 0 {
		return int32(_EINVAL)
	}
	val, err := unix.GetsockoptInt(fd.RealFD, level, opt)
	if err != nil {
		return errnoMap(err)
	}
	if guestLevel == SOL_SOCKET_ && guestOpt == SO_TYPE_ {
		val = sockTypeFromReal(val)
	}
	if err := memWrite32(mem, args[3], uint32(val)); err != nil {
		return int32(_EFAULT)
	}
	if err := memWrite32(mem, args[4], 4); err != nil {
		return int32(_EFAULT)
	}
	return 0
}

// sysSendmsg implements sendmsg(fd, msg, flags). Allocated scratch
// buffers are plain Go slices (nothing external to unwind on the error
// paths below, unlike the source's goto-based cleanup). The name is
// read first, then the iovecs; the msghdr's control buffer is not read
// and no ancillary data is sent.
func sysSendmsg(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	hdr, errno := guestReadMsghdr(mem, args[1])
	if errno != 0 {
		return errno
	}

	var sa unix.Sockaddr
	if hdr.Name != 0 && hdr.NameLen != 0 {
		sa, errno = guestSockaddrRead(mem, hdr.Name, hdr.NameLen)
		if errno != 0 {
			return errno
		}
	}

	iovecs, errno := guestReadIovecs(mem, hdr.Iov, hdr.IovLen)
	if errno != 0 {
		return errno
	}
	buf, errno := gatherIovecs(mem, iovecs)
	if errno != 0 {
		return errno
	}

	flags := sockFlagsToReal(args[2] | hdr.Flags)
	if errSend := unix.Sendto(fd.RealFD, buf, flags, sa); errSend != nil {
		return errnoMap(errSend)
	}
	return int32(len(buf))
}

// sysRecvmsg implements recvmsg(fd, msg, flags).
func sysRecvmsg(fds *FdTable, mem GuestMemory, args [6]uint32) int32 {
	fd := fds.FGet(int(args[0]))
	if fd == nil || !fd.IsSocket() {
		return int32(_EBADF)
	}
	hdr, errno := guestReadMsghdr(mem, args[1])
	if errno != 0 {
		return errno
	}
	iovecs, errno := guestReadIovecs(mem, hdr.Iov, hdr.IovLen)
	if errno != 0 {
		return errno
	}

	var total uint32
	for _, iov := range iovecs {
		total += iov.len
	}
	scratch := make([]byte, total)

	flags := sockFlagsToReal(args[2] | hdr.Flags)
	n, _, recvFlags, from, err := unix.Recvmsg(fd.RealFD, scratch, nil, flags)
	if err != nil {
		return errnoMap(err)
	}

	nScattered, errno := scatterIovecs(mem, iovecs, scratch[:n])
	if errno != 0 {
		return errno
	}

	if hdr.Name != 0 && from != nil {
		if errno := guestSockaddrWrite(mem, hdr.Name, args[1]+4, from); errno != 0 {
			return errno
		}
	}
	if errno := guestWriteMsgFlags(mem, args[1], sockFlagsFromReal(recvFlags)); errno != 0 {
		return errno
	}
	return int32(nScattered)
}
