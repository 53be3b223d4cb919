// errno.go - errno mapping (§4.8, nominally external errno_map)
//
// The guest ABI's errno numbers are part of the frozen wire format in
// §6 and must not drift with the host OS's own errno numbering (which
// differs between e.g. Linux and the BSD-family hosts golang.org/x/sys
// targets). errnoMap is the table from a host syscall.Errno, as
// surfaced by golang.org/x/sys/unix socket calls, to that guest
// numbering.

package guestvm

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Guest-ABI (Linux i386) errno numbers referenced by this module.
// Named with the leading underscore the source uses (_EINVAL etc.) to
// keep them visually distinct from host errno constants at call sites.
const (
	_EPERM   = -1
	_ENOENT  = -2
	_EBADF   = -9
	_EAGAIN  = -11
	_ENOMEM  = -12
	_EACCES  = -13
	_EFAULT  = -14
	_EBUSY   = -16
	_EEXIST  = -17
	_EINVAL  = -22
	_ENOSYS  = -38
	_EMSGSIZE = -90
	_EPROTONOSUPPORT = -93
	_EAFNOSUPPORT    = -97
	_EADDRINUSE      = -98
	_EADDRNOTAVAIL   = -99
	_ENOBUFS         = -105
	_EISCONN         = -106
	_ENOTCONN        = -107
	_ECONNREFUSED    = -111
	_ECONNRESET      = -104
	_EPIPE           = -32
	_EINTR           = -4
	_EIO             = -5
)

// errnoMap converts a host error (expected to wrap a unix.Errno, as
// every golang.org/x/sys/unix socket call in this module returns) into
// a negated guest errno - the source's errno_map(), which always
// returns the negated value ready to hand straight back to the guest.
func errnoMap(err error) int32 {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		strace("errno_map: non-errno error %v, mapping to EIO", err)
		return int32(_EIO)
	}
	if g, ok := hostErrnoToGuest[errno]; ok {
		return int32(g)
	}
	strace("errno_map: unmapped host errno %v, mapping to EIO", errno)
	return int32(_EIO)
}

var hostErrnoToGuest = map[unix.Errno]int{
	unix.EPERM:           _EPERM,
	unix.ENOENT:          _ENOENT,
	unix.EBADF:           _EBADF,
	unix.EAGAIN:          _EAGAIN,
	unix.ENOMEM:          _ENOMEM,
	unix.EACCES:          _EACCES,
	unix.EFAULT:          _EFAULT,
	unix.EBUSY:           _EBUSY,
	unix.EEXIST:          _EEXIST,
	unix.EINVAL:          _EINVAL,
	unix.ENOSYS:          _ENOSYS,
	unix.EMSGSIZE:        _EMSGSIZE,
	unix.EPROTONOSUPPORT: _EPROTONOSUPPORT,
	unix.EAFNOSUPPORT:    _EAFNOSUPPORT,
	unix.EADDRINUSE:      _EADDRINUSE,
	unix.EADDRNOTAVAIL:   _EADDRNOTAVAIL,
	unix.ENOBUFS:         _ENOBUFS,
	unix.EISCONN:         _EISCONN,
	unix.ENOTCONN:        _ENOTCONN,
	unix.ECONNREFUSED:    _ECONNREFUSED,
	unix.ECONNRESET:      _ECONNRESET,
	unix.EPIPE:           _EPIPE,
	unix.EINTR:           _EINTR,
	unix.EIO:             _EIO,
}
