// sockabi.go - ABI translation tables (component E)
//
// Guest-side numeric values are the frozen Linux i386 socket ABI
// (grounded on the netstack/fuchsia socket_types.go and gvisor
// host.go reference material in the retrieval pack); host-side values
// come from golang.org/x/sys/unix, which is how this module reaches
// real socket() / setsockopt() / etc. on whatever POSIX host it runs
// on without hand-declaring per-platform constants the way the
// fuchsia file above did by hand-extracting them from cgo.

package guestvm

import "golang.org/x/sys/unix"

// Guest (Linux i386) socket family constants.
const (
	PF_UNSPEC_ = 0
	PF_LOCAL_  = 1
	PF_INET_   = 2
	PF_INET6_  = 10
)

// Guest socket type constants.
const (
	SOCK_STREAM_ = 1
	SOCK_DGRAM_  = 2
	SOCK_RAW_    = 3
)

// Guest IPPROTO_* constants this module needs to implement the
// socket() compatibility shim and the setsockopt no-op shims.
const (
	IPPROTO_IP_      = 0
	IPPROTO_ICMP_    = 1
	IPPROTO_TCP_     = 6
	IPPROTO_UDP_     = 17
	IPPROTO_ICMPV6_  = 58
	IPPROTO_RAW_     = 255
)

// Guest SOL_SOCKET level and the option codes this module translates.
const (
	SOL_SOCKET_ = 1
)

const (
	SO_REUSEADDR_ = 2
	SO_TYPE_      = 3
	SO_ERROR_     = 4
	SO_BROADCAST_ = 6
	SO_KEEPALIVE_ = 9
	SO_LINGER_    = 13
	SO_RCVBUF_    = 8
	SO_SNDBUF_    = 7
	SO_RCVTIMEO_  = 20
	SO_SNDTIMEO_  = 21
)

const (
	TCP_NODELAY_ = 1
)

// Guest option codes scoped to IPPROTO_ICMPV6 / IPPROTO_IP, needed
// only for the two setsockopt no-op compatibility shims.
const (
	ICMP6_FILTER_      = 1
	IP_MTU_DISCOVER_   = 10
)

// Guest msghdr/sendmsg/recvmsg flag bits.
const (
	MSG_OOB_       = 0x01
	MSG_PEEK_      = 0x02
	MSG_DONTROUTE_ = 0x04
	MSG_CTRUNC_    = 0x08
	MSG_TRUNC_     = 0x20
	MSG_DONTWAIT_  = 0x40
	MSG_EOR_       = 0x80
	MSG_WAITALL_   = 0x100
	MSG_NOSIGNAL_  = 0x4000
)

// sockFamilyToReal translates a guest PF_* constant to the host
// unix.AF_* value, or -1 if untranslatable.
func sockFamilyToReal(guest uint32) int {
	switch guest {
	case PF_INET_:
		return unix.AF_INET
	case PF_INET6_:
		return unix.AF_INET6
	case PF_LOCAL_:
		return unix.AF_UNIX
	default:
		return -1
	}
}

// sockFamilyFromReal is the inverse of sockFamilyToReal, used when
// writing a host sockaddr back to the guest (getsockname/getpeername/
// accept).
func sockFamilyFromReal(real int) int {
	switch real {
	case unix.AF_INET:
		return PF_INET_
	case unix.AF_INET6:
		return PF_INET6_
	case unix.AF_UNIX:
		return PF_LOCAL_
	default:
		return -1
	}
}

// sockTypeToReal translates a guest SOCK_* constant to a host socket
// type, or -1 if untranslatable. The RAW->ICMP protocol substitution
// is done by sysSocket, not here.
func sockTypeToReal(guestType uint32) int {
	switch guestType {
	case SOCK_STREAM_:
		return unix.SOCK_STREAM
	case SOCK_DGRAM_:
		return unix.SOCK_DGRAM
	case SOCK_RAW_:
		return unix.SOCK_RAW
	default:
		return -1
	}
}

// sockTypeFromReal is the inverse, used by getsockopt(SO_TYPE).
func sockTypeFromReal(real int) int {
	switch real {
	case unix.SOCK_STREAM:
		return SOCK_STREAM_
	case unix.SOCK_DGRAM:
		return SOCK_DGRAM_
	case unix.SOCK_RAW:
		return SOCK_RAW_
	default:
		return -1
	}
}

// flagPair is one guest<->host bit pair in the flags translation
// table. Keeping the table data-driven (rather than two parallel
// switches) is what makes the totality property in §8 easy to state
// and test: flagsToReal(flagsFromReal(h)) == h for every combination
// of bits this table knows about.
type flagPair struct {
	guest uint32
	host  int
}

var sockFlagTable = []flagPair{
	{MSG_OOB_, unix.MSG_OOB},
	{MSG_PEEK_, unix.MSG_PEEK},
	{MSG_DONTROUTE_, unix.MSG_DONTROUTE},
	{MSG_CTRUNC_, unix.MSG_CTRUNC},
	{MSG_TRUNC_, unix.MSG_TRUNC},
	{MSG_DONTWAIT_, unix.MSG_DONTWAIT},
	{MSG_EOR_, unix.MSG_EOR},
	{MSG_WAITALL_, unix.MSG_WAITALL},
	{MSG_NOSIGNAL_, unix.MSG_NOSIGNAL},
}

// sockFlagsToReal translates guest msg flags to host flags. Unknown
// guest bits are dropped rather than rejected - the source is
// similarly permissive for flags, reserving -EINVAL for the handful of
// cases (constants, not flags) that must be exact.
func sockFlagsToReal(guest uint32) int {
	host := 0
	for _, p := range sockFlagTable {
		if guest&p.guest != 0 {
			host |= p.host
		}
	}
	return host
}

// sockFlagsFromReal is the inverse, used to translate msg_flags back
// to the guest on recvmsg/recvfrom.
func sockFlagsFromReal(host int) uint32 {
	var guest uint32
	for _, p := range sockFlagTable {
		if host&p.host != 0 {
			guest |= p.guest
		}
	}
	return guest
}

// sockLevelToReal translates a guest setsockopt/getsockopt level.
func sockLevelToReal(guestLevel uint32) int {
	switch guestLevel {
	case SOL_SOCKET_:
		return unix.SOL_SOCKET
	case IPPROTO_TCP_:
		return unix.IPPROTO_TCP
	case IPPROTO_IP_:
		return unix.IPPROTO_IP
	case IPPROTO_ICMPV6_:
		return unix.IPPROTO_ICMPV6
	default:
		return -1
	}
}

// sockOptToReal translates a guest option name, which is scoped by
// level (the same numeric value means different things under
// different levels, exactly like the real socket API) - option is the
// guest code, level the *guest* level it was read under.
func sockOptToReal(guestOption, guestLevel uint32) int {
	switch guestLevel {
	case SOL_SOCKET_:
		switch guestOption {
		case SO_REUSEADDR_:
			return unix.SO_REUSEADDR
		case SO_TYPE_:
			return unix.SO_TYPE
		case SO_ERROR_:
			return unix.SO_ERROR
		case SO_BROADCAST_:
			return unix.SO_BROADCAST
		case SO_KEEPALIVE_:
			return unix.SO_KEEPALIVE
		case SO_LINGER_:
			return unix.SO_LINGER
		case SO_RCVBUF_:
			return unix.SO_RCVBUF
		case SO_SNDBUF_:
			return unix.SO_SNDBUF
		case SO_RCVTIMEO_:
			return unix.SO_RCVTIMEO
		case SO_SNDTIMEO_:
			return unix.SO_SNDTIMEO
		}
	case IPPROTO_TCP_:
		switch guestOption {
		case TCP_NODELAY_:
			return unix.TCP_NODELAY
		}
	}
	return -1
}
