//go:build darwin

// sockopts_darwin.go - Darwin-only IP_STRIPHDR shim.

package guestvm

import "golang.org/x/sys/unix"

// stripIPHeaderIfNeeded sets IP_STRIPHDR on an AF_INET/SOCK_DGRAM
// socket so it behaves like Linux and delivers payload only, not the
// IP header - some Darwin DGRAM sockets (ICMP included) otherwise
// default to raw-socket-style framing. No-op on every other platform,
// where DGRAM sockets never include the header in the first place.
func stripIPHeaderIfNeeded(realFD, realDomain, realType int) {
	if realDomain == unix.AF_INET && realType == unix.SOCK_DGRAM {
		unix.SetsockoptInt(realFD, unix.IPPROTO_IP, unix.IP_STRIPHDR, 1)
	}
}
