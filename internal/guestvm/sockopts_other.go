//go:build !darwin

// sockopts_other.go - non-Darwin stand-in for the IP_STRIPHDR shim.

package guestvm

// stripIPHeaderIfNeeded is a no-op outside Darwin: IP_STRIPHDR doesn't
// exist there, and DGRAM sockets don't include the IP header anyway.
func stripIPHeaderIfNeeded(realFD, realDomain, realType int) {}
