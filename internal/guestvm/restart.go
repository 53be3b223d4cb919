// restart.go - socket-restart helper (external contract, §5)
//
// Wraps accept's blocking wait in a begin/end protocol so a signal
// interruption (EINTR) can be retried transparently when policy says
// to. The real ish keeps this state per-process (SA_RESTART handling
// interacts with the whole signal mask); this module scopes it to the
// Fd the way the source's fd->sockrestart field does, which is enough
// to drive and test the accept retry loop in §4.3 without a real
// signal-delivery integration.

package guestvm

import "sync/atomic"

type sockRestartState struct {
	// proto is the (possibly RAW->ICMP substituted) protocol sysSocket
	// created this Fd with, mirroring the source's sockrestart.proto.
	// Not yet read anywhere in this module; kept for parity with the
	// source's fd state and as the natural place a future SO_PROTOCOL-
	// style query would read it from.
	proto     int32
	listening atomic.Bool
	inWait    atomic.Bool
}

// sockrestartBeginListen marks a listening socket as eligible for the
// accept-retry protocol - the source's sockrestart_begin_listen,
// called right after a successful listen().
func sockrestartBeginListen(fd *Fd) {
	fd.SockRestart.listening.Store(true)
}

// sockrestartEndListen clears that eligibility - called from close().
func sockrestartEndListen(fd *Fd) {
	fd.SockRestart.listening.Store(false)
}

// sockrestartBeginListenWait/EndListenWait bracket the blocking
// accept() call.
func sockrestartBeginListenWait(fd *Fd) {
	fd.SockRestart.inWait.Store(true)
}

func sockrestartEndListenWait(fd *Fd) {
	fd.SockRestart.inWait.Store(false)
}

// sockrestartShouldRestartListenWait reports whether a just-interrupted
// accept() should be retried. This module's policy: retry whenever the
// socket is still marked listening, matching SA_RESTART semantics for
// accept on a socket the guest hasn't shut down.
func sockrestartShouldRestartListenWait(fd *Fd) bool {
	return fd.SockRestart.listening.Load()
}
