package guestvm

import "testing"

func TestSockFlagsRoundTripIsTotal(t *testing.T) {
	// Every combination of known host bits must survive a
	// real->guest->real round trip, per the ABI translation totality
	// property: sockFlagsToReal(sockFlagsFromReal(h)) == h.
	var allHostBits int
	for _, p := range sockFlagTable {
		allHostBits |= p.host
	}
	for host := 0; host <= allHostBits; host++ {
		if host&^allHostBits != 0 {
			continue
		}
		guest := sockFlagsFromReal(host)
		back := sockFlagsToReal(guest)
		if back != host {
			t.Fatalf("round trip broke for host flags 0x%x: got 0x%x via guest 0x%x", host, back, guest)
		}
	}
}

func TestSockFamilyRoundTrip(t *testing.T) {
	cases := []uint32{PF_INET_, PF_INET6_, PF_LOCAL_}
	for _, guest := range cases {
		real := sockFamilyToReal(guest)
		if real < 0 {
			t.Fatalf("sockFamilyToReal(%d) = -1, want a valid host family", guest)
		}
		back := sockFamilyFromReal(real)
		if uint32(back) != guest {
			t.Fatalf("round trip broke for guest family %d: got %d via host %d", guest, back, real)
		}
	}
}

func TestSockFamilyUnknownIsEAFNOSUPPORTSentinel(t *testing.T) {
	if sockFamilyToReal(9999) != -1 {
		t.Fatal("unknown guest family should translate to -1")
	}
}

func TestSockTypeRoundTrip(t *testing.T) {
	cases := []uint32{SOCK_STREAM_, SOCK_DGRAM_, SOCK_RAW_}
	for _, guest := range cases {
		real := sockTypeToReal(guest)
		if real < 0 {
			t.Fatalf("sockTypeToReal(%d) = -1", guest)
		}
		if back := sockTypeFromReal(real); uint32(back) != guest {
			t.Fatalf("round trip broke for guest type %d: got %d via host %d", guest, back, real)
		}
	}
}

func TestSockOptToRealIsScopedByLevel(t *testing.T) {
	// SO_TYPE (3) under SOL_SOCKET is a real option; the same numeric
	// value under IPPROTO_TCP is not TCP_NODELAY and must not resolve.
	if sockOptToReal(SO_TYPE_, SOL_SOCKET_) < 0 {
		t.Fatal("SO_TYPE under SOL_SOCKET should resolve")
	}
	if sockOptToReal(SO_TYPE_, IPPROTO_TCP_) >= 0 {
		t.Fatal("option 3 under IPPROTO_TCP should not resolve to anything")
	}
}
