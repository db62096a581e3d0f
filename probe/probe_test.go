package probe

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestTCP_OpenThenClosed(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := uint16(l.Addr().(*net.TCPAddr).Port)

	if got := TCP(context.Background(), "127.0.0.1", port, time.Second, 1, 0); got != Open {
		t.Fatalf("TCP() = %v, want Open", got)
	}

	_ = l.Close()
	time.Sleep(50 * time.Millisecond)

	got := TCP(context.Background(), "127.0.0.1", port, 500*time.Millisecond, 1, 0)
	if got != Closed && got != Unreachable {
		t.Fatalf("TCP() after close = %v, want Closed or Unreachable", got)
	}
}

func TestTCP_UnreachableOnBadHost(t *testing.T) {
	got := TCP(context.Background(), "203.0.113.1", 9, 50*time.Millisecond, 1, 0)
	if got != Unreachable {
		t.Fatalf("TCP() = %v, want Unreachable", got)
	}
}

func TestTCP_AttemptsShortCircuitOnOpen(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	port := uint16(l.Addr().(*net.TCPAddr).Port)

	got := TCP(context.Background(), "127.0.0.1", port, time.Second, 5, 0)
	if got != Open {
		t.Fatalf("TCP() = %v, want Open", got)
	}
}

func TestUDP_Open(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer conn.Close()
	port := uint16(conn.LocalAddr().(*net.UDPAddr).Port)

	go func() {
		buf := make([]byte, 16)
		_, raddr, err := conn.ReadFromUDP(buf)
		if err == nil && raddr != nil {
			_, _ = conn.WriteToUDP([]byte("pong"), raddr)
		}
	}()

	got := UDP(context.Background(), "127.0.0.1", port, time.Second, 1, 0)
	if got != Open {
		t.Fatalf("UDP() = %v, want Open", got)
	}
}

func TestUDP_ClosedOnNoReply(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	port := uint16(conn.LocalAddr().(*net.UDPAddr).Port)
	_ = conn.Close() // nobody listening, so our datagram draws no reply

	got := UDP(context.Background(), "127.0.0.1", port, 100*time.Millisecond, 1, 0)
	if got != Closed && got != Unreachable {
		t.Fatalf("UDP() = %v, want Closed or Unreachable", got)
	}
}

func TestResolveHost_CachesLiteralIP(t *testing.T) {
	ip, ok := resolveHost("127.0.0.1", time.Minute)
	if !ok {
		t.Fatalf("resolveHost() ok = false, want true")
	}
	if ip.String() != "127.0.0.1" {
		t.Fatalf("resolveHost() = %s, want 127.0.0.1", ip.String())
	}
	// second call should hit the cache and return the same value
	ip2, ok := resolveHost("127.0.0.1", time.Minute)
	if !ok || ip2.String() != ip.String() {
		t.Fatalf("cached resolveHost() = %s, %v; want %s, true", ip2, ok, ip)
	}
}

func TestTCP_BackoffPacesRetries(t *testing.T) {
	// No listener anywhere near this ephemeral port combo: every
	// attempt should be Unreachable/Closed, so with 3 attempts and a
	// 40ms backoff the whole call should take at least ~80ms.
	start := time.Now()
	port, err := freeTCPPort()
	if err != nil {
		t.Fatalf("freeTCPPort: %v", err)
	}
	_ = TCP(context.Background(), "127.0.0.1", port, 20*time.Millisecond, 3, 40*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Fatalf("elapsed = %v, want >= ~80ms with backoff pacing", elapsed)
	}
}

func freeTCPPort() (uint16, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return uint16(port), nil
}

func TestPortState_String(t *testing.T) {
	cases := map[PortState]string{
		Open:        "open",
		Closed:      "closed",
		Unreachable: "unreachable",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("%v.String() = %q, want %q", int(state), got, want)
		}
	}
}
