package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// UDP performs up to attempts UDP send-and-wait probes against
// host:port. Each iteration binds an ephemeral local UDP endpoint on
// the loopback interface, sends a zero-byte datagram, and waits up to
// timeout for any reply. A reply means Open. A read timeout or read
// error means Closed. Inability to bind or to send means Unreachable
// and short-circuits the remaining attempts, since neither condition
// is likely to change between iterations.
//
// This is deliberately coarse: stateless UDP offers no reliable way to
// distinguish a silently-dropping firewall from an genuinely listening
// service that ignores empty datagrams.
func UDP(ctx context.Context, host string, port uint16, timeout time.Duration, attempts int, backoff time.Duration) PortState {
	var limiter *rate.Limiter
	if backoff > 0 {
		limiter = rate.NewLimiter(rate.Every(backoff), 1)
	}

	result := Unreachable
	for i := 0; i < attempts; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return result
			}
		}
		var shortCircuit bool
		result, shortCircuit = tryUDP(host, port, timeout)
		if result == Open || shortCircuit {
			return result
		}
	}
	return result
}

func tryUDP(host string, port uint16, timeout time.Duration) (state PortState, shortCircuit bool) {
	raddr, ok := resolveHost(host, 2*timeout)
	var target string
	if ok {
		target = net.JoinHostPort(raddr.String(), strconv.Itoa(int(port)))
	} else {
		target = net.JoinHostPort(host, strconv.Itoa(int(port)))
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		return Unreachable, true
	}
	defer conn.Close()

	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return Unreachable, true
	}

	if _, err := conn.WriteToUDP(nil, addr); err != nil {
		return Unreachable, true
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Unreachable, true
	}

	buf := make([]byte, 1)
	_, _, err = conn.ReadFromUDP(buf)
	if err != nil {
		return Closed, false
	}
	return Open, false
}
