package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

// TCP performs up to attempts TCP connect attempts against host:port,
// each bounded by timeout. A successful connect returns Open
// immediately. A connection-refused error returns Closed. Any other
// error (timeout, unreachable network, DNS failure) returns
// Unreachable. The last iteration's outcome is returned if none of the
// attempts succeeded; Open short-circuits the loop.
//
// When backoff is non-zero, attempts after the first are paced at that
// interval via a token-bucket limiter — grounded on dropbox-llama's
// TestRunner, which gates its retry cycle the same way. backoff=0
// performs attempts back-to-back with no pacing at all.
func TCP(ctx context.Context, host string, port uint16, timeout time.Duration, attempts int, backoff time.Duration) PortState {
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
		result = tryTCP(host, port, timeout)
		if result == Open {
			return result
		}
	}
	return result
}

func tryTCP(host string, port uint16, timeout time.Duration) PortState {
	addr := fmt.Sprintf("%s:%d", host, port)
	if ip, ok := resolveHost(host, 2*timeout); ok {
		addr = net.JoinHostPort(ip.String(), fmt.Sprintf("%d", port))
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err == nil {
		_ = conn.Close()
		return Open
	}
	if isConnRefused(err) {
		return Closed
	}
	return Unreachable
}

// isConnRefused unwraps the layers net.Dial can wrap a refused
// connection in to find the underlying syscall.ECONNREFUSED.
func isConnRefused(err error) bool {
	opErr, ok := err.(*net.OpError)
	if !ok {
		return false
	}
	if se, ok := opErr.Err.(*os.SyscallError); ok {
		return se.Err == syscall.ECONNREFUSED
	}
	if errno, ok := opErr.Err.(syscall.Errno); ok {
		return errno == syscall.ECONNREFUSED
	}
	return false
}
