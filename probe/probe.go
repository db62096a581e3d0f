// Package probe implements the two one-shot reachability primitives the
// spec calls for: a TCP connect probe and a UDP send-and-wait probe.
// Both are pure with respect to supervisor state — they take owned
// inputs and return a PortState, nothing more.
package probe

import (
	"net"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// PortState is the tri-state result of a single probe.
//
// Open means the probe succeeded outright. Closed means the host was
// reachable but actively refused the port. Unreachable covers every
// other outcome — timeout, DNS failure, socket error — where no
// decision could be made.
type PortState int

const (
	Open PortState = iota
	Closed
	Unreachable
)

func (s PortState) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// resolveCache memoizes host -> resolved IP lookups so that a wide
// port range against one host doesn't repeat the DNS round trip for
// every port probed. A miss or lookup failure simply falls through to
// a direct net.Dial/net.ResolveUDPAddr, which will re-attempt
// resolution and report Unreachable on failure exactly as it would
// without the cache. Grounded on dropbox-llama's Port.cache (port.go),
// which memoizes outstanding probes with the same library.
var resolveCache = gocache.New(gocache.NoExpiration, 5*time.Minute)

// resolveHost returns the first resolved IP for host, consulting (and
// populating) resolveCache with the given ttl. Adapted from the
// teacher's netutil.ResolveTargetToIPv4, generalized to not require an
// IPv4 literal (UDP/TCP dialing already handles IPv6 fine; we only
// cache the lookup, we don't constrain the family).
func resolveHost(host string, ttl time.Duration) (net.IP, bool) {
	if cached, ok := resolveCache.Get(host); ok {
		if ip, ok := cached.(net.IP); ok {
			return ip, true
		}
	}
	if ip := net.ParseIP(host); ip != nil {
		resolveCache.Set(host, ip, ttl)
		return ip, true
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return nil, false
	}
	resolveCache.Set(host, ips[0], ttl)
	return ips[0], true
}
