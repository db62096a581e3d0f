// Command portsqan is the compatibility CLI front-end over the
// scheduler core: it parses a fixed scan spec from argv, drives a
// single Builder.Run() to completion, and prints the results.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"portsqan/builder"
	"portsqan/output"
	"portsqan/queue"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("portsqan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	from := fs.Uint("from", 0, "first port in range")
	fs.UintVar(from, "f", 0, "alias for -from")
	to := fs.Uint("to", 0, "last port in range")
	fs.UintVar(to, "t", 0, "alias for -to")
	proto := fs.String("protocol", "tcp", "tcp or udp")
	fs.StringVar(proto, "p", "tcp", "alias for -protocol")
	excludeFrom := fs.Uint("exclude-from", 0, "first port of an excluded sub-range")
	excludeTo := fs.Uint("exclude-to", 0, "last port of an excluded sub-range")
	threadCount := fs.Int("thread-count", 1, "worker pool size")
	tcpTimeout := fs.Duration("tcp-timeout", 500*time.Millisecond, "TCP connect timeout")
	udpTimeout := fs.Duration("udp-timeout", 500*time.Millisecond, "UDP receive timeout")
	attempts := fs.Int("attempts", 1, "retries per probe")
	stale := fs.Bool("stale", true, "suppress results from cancelled work")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "error: a target host positional argument is required")
		return 1
	}
	host := fs.Arg(0)

	if *from == 0 || *from > 65535 || *to > 65535 || *to < *from {
		fmt.Fprintln(stderr, "error: --from/--to must satisfy 1 <= from <= to <= 65535")
		return 1
	}

	haveExcludeFrom := isSet(fs, "exclude-from")
	haveExcludeTo := isSet(fs, "exclude-to")
	if haveExcludeFrom != haveExcludeTo {
		fmt.Fprintln(stderr, "error: --exclude-from and --exclude-to must appear together")
		return 1
	}
	if haveExcludeFrom && (*excludeFrom == 0 || *excludeFrom > *excludeTo || *excludeTo > 65535) {
		fmt.Fprintln(stderr, "error: invalid exclude range")
		return 1
	}

	var p queue.Protocol
	switch *proto {
	case "tcp":
		p = queue.TCP
	case "udp":
		p = queue.UDP
	default:
		fmt.Fprintf(stderr, "error: unknown protocol %q (want tcp or udp)\n", *proto)
		return 1
	}

	b := builder.New().
		ThreadCount(*threadCount).
		Attempts(*attempts).
		Stale(*stale).
		TCPTimeout(*tcpTimeout).
		UDPTimeout(*udpTimeout)

	for _, r := range splitExcluding(uint16(*from), uint16(*to), haveExcludeFrom, uint16(*excludeFrom), uint16(*excludeTo)) {
		if p == queue.UDP {
			b.UDPRange(host, r[0], r[1])
		} else {
			b.TCPRange(host, r[0], r[1])
		}
	}

	outputs := b.Run()
	results := output.FromOutputs(outputs)

	output.PrintTable(results, stdout)
	return 0
}

// isSet reports whether a flag was explicitly provided on the command
// line, distinguishing "absent" from "set to its zero value".
func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// splitExcluding yields [from,to] minus the excluded sub-range: the
// whole range when there is no exclusion or it lies outside [from,to],
// two ranges when it falls strictly inside, one trimmed range when it
// covers one edge, and no range when it covers all of [from,to].
func splitExcluding(from, to uint16, haveExclude bool, exFrom, exTo uint16) [][2]uint16 {
	if !haveExclude || exTo < from || exFrom > to {
		return [][2]uint16{{from, to}}
	}
	var out [][2]uint16
	if exFrom > from {
		out = append(out, [2]uint16{from, exFrom - 1})
	}
	if exTo < to {
		out = append(out, [2]uint16{exTo + 1, to})
	}
	return out
}
