// Package output renders scan results as an aligned table via
// tabwriter, down to the plain (host, port, protocol, state) tuples
// this scheduler core produces.
package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"portsqan/queue"
	"portsqan/supervisor"
)

// Result is one reported scan outcome, the shape output.Print* render.
type Result struct {
	Host     string
	Protocol queue.Protocol
	Port     uint16
	State    string
}

// FromOutputs filters outputs to the TcpScan/UdpScan results (dropping Idle
// and Ok), converting each to a Result.
func FromOutputs(outputs []supervisor.Output) []Result {
	results := make([]Result, 0, len(outputs))
	for _, o := range outputs {
		switch o.Kind {
		case supervisor.TCPScan:
			results = append(results, Result{Host: o.Host, Protocol: queue.TCP, Port: o.Port, State: o.State.String()})
		case supervisor.UDPScan:
			results = append(results, Result{Host: o.Host, Protocol: queue.UDP, Port: o.Port, State: o.State.String()})
		}
	}
	return results
}

// PrintTable writes results as an aligned table to w, sorted by
// protocol then port then host for deterministic output.
func PrintTable(results []Result, w io.Writer) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Protocol != results[j].Protocol {
			return results[i].Protocol < results[j].Protocol
		}
		if results[i].Port != results[j].Port {
			return results[i].Port < results[j].Port
		}
		return results[i].Host < results[j].Host
	})

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tPORT/PROTO\tSTATE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d/%s\t%s\n", r.Host, r.Port, r.Protocol, r.State)
	}
	_ = tw.Flush()
}
