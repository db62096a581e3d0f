// Package worker implements the scan worker: a goroutine that blocks on a
// single-slot instruction channel, runs one probe per Scan instruction
// against a live configuration snapshot, and reports exactly one result
// message per instruction it acts on.
package worker

import (
	"context"
	"log/slog"

	"portsqan/probe"
	"portsqan/queue"
	"portsqan/scanconfig"
)

// Kind distinguishes the two instructions a worker understands.
type Kind int

const (
	// Scan asks the worker to probe one target.
	Scan Kind = iota
	// Term asks the worker to exit without probing anything further.
	Term
)

// Instruction is sent down a worker's inbound channel. For Kind==Scan,
// Target names what to probe; for Kind==Term, Target is ignored.
type Instruction struct {
	Kind   Kind
	Target queue.Target
}

// Message is a worker's report of one completed probe, sent up the
// shared outbound channel. WorkerID identifies which worker produced
// it so the supervisor can route it back to the right worker handle.
type Message struct {
	WorkerID int
	Target   queue.Target
	State    probe.PortState
}

// Run runs the blocking consume loop: receive an Instruction, act on
// it, optionally report a Message, repeat until Term or until in is
// closed. It never touches supervisor state directly — all supervisor
// coordination happens over the two channels passed in.
//
// Run exits (without sending anything) as soon as it observes a Term
// instruction or a closed in channel. A Scan instruction produces
// exactly one Message on out before Run loops back to receive again,
// unless ctx is cancelled while the Message is waiting to be sent, in
// which case Run returns without sending it; the supervisor's
// result-count bookkeeping depends on this.
func Run(ctx context.Context, id int, in <-chan Instruction, out chan<- Message, cfg *scanconfig.Config, log *slog.Logger) {
	log = log.With("worker_id", id)
	log.Debug("worker started")
	defer log.Debug("worker stopped")

	for {
		instr, ok := <-in
		if !ok {
			return
		}
		if instr.Kind == Term {
			return
		}

		snap := cfg.Snapshot()
		state := probeTarget(ctx, instr.Target, snap)
		log.Debug("probe complete",
			"host", instr.Target.Host,
			"protocol", instr.Target.Protocol.String(),
			"port", instr.Target.Port,
			"state", state.String(),
		)

		select {
		case out <- Message{WorkerID: id, Target: instr.Target, State: state}:
		case <-ctx.Done():
			return
		}
	}
}

func probeTarget(ctx context.Context, t queue.Target, snap scanconfig.Snapshot) probe.PortState {
	switch t.Protocol {
	case queue.UDP:
		return probe.UDP(ctx, t.Host, t.Port, snap.UDPTimeout, snap.Attempts, snap.AttemptBackoff)
	default:
		return probe.TCP(ctx, t.Host, t.Port, snap.TCPTimeout, snap.Attempts, snap.AttemptBackoff)
	}
}
