package supervisor

import (
	"context"
	"sync"
)

// Handle is the command façade: a cloneable handle onto a running
// Supervisor that makes its asynchronous control loop look synchronous
// to callers. Grounded on original_source's Scanner (the tx/rx/handle
// triple), adapted to Go idiom with an explicit mutex guaranteeing the
// "atomically send and block for one ack" contract that concurrent
// clones of the same façade share.
type Handle struct {
	sup *Supervisor
	mu  *sync.Mutex // serializes Command across every clone sharing sup
}

// NewHandle wraps a running Supervisor in a Handle.
func NewHandle(sup *Supervisor) Handle {
	return Handle{sup: sup, mu: &sync.Mutex{}}
}

// Command sends in to the supervisor and blocks until its synchronous
// acknowledgement arrives, returning it. ok is false if the supervisor
// has already shut down and can no longer be reached.
func (h Handle) Command(ctx context.Context, in Input) (Output, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case h.sup.inputCh <- in:
	case <-h.sup.doneCh:
		return Output{}, false
	case <-ctx.Done():
		return Output{}, false
	}

	select {
	case out := <-h.sup.ackCh:
		return out, true
	case <-h.sup.doneCh:
		return Output{}, false
	case <-ctx.Done():
		return Output{}, false
	}
}

// Join blocks until the supervisor's control loop has exited. It is
// idempotent: any number of clones may call it concurrently or
// repeatedly, and every call returns as soon as the loop has ended —
// receiving from a closed channel never blocks past that point.
func (h Handle) Join() {
	<-h.sup.doneCh
}
