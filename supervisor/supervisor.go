// Package supervisor implements the scheduler core: the state machine
// that owns a dynamic worker pool, a scan queue, and a configuration
// cell, and multiplexes interactive commands with asynchronous scan
// results. Grounded on original_source's ScanMaster/Scanner
// (crates/server/src/lib.rs), translated from crossbeam channels +
// OS threads to native Go channels + goroutines, with the
// worker-goroutine-supervision idiom carried over from scanner.Manager's
// job-dispatch loop.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"portsqan/probe"
	"portsqan/queue"
	"portsqan/scanconfig"
	"portsqan/worker"
)

// State is the supervisor's tagged state.
type State int

const (
	Running State = iota
	Stop
	Ending
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stop:
		return "stop"
	case Ending:
		return "ending"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// InputKind tags the command variants the supervisor understands.
type InputKind int

const (
	NOP InputKind = iota
	Ping
	ThreadsCmd
	AttemptsCmd
	StaleCmd
	TCPTimeoutCmd
	UDPTimeoutCmd
	TCPRangeCmd
	UDPRangeCmd
	StopCmd
	ContCmd
	CancelCmd
	EndCmd
)

// Input is a single command accepted by the supervisor. Only the
// fields relevant to Kind are meaningful; see the Input variant table
// for which fields each kind reads.
type Input struct {
	Kind InputKind
	N    int          // Threads, Attempts
	B    bool         // Stale
	MS   int          // TCPTimeout, UDPTimeout (milliseconds)
	Host string       // TCPRange, UDPRange
	From uint16       // TCPRange, UDPRange
	To   uint16       // TCPRange, UDPRange
}

// OutputKind tags the output variants a supervisor emits.
type OutputKind int

const (
	TCPScan OutputKind = iota
	UDPScan
	Idle
	Ok
)

// Output is a value emitted by the supervisor: asynchronously via the
// result callback (TCPScan, UDPScan, Idle) or synchronously via the
// acknowledgement channel (Ok).
type Output struct {
	Kind  OutputKind
	Host  string
	Port  uint16
	State probe.PortState
}

func (o Output) String() string {
	switch o.Kind {
	case TCPScan:
		return fmt.Sprintf("TcpScan(%s, %d, %s)", o.Host, o.Port, o.State)
	case UDPScan:
		return fmt.Sprintf("UdpScan(%s, %d, %s)", o.Host, o.Port, o.State)
	case Idle:
		return "Idle"
	case Ok:
		return "Ok"
	default:
		return "unknown"
	}
}

// workerState mirrors worker.Instruction's lifecycle from the
// supervisor's point of view.
type workerState int

const (
	wIdle workerState = iota
	wWorking
	wTerm
)

// workerHandle is the supervisor-side record for one worker goroutine.
type workerHandle struct {
	id      int
	state   workerState
	stale   bool
	in      chan worker.Instruction
	done    chan struct{} // closed when the worker goroutine returns
}

// Supervisor owns the worker pool, the scan queue, and the shared
// configuration cell, and runs the single control goroutine that
// implements the state machine. Construct it only through New; callers
// interact with it exclusively through a Handle.
type Supervisor struct {
	workers    []*workerHandle
	idCounter  int
	ranges     *queue.ScanQueue
	cfg        *scanconfig.Config
	state      State
	inputCh    chan Input
	inputClose <-chan Input // becomes a never-ready channel once inputCh is closed
	ackCh      chan Output
	messageCh  chan worker.Message
	emit       func(Output)
	log        *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	doneCh     chan struct{}
}

// New constructs a Supervisor, spawns its initial worker pool per the
// default configuration, and starts its control goroutine. emit is
// invoked (from the control goroutine) for every asynchronous output;
// it must not block or re-enter the supervisor.
func New(emit func(Output), log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		ranges:    queue.New(),
		cfg:       scanconfig.New(),
		state:     Running,
		inputCh:   make(chan Input),
		ackCh:     make(chan Output),
		messageCh: make(chan worker.Message),
		emit:      emit,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
	}
	s.inputClose = s.inputCh

	go func() {
		defer close(s.doneCh)
		s.threadCountControl()
		s.checkIdle()
		s.listen()
	}()
	return s
}

// listen is the control loop: it runs until state reaches Terminated.
func (s *Supervisor) listen() {
	for s.state != Terminated {
		select {
		case msg := <-s.messageCh:
			s.handleMessage(msg)
		case input, ok := <-s.inputClose:
			if !ok {
				s.dropInputChannel()
				continue
			}
			s.handleInput(input)
		}
	}
	s.cancel()
}

func (s *Supervisor) dropInputChannel() {
	s.inputClose = nil
}

// handleInput implements the command table of §4.4.1. Every call
// concludes by acking Ok, even when the command was ignored because
// the state had already reached Ending/Terminated — the façade's
// Command must never block forever waiting for a reply that the
// supervisor silently decided not to send.
func (s *Supervisor) handleInput(in Input) {
	if s.state == Ending || s.state == Terminated {
		s.ackCh <- Output{Kind: Ok}
		return
	}
	switch in.Kind {
	case EndCmd:
		s.state = Ending
		s.staleAll()
		s.tryTerminate()
	case Ping, NOP:
	case AttemptsCmd:
		s.cfg.SetAttempts(in.N)
	case TCPTimeoutCmd:
		s.cfg.SetTCPTimeout(time.Duration(in.MS) * time.Millisecond)
	case UDPTimeoutCmd:
		s.cfg.SetUDPTimeout(time.Duration(in.MS) * time.Millisecond)
	case CancelCmd:
		s.staleAll()
		s.ranges.Clear()
	case StaleCmd:
		s.cfg.SetStale(in.B)
	case TCPRangeCmd:
		s.pushRange(in, queue.TCP)
		s.assignWork()
	case UDPRangeCmd:
		s.pushRange(in, queue.UDP)
		s.assignWork()
	case StopCmd:
		if s.state == Running {
			s.state = Stop
		}
	case ContCmd:
		if s.state == Stop {
			s.state = Running
		}
		s.assignWork()
	case ThreadsCmd:
		s.cfg.SetThreadCount(in.N)
		s.threadCountControl()
	}
	// A command can leave the scheduler idle without any worker ever
	// reporting back (e.g. Threads/TcpRange/Cont applied while the
	// queue was already empty, or no range ever gets queued at all),
	// so handleMessage's reactive check alone would miss it; checking
	// here too closes that gap for every command kind uniformly.
	s.checkIdle()
	s.ackCh <- Output{Kind: Ok}
}

func (s *Supervisor) pushRange(in Input, proto queue.Protocol) {
	r, err := queue.NewAddressRange(in.Host, proto, in.From, in.To)
	if err != nil {
		s.log.Warn("rejected invalid range", "error", err)
		return
	}
	rangeID := uuid.New()
	s.log.Debug("range enqueued", "range_id", rangeID, "host", in.Host, "protocol", proto.String(), "from", in.From, "to", in.To)
	s.ranges.Push(r)
}

func (s *Supervisor) staleAll() {
	for _, wh := range s.workers {
		wh.stale = true
	}
}

// handleMessage implements §4.4.2.
func (s *Supervisor) handleMessage(msg worker.Message) {
	idx := s.findWorker(msg.WorkerID)
	if idx < 0 {
		panic(fmt.Sprintf("supervisor: message from unknown worker id %d", msg.WorkerID))
	}
	wh := s.workers[idx]
	wh.state = wIdle
	stale := wh.stale
	wh.stale = false

	if !(stale && s.cfg.Stale()) {
		kind := TCPScan
		if msg.Target.Protocol == queue.UDP {
			kind = UDPScan
		}
		s.emit(Output{Kind: kind, Host: msg.Target.Host, Port: msg.Target.Port, State: msg.State})
	}

	switch s.state {
	case Running:
		s.threadCountControl()
		s.assignWork()
		s.checkIdle()
	case Ending:
		s.tryTerminate()
	}
}

// findWorker resolves a worker id to its index via binary search; the
// worker slice is kept sorted by id (ascending, since ids are assigned
// by a monotonically increasing counter and appended in order).
func (s *Supervisor) findWorker(id int) int {
	i := sort.Search(len(s.workers), func(i int) bool { return s.workers[i].id >= id })
	if i < len(s.workers) && s.workers[i].id == id {
		return i
	}
	return -1
}

// threadCountControl implements §4.4.3.
func (s *Supervisor) threadCountControl() {
	want := s.cfg.ThreadCount()
	have := len(s.workers)
	switch {
	case want > have:
		for i := 0; i < want-have; i++ {
			s.spawn()
		}
		s.assignWork()
	case want < have:
		s.tryClose(have - want)
	}
}

func (s *Supervisor) spawn() {
	s.idCounter++
	id := s.idCounter
	in := make(chan worker.Instruction, 1)
	done := make(chan struct{})
	wh := &workerHandle{id: id, state: wIdle, in: in, done: done}
	s.workers = append(s.workers, wh)

	out := s.messageCh
	cfg := s.cfg
	log := s.log
	ctx := s.ctx
	go func() {
		defer close(done)
		worker.Run(ctx, id, in, out, cfg, log)
	}()
}

// tryClose implements §4.4.4.
func (s *Supervisor) tryClose(k int) {
	for _, wh := range s.workers {
		if k == 0 {
			break
		}
		if wh.state == wIdle {
			wh.state = wTerm
			wh.in <- worker.Instruction{Kind: worker.Term}
			<-wh.done
			k--
		}
	}
	s.threadsClean()
}

func (s *Supervisor) threadsClean() {
	live := s.workers[:0]
	for _, wh := range s.workers {
		if wh.state != wTerm {
			live = append(live, wh)
		}
	}
	s.workers = live
}

func (s *Supervisor) tryTerminate() {
	s.tryClose(len(s.workers))
	if len(s.workers) == 0 {
		s.state = Terminated
	}
}

// assignWork implements §4.4.5.
func (s *Supervisor) assignWork() {
	if s.state != Running {
		return
	}
	for _, wh := range s.workers {
		if wh.state != wIdle {
			continue
		}
		target, ok := s.ranges.Pop()
		if !ok {
			break
		}
		// A stale flag set while the worker was idle (Cancel/End mark
		// every worker) belongs to no in-flight probe; drop it so the
		// result for this new target is not suppressed.
		wh.stale = false
		wh.in <- worker.Instruction{Kind: worker.Scan, Target: target}
		wh.state = wWorking
	}
}

func (s *Supervisor) checkIdle() {
	if s.state != Running || s.ranges.Len() != 0 {
		return
	}
	for _, wh := range s.workers {
		if wh.state != wIdle {
			return
		}
	}
	s.emit(Output{Kind: Idle})
}
