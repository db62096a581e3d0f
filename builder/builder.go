// Package builder collects optional configuration overrides and
// pre-queued scan ranges, then constructs and starts a supervisor.
// Grounded on original_source's ScannerBuilder (crates/libportsqan/src/lib.rs),
// re-architected per the fluent-to-value translation: Go has no owned
// self-consuming builder idiom, so overrides are optional pointer
// fields filled in by chainable methods, applied in the same fixed
// order the original's config() does.
package builder

import (
	"context"
	"time"

	"gopkg.in/yaml.v2"

	"portsqan/queue"
	"portsqan/supervisor"
)

// Builder accumulates optional configuration overrides and pre-queued
// address ranges. A zero-value Builder is empty and ready to use.
// Reusing a Builder after Build is not supported.
type Builder struct {
	threadCount *int
	attempts    *int
	stale       *bool
	tcpTimeout  *time.Duration
	udpTimeout  *time.Duration
	ranges      []queue.AddressRange
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) ThreadCount(n int) *Builder {
	b.threadCount = &n
	return b
}

func (b *Builder) Attempts(n int) *Builder {
	b.attempts = &n
	return b
}

func (b *Builder) Stale(v bool) *Builder {
	b.stale = &v
	return b
}

func (b *Builder) TCPTimeout(d time.Duration) *Builder {
	b.tcpTimeout = &d
	return b
}

func (b *Builder) UDPTimeout(d time.Duration) *Builder {
	b.udpTimeout = &d
	return b
}

// TCPRange pre-queues a TCP address range to be submitted immediately
// after the configuration overrides during Build.
func (b *Builder) TCPRange(host string, from, to uint16) *Builder {
	b.ranges = append(b.ranges, queue.AddressRange{Host: host, Protocol: queue.TCP, From: from, To: to})
	return b
}

// UDPRange pre-queues a UDP address range. See TCPRange.
func (b *Builder) UDPRange(host string, from, to uint16) *Builder {
	b.ranges = append(b.ranges, queue.AddressRange{Host: host, Protocol: queue.UDP, From: from, To: to})
	return b
}

// Build constructs a supervisor with emit as its async output sink,
// then issues the accumulated overrides in the fixed order (Attempts,
// Stale, Threads, TcpTimeout, UdpTimeout) followed by the pre-queued
// ranges, each as a blocking Command. It returns the façade handle.
func (b *Builder) Build(emit func(supervisor.Output)) supervisor.Handle {
	sup := supervisor.New(emit, nil)
	h := supervisor.NewHandle(sup)
	ctx := context.Background()

	if b.attempts != nil {
		h.Command(ctx, supervisor.Input{Kind: supervisor.AttemptsCmd, N: *b.attempts})
	}
	if b.stale != nil {
		h.Command(ctx, supervisor.Input{Kind: supervisor.StaleCmd, B: *b.stale})
	}
	if b.threadCount != nil {
		h.Command(ctx, supervisor.Input{Kind: supervisor.ThreadsCmd, N: *b.threadCount})
	}
	if b.tcpTimeout != nil {
		h.Command(ctx, supervisor.Input{Kind: supervisor.TCPTimeoutCmd, MS: int(b.tcpTimeout.Milliseconds())})
	}
	if b.udpTimeout != nil {
		h.Command(ctx, supervisor.Input{Kind: supervisor.UDPTimeoutCmd, MS: int(b.udpTimeout.Milliseconds())})
	}
	for _, r := range b.ranges {
		kind := supervisor.TCPRangeCmd
		if r.Protocol == queue.UDP {
			kind = supervisor.UDPRangeCmd
		}
		h.Command(ctx, supervisor.Input{Kind: kind, Host: r.Host, From: r.From, To: r.To})
	}

	return h
}

// Run is a convenience that builds with a channel-backed sink and
// collects every TcpScan/UdpScan result produced by the pre-queued
// ranges, returning once the supervisor reports Idle.
//
// It cannot simply wait for the first Idle: a pre-queued range is
// optional, and even when one is present Build applies every config
// override before it submits a single range, so the supervisor can
// legitimately go through one or more idle moments (freshly spawned
// pool, reconfigured thread count) before any range is even pushed.
// Those are indistinguishable from the real completion on the output
// stream alone, since checkIdle simply does nothing on a call that
// finds a worker still busy — there is no "not idle yet" signal to
// tell them apart by timing.
//
// expectedResultCount sidesteps the ambiguity entirely: since this
// supervisor is privately owned by this call and never cancelled, it
// emits exactly one TcpScan/UdpScan per valid pre-queued port and
// nothing else, so the real completion is simply the first Idle seen
// once that many results are in hand. The draining goroutine never
// exits on its own so a supervisor goroutine can never block forever
// handing it a result after Run has already returned to its caller.
func (b *Builder) Run() []supervisor.Output {
	ch := make(chan supervisor.Output)
	want := b.expectedResultCount()
	done := make(chan []supervisor.Output, 1)

	go func() {
		var results []supervisor.Output
		finished := false
		for o := range ch {
			if o.Kind == supervisor.Idle {
				if !finished && len(results) >= want {
					done <- results
					finished = true
				}
				continue
			}
			if !finished {
				results = append(results, o)
			}
		}
	}()

	b.Build(func(o supervisor.Output) { ch <- o })
	return <-done
}

// expectedResultCount mirrors the validation queue.NewAddressRange
// applies when the supervisor processes each pre-queued range: a
// range failing it is rejected and logged without ever reaching a
// worker, so it contributes no result here either.
func (b *Builder) expectedResultCount() int {
	total := 0
	for _, r := range b.ranges {
		if r.From == 0 || r.From > r.To {
			continue
		}
		total += r.Len()
	}
	return total
}

// yamlConfig mirrors the schema FromYAML expects, grounded on
// dropbox-llama's CollectorConfig (config.go): a flat top-level struct
// with a nested slice of range entries.
type yamlConfig struct {
	Threads      *int             `yaml:"threads"`
	TCPTimeoutMS *int             `yaml:"tcp_timeout_ms"`
	UDPTimeoutMS *int             `yaml:"udp_timeout_ms"`
	Attempts     *int             `yaml:"attempts"`
	Stale        *bool            `yaml:"stale"`
	Ranges       []yamlRangeEntry `yaml:"ranges"`
}

type yamlRangeEntry struct {
	Host     string `yaml:"host"`
	Protocol string `yaml:"protocol"`
	From     uint16 `yaml:"from"`
	To       uint16 `yaml:"to"`
}

// FromYAML parses data into a Builder. It is additive to the original
// fluent-accumulator design: a config file is just another way to fill
// in the same overrides and pre-queued ranges FromYAML -> Builder methods
// would.
func FromYAML(data []byte) (*Builder, error) {
	var cfg yamlConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	b := New()
	if cfg.Threads != nil {
		b.ThreadCount(*cfg.Threads)
	}
	if cfg.TCPTimeoutMS != nil {
		b.TCPTimeout(time.Duration(*cfg.TCPTimeoutMS) * time.Millisecond)
	}
	if cfg.UDPTimeoutMS != nil {
		b.UDPTimeout(time.Duration(*cfg.UDPTimeoutMS) * time.Millisecond)
	}
	if cfg.Attempts != nil {
		b.Attempts(*cfg.Attempts)
	}
	if cfg.Stale != nil {
		b.Stale(*cfg.Stale)
	}
	for _, r := range cfg.Ranges {
		if r.Protocol == "udp" {
			b.UDPRange(r.Host, r.From, r.To)
		} else {
			b.TCPRange(r.Host, r.From, r.To)
		}
	}
	return b, nil
}
