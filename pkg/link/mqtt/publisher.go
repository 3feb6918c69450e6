package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/streambuf/pkg/kernel"
	"github.com/robotalks/streambuf/pkg/link"
	"github.com/robotalks/streambuf/pkg/link/stats"
	"github.com/robotalks/streambuf/pkg/streambuf"
)

// DefaultStatsInterval is the default publishing interval.
const DefaultStatsInterval = time.Second

// StatsTopic is the topic stats of a named buffer are published to.
func StatsTopic(node, name string) string {
	return node + "/stats/" + name
}

// StatsPattern matches the stats topics of all nodes.
const StatsPattern = "+/stats/+"

// StatsPublisher periodically publishes stats of named buffers.
type StatsPublisher struct {
	Queue    *Queue
	Node     string
	Interval time.Duration
	Heap     *kernel.Heap

	lock    sync.Mutex
	entries []statsEntry
}

type statsEntry struct {
	name   string
	buffer *streambuf.Buffer
	bridge *link.Bridge
}

// NewStatsPublisher creates a StatsPublisher.
func NewStatsPublisher(q *Queue, node string) *StatsPublisher {
	return &StatsPublisher{Queue: q, Node: node, Interval: DefaultStatsInterval}
}

// Add registers a buffer under name. bridge is optional and contributes
// its packet counters.
func (p *StatsPublisher) Add(name string, b *streambuf.Buffer, bridge *link.Bridge) *StatsPublisher {
	p.lock.Lock()
	p.entries = append(p.entries, statsEntry{name: name, buffer: b, bridge: bridge})
	p.lock.Unlock()
	return p
}

// Collect takes a snapshot of all registered buffers.
func (p *StatsPublisher) Collect() []*stats.Stats {
	p.lock.Lock()
	entries := append([]statsEntry(nil), p.entries...)
	p.lock.Unlock()
	result := make([]*stats.Stats, 0, len(entries))
	for _, ent := range entries {
		s := stats.FromState(p.Node, ent.name, ent.buffer.State())
		if p.Heap != nil {
			s.HeapFree = uint64(p.Heap.FreeSize())
		}
		if ent.bridge != nil {
			bs := ent.bridge.Stats()
			s.TxPackets, s.RxPackets, s.RxDropped = bs.TxPackets, bs.RxPackets, bs.RxDropped
		}
		result = append(result, s)
	}
	return result
}

// Publish publishes one round of stats.
func (p *StatsPublisher) Publish() error {
	for _, s := range p.Collect() {
		data, err := s.Encode()
		if err != nil {
			return err
		}
		p.Queue.Pub(StatsTopic(p.Node, s.Name), data)
	}
	return nil
}

// Run implements Runnable.
func (p *StatsPublisher) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Publish(); err != nil {
				glog.Errorf("publish stats: %v", err)
			}
		}
	}
}

// SubStats subscribes stats of all nodes.
func SubStats(q *Queue, handler func(*stats.Stats)) *Subscription {
	return q.Sub(StatsPattern, func(topic string, payload []byte) {
		s, err := stats.Decode(payload)
		if err != nil {
			glog.Warningf("%s: bad stats: %v", topic, err)
			return
		}
		handler(s)
	})
}
