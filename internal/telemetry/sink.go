package telemetry

import (
	"sync"

	"go.uber.org/zap"
)

// Label of the data channel that carries snapshots to the viewer.
const ChannelLabel = "telemetry"

// Sink receives snapshots. Publish must not block the caller for long.
type Sink interface {
	Publish(Snapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Snapshot)

func (f SinkFunc) Publish(s Snapshot) { f(s) }

// Discard drops every snapshot.
var Discard Sink = SinkFunc(func(Snapshot) {})

// Fanout publishes to a changing set of sinks.
type Fanout struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

func NewFanout() *Fanout {
	return &Fanout{sinks: make(map[string]Sink)}
}

// Set registers s under name, replacing any previous sink of that name.
func (f *Fanout) Set(name string, s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks[name] = s
}

func (f *Fanout) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sinks, name)
}

func (f *Fanout) Publish(s Snapshot) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sink := range f.sinks {
		sink.Publish(s)
	}
}

// MessageSender is the subset of a data channel used by ChannelSink.
type MessageSender interface {
	Send([]byte) error
}

// ChannelSink encodes snapshots onto a data channel. Send failures are
// logged and otherwise ignored.
type ChannelSink struct {
	dc  MessageSender
	log *zap.Logger
}

func NewChannelSink(dc MessageSender, log *zap.Logger) *ChannelSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChannelSink{dc: dc, log: log}
}

func (c *ChannelSink) Publish(s Snapshot) {
	b, err := Encode(s)
	if err != nil {
		c.log.Warn("encode snapshot", zap.Error(err))
		return
	}
	if err := c.dc.Send(b); err != nil {
		c.log.Debug("telemetry send failed", zap.Error(err))
	}
}
