package events

// Sink receives download notifications. Implementations decide how a
// message reaches the controlling side (a channel, a UI program, a log).
type Sink interface {
	Notify(msg any)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg any)

func (f SinkFunc) Notify(msg any) { f(msg) }

// ChannelSink forwards every message to ch, blocking while ch is full.
type ChannelSink chan<- any

func (c ChannelSink) Notify(msg any) { c <- msg }

type discard struct{}

func (discard) Notify(any) {}

// Discard drops every message.
var Discard Sink = discard{}
