package events

import "sync"

// Dispatcher delivers messages to a Sink from its own goroutine, so the
// publisher never waits on a slow consumer. Messages are delivered in
// publish order. A ProgressMsg still waiting in the queue is replaced by a
// newer ProgressMsg of the same download, which keeps the queue short while
// preserving non-decreasing progress.
type Dispatcher struct {
	sink Sink

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher goroutine draining into sink.
// A nil sink discards everything.
func NewDispatcher(sink Sink) *Dispatcher {
	if sink == nil {
		sink = Discard
	}
	d := &Dispatcher{
		sink: sink,
		done: make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Publish enqueues msg. Publishing after Close is a no-op.
func (d *Dispatcher) Publish(msg any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if p, ok := msg.(ProgressMsg); ok && len(d.queue) > 0 {
		if last, ok := d.queue[len(d.queue)-1].(ProgressMsg); ok && last.DownloadID == p.DownloadID {
			d.queue[len(d.queue)-1] = p
			return
		}
	}

	d.queue = append(d.queue, msg)
	d.cond.Signal()
}

// Close stops accepting messages. Already queued messages are still
// delivered; Done is closed after the last one.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
}

// Done is closed once the queue has been drained after Close.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		msg := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.sink.Notify(msg)
	}
}
