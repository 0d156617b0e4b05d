package events

import "sync"

// Broadcaster fans one event stream out to any number of subscribers.
// Notify never blocks. A subscriber whose buffer is full misses progress
// rather than stalling the publisher. A terminal message evicts queued
// progress to make room; when the buffer holds nothing evictable the
// subscription is closed so the consumer sees the stream end instead of
// waiting for an event that never comes.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan any]*subscriber
	closed bool
}

type subscriber struct {
	mu sync.Mutex // serialises sends, evictions included
	ch chan any
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan any]*subscriber)}
}

// Notify implements Sink.
func (b *Broadcaster) Notify(msg any) {
	terminal := IsTerminal(msg)

	var stuck []chan any
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	for _, s := range b.subs {
		if !s.send(msg, terminal) {
			stuck = append(stuck, s.ch)
		}
	}
	b.mu.RUnlock()

	if len(stuck) == 0 {
		return
	}
	b.mu.Lock()
	for _, ch := range stuck {
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	b.mu.Unlock()
}

// send queues msg without blocking. It reports false only when a terminal
// message found no room even after evicting queued progress.
func (s *subscriber) send(msg any, terminal bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.ch <- msg:
		return true
	default:
	}
	if !terminal {
		return true
	}

	kept := make([]any, 0, cap(s.ch)+1)
drain:
	for {
		select {
		case m := <-s.ch:
			if _, isProgress := m.(ProgressMsg); !isProgress {
				kept = append(kept, m)
			}
		default:
			break drain
		}
	}
	kept = append(kept, msg)

	// Only send puts values on s.ch and the consumer only takes them, so
	// everything drained above fits back in.
	for _, m := range kept {
		select {
		case s.ch <- m:
		default:
			return false
		}
	}
	return true
}

// Subscribe returns a channel receiving every message published from now
// on, and a function that ends the subscription.
func (b *Broadcaster) Subscribe(buffer int) (<-chan any, func()) {
	ch := make(chan any, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = &subscriber{ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
