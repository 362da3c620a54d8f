// Package notifier wakes listeners when a view pair changed and needs a redraw.
package notifier

import "sync"

// Notifier broadcasts pings to subscribed listeners. A listener receives an empty
// struct and re-reads whatever state it renders.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
	closed    bool
}

func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan struct{}]struct{}),
	}
}

// Subscribe returns a channel that receives pings. Call Unsubscribe when done.
// Subscribing to a closed notifier returns an already closed channel.
func (n *Notifier) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		close(ch)

		return ch
	}

	n.listeners[ch] = struct{}{}

	return ch
}

func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[ch]; !ok {
		return
	}

	delete(n.listeners, ch)
	close(ch)
}

// Broadcast pings every listener without blocking; a listener with a pending
// ping is skipped.
func (n *Notifier) Broadcast() {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close closes every listener channel so their readers stop.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	n.closed = true

	for ch := range n.listeners {
		delete(n.listeners, ch)
		close(ch)
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return len(n.listeners)
}
