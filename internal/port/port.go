// Package port provides the channel pair connecting a hosting application to
// the driver: an outbound stream the application writes to, and an inbound
// sink the driver replies on.
package port

import (
	"sync"

	"github.com/dshills/portsdriver/internal/message"
)

// Sender accepts messages destined for the hosting application.
type Sender interface {
	Send(msg message.Message)
}

// SenderFunc is a function adapter for Sender.
type SenderFunc func(msg message.Message)

// Send implements Sender.
func (f SenderFunc) Send(msg message.Message) {
	f(msg)
}

// Discard drops every message.
var Discard Sender = SenderFunc(func(message.Message) {})

// DefaultBufferSize is the buffer used by NewPair when none is given.
const DefaultBufferSize = 64

// Pair is the channel pair of one hosting application instance. It is
// created once and lives as long as the instance.
type Pair struct {
	outbound chan message.Message
	inbound  chan message.Message

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewPair creates a channel pair whose streams buffer up to size messages.
func NewPair(size int) *Pair {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Pair{
		outbound: make(chan message.Message, size),
		inbound:  make(chan message.Message, size),
		done:     make(chan struct{}),
	}
}

// Outbound returns the stream of messages from the application.
func (p *Pair) Outbound() <-chan message.Message {
	return p.outbound
}

// Inbound returns the stream of messages for the application.
func (p *Pair) Inbound() <-chan message.Message {
	return p.inbound
}

// Emit queues a message from the application. It blocks while the outbound
// buffer is full and reports false once the pair is closed.
func (p *Pair) Emit(msg message.Message) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.outbound <- msg:
		return true
	case <-p.done:
		return false
	}
}

// Sender returns the inbound sink handed to handlers.
func (p *Pair) Sender() Sender {
	return SenderFunc(p.send)
}

// send delivers a message to the application. Messages sent after Close,
// such as late file-read completions, are dropped.
func (p *Pair) send(msg message.Message) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.inbound <- msg:
	case <-p.done:
	}
}

// Done is closed when the pair is closed.
func (p *Pair) Done() <-chan struct{} {
	return p.done
}

// Close ends the outbound stream and stops delivery on the inbound one.
// The inbound channel itself is never closed, since handlers may still hold
// the sender. Close is idempotent.
func (p *Pair) Close() {
	p.closeOnce.Do(func() {
		close(p.done) // unblocks Emit before taking the write lock
		p.mu.Lock()
		defer p.mu.Unlock()
		p.closed = true
		close(p.outbound)
	})
}
