package ui

import (
	"sync"
)

// Sink renders a progress indicator, for example a console modal.
type Sink interface {
	Update(message string)
	Done()
}

// Progress is the surface showing the progress of a long running operation.
// Every call is best effort and is silently dropped once the surface was destroyed.
type Progress struct {
	mu sync.Mutex

	sink      Sink
	message   string
	closed    bool
	destroyed bool
}

// NewProgress returns an open progress surface forwarding to sink, which may be nil.
func NewProgress(sink Sink) *Progress {
	return &Progress{sink: sink}
}

// ShowMessage displays a message to the user.
func (p *Progress) ShowMessage(msg string) {
	p.mu.Lock()

	if p.destroyed {
		p.mu.Unlock()

		return
	}

	p.message = msg
	sink := p.sink
	p.mu.Unlock()

	// The sink may call back into the surface.
	if sink != nil {
		sink.Update(msg)
	}
}

// CloseProgress removes the progress indicator.
func (p *Progress) CloseProgress() {
	p.mu.Lock()

	if p.destroyed || p.closed {
		p.mu.Unlock()

		return
	}

	p.closed = true
	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		sink.Done()
	}
}

// Destroy tears the surface down.
func (p *Progress) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.destroyed = true
	p.sink = nil
}

// Destroyed reports whether the surface was torn down.
func (p *Progress) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.destroyed
}

// Message returns the last message shown.
func (p *Progress) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.message
}

// Closed reports whether the progress indicator was closed.
func (p *Progress) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}
