// Package ui holds the handles a long running operation uses to reach the user
// interface that started it.
package ui

import (
	"errors"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/veilnet/veild/internal/state"
)

// ErrContextUnavailable is returned once the owning UI context has been torn down.
var ErrContextUnavailable = errors.New("context unavailable")

// Context is a UI context (console session, API client) which may be torn down
// while work it started is still running.
type Context struct {
	mu     sync.RWMutex
	closed bool

	version string
	printer *message.Printer
	stores  *state.Registry
}

// NewContext returns a new Context for the given application version and language.
func NewContext(version string, lang string, stores *state.Registry) *Context {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}

	return &Context{
		version: version,
		printer: message.NewPrinter(tag),
		stores:  stores,
	}
}

// Close tears the context down.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

// Closed reports whether the context was torn down.
func (c *Context) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}

// Version returns the application version string.
func (c *Context) Version() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return "", ErrContextUnavailable
	}

	return c.version, nil
}

// Localize returns the message translated to the context's language.
func (c *Context) Localize(msg string, args ...any) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return "", ErrContextUnavailable
	}

	return c.printer.Sprintf(msg, args...), nil
}

// Store returns a handle on the named configuration store.
func (c *Context) Store(name string) (state.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed || c.stores == nil {
		return nil, ErrContextUnavailable
	}

	return c.stores.Get(name)
}
