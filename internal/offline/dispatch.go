package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoHandler is returned when an event kind has no registered handler.
var ErrNoHandler = errors.New("offline: no handler registered")

// EventKind tags a lifecycle event.
type EventKind string

const (
	EventInstall  EventKind = "install"
	EventActivate EventKind = "activate"
	EventFetch    EventKind = "fetch"
)

// Event is anything the host delivers to the controller.
type Event interface {
	Kind() EventKind
}

// InstallEvent asks the controller to create and populate its cache.
// Cached is filled with the URLs stored during install.
type InstallEvent struct {
	Cached []string
}

func (*InstallEvent) Kind() EventKind { return EventInstall }

// ActivateEvent asks the controller to take over. Deleted is filled with the
// names of purged cache stores.
type ActivateEvent struct {
	Deleted []string
}

func (*ActivateEvent) Kind() EventKind { return EventActivate }

// Source says where a fetch response came from.
type Source string

const (
	SourceCache    Source = "hit"
	SourceNetwork  Source = "miss"
	SourceFallback Source = "fallback"
)

// FetchEvent carries one intercepted request. A handler that wants to answer
// the request calls RespondWith; otherwise the request passes through.
type FetchEvent struct {
	Request *Request

	mu       sync.Mutex
	response *Response
	source   Source
}

// NewFetchEvent wraps req in an event.
func NewFetchEvent(req *Request) *FetchEvent {
	return &FetchEvent{Request: req}
}

func (*FetchEvent) Kind() EventKind { return EventFetch }

// RespondWith sets the response for the request.
func (e *FetchEvent) RespondWith(resp *Response, src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.response = resp
	e.source = src
}

// Response returns the response set by RespondWith, if any.
func (e *FetchEvent) Response() (*Response, Source, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.response, e.source, e.response != nil
}

// Handler processes one event. The event is resolved when Handler returns.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher routes lifecycle events to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventKind]Handler
}

// NewDispatcher returns an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKind]Handler)}
}

// Register binds h to kind, replacing any earlier handler.
func (d *Dispatcher) Register(kind EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Dispatch runs the handler registered for ev.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	h, ok := d.handlers[ev.Kind()]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w for %q", ErrNoHandler, ev.Kind())
	}
	return h(ctx, ev)
}
