package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler consumes the raw payload of one dispatch event.
type Handler func(data json.RawMessage)

// Dispatcher routes dispatch events to registered handlers by event name.
// Unknown names are a no-op so new server events never break the session.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]Handler)}
}

// Register appends h to the handler list for event. Handlers run in
// registration order.
func (d *Dispatcher) Register(event string, h Handler) {
	d.mu.Lock()
	d.handlers[event] = append(d.handlers[event], h)
	d.mu.Unlock()
}

// Dispatch invokes every handler registered for event, in order. A
// panicking handler is recovered and logged; the remaining handlers still
// run.
func (d *Dispatcher) Dispatch(event string, data json.RawMessage) {
	d.mu.RLock()
	hs := d.handlers[event]
	d.mu.RUnlock()

	for _, h := range hs {
		d.invoke(event, h, data)
	}
}

func (d *Dispatcher) invoke(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event", event, "panic", r)
		}
	}()
	h(data)
}
