package gateway

import (
	"encoding/json"
	"testing"
)

func TestDispatcherRunsHandlersInRegistrationOrder(t *testing.T) {
	d := NewDispatcher()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		d.Register("MESSAGE_CREATE", func(json.RawMessage) { order = append(order, i) })
	}

	d.Dispatch("MESSAGE_CREATE", nil)

	if len(order) != 5 {
		t.Fatalf("ran %d handlers, want 5", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("position %d ran handler %d", i, got)
		}
	}
}

func TestDispatcherPanicDoesNotStopRemainingHandlers(t *testing.T) {
	d := NewDispatcher()
	ran := false
	d.Register("READY", func(json.RawMessage) { panic("handler bug") })
	d.Register("READY", func(json.RawMessage) { ran = true })

	d.Dispatch("READY", nil)

	if !ran {
		t.Fatal("handler after the panicking one did not run")
	}
}

func TestDispatcherUnknownEventIsNoOp(t *testing.T) {
	d := NewDispatcher()
	d.Register("READY", func(json.RawMessage) { t.Fatal("wrong event invoked") })

	// Must not panic, error, or touch other registrations.
	d.Dispatch("GUILD_CREATE", json.RawMessage(`{}`))
}

func TestDispatcherPassesPayloadThrough(t *testing.T) {
	d := NewDispatcher()
	var got string
	d.Register("MESSAGE_CREATE", func(data json.RawMessage) {
		var m MessageCreate
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = m.Content
	})

	d.Dispatch("MESSAGE_CREATE", json.RawMessage(`{"content":"holaa"}`))

	if got != "holaa" {
		t.Fatalf("got %q, want %q", got, "holaa")
	}
}
